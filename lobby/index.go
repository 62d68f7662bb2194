package lobby

import (
	"sync"

	"github.com/firstnuel/snake-game-npc/models"
)

// Index is the global public-room listing. Rooms are kept in the order
// they were first advertised.
type Index struct {
	mu    sync.RWMutex
	rooms map[string]models.PublicRoomInfo
	order []string
}

func NewIndex() *Index {
	return &Index{
		rooms: make(map[string]models.PublicRoomInfo),
		order: make([]string, 0),
	}
}

// Put inserts or refreshes a room's listing.
func (idx *Index) Put(info models.PublicRoomInfo) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.rooms[info.RoomCode]; !exists {
		idx.order = append(idx.order, info.RoomCode)
	}
	idx.rooms[info.RoomCode] = info
}

// Remove drops a room from the listing. Removing an unlisted room is a no-op.
func (idx *Index) Remove(roomCode string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.rooms[roomCode]; !exists {
		return
	}
	delete(idx.rooms, roomCode)
	for i, code := range idx.order {
		if code == roomCode {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether a room is currently listed.
func (idx *Index) Contains(roomCode string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, exists := idx.rooms[roomCode]
	return exists
}

// Snapshot returns the listing in advertisement order.
func (idx *Index) Snapshot() []models.PublicRoomInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]models.PublicRoomInfo, 0, len(idx.order))
	for _, code := range idx.order {
		if info, exists := idx.rooms[code]; exists {
			result = append(result, info)
		}
	}
	return result
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rooms)
}

package constants

import "time"

const (
	// Grid
	GRID_WIDTH  = 30
	GRID_HEIGHT = 30

	// Tick rate scaling: rate = BASE + STEP*(level-1), capped at MAX.
	// Solo games run slightly faster at every level.
	BASE_TICK_RATE  = 5.0
	TICK_RATE_STEP  = 2.0
	MAX_TICK_RATE   = 16.0
	SOLO_RATE_BONUS = 1.015
	FOOD_PER_LEVEL  = 5

	// Scoring
	FOOD_SCORE     = 10
	SURVIVAL_BONUS = 50

	// Countdowns
	COUNTDOWN_START  = 5
	ALL_READY_DELAY  = 300 * time.Millisecond
	COUNTDOWN_PERIOD = 1 * time.Second

	// Inactivity watchdog
	INACTIVITY_WARN_MS = 45000
	INACTIVITY_KICK_MS = 60000

	// Pause budget (multi mode only; solo/single is unbounded)
	PAUSE_BUDGET_MS = 15 * 60 * 1000

	// A lone survivor in multi mode with a zero total score must stay
	// alone this long before being declared winner.
	LAST_SURVIVOR_HOLD_MS = 5000

	// Room limits
	MAX_ROOM_PLAYERS = 4
	MIN_MULTI_START  = 2
	MAX_NPC_COUNT    = 3
	NAME_MAX_LEN     = 20

	// Timers
	DISCONNECT_GRACE    = 30 * time.Second
	CLEANUP_DELAY_MULTI = 10 * time.Second

	// Power-ups
	POWERUP_MAX_ACTIVE   = 2
	POWERUP_MIN_SPAWN_MS = 12000
	POWERUP_MAX_SPAWN_MS = 20000
	POWERUP_ITEM_TTL_MS  = 30000
	POWERUP_EFFECT_MS    = 7000
	SHRINK_SEGMENTS      = 3

	// Chat
	CHAT_MAX_LEN = 200
	CHAT_RATE_MS = 800

	// Session registry
	SESSION_SWEEP_INTERVAL = 30 * time.Second
	SESSION_MAX_AGE        = 24 * time.Hour
	SESSION_HISTORY_LIMIT  = 5
)

// Message types, client -> server
const (
	MSG_JOIN_ROOM               = "joinRoom"
	MSG_START_GAME              = "startGame"
	MSG_START_SINGLE_PLAYER     = "startSinglePlayer"
	MSG_PLAYER_READY            = "playerReady"
	MSG_REQUEST_GAME_STATE      = "requestGameState"
	MSG_PLAYER_INPUT            = "playerInput"
	MSG_PAUSE_GAME              = "pauseGame"
	MSG_RESUME_GAME             = "resumeGame"
	MSG_QUIT_GAME               = "quitGame"
	MSG_CHAT_MESSAGE            = "chatMessage"
	MSG_TOGGLE_PUBLIC_ROOM      = "togglePublicRoom"
	MSG_REQUEST_PUBLIC_ROOMS    = "requestPublicRooms"
	MSG_REQUEST_SESSION_HISTORY = "requestSessionHistory"
	MSG_UPDATE_GAME_OPTIONS     = "updateGameOptions"
	MSG_REQUEST_GAME_OPTIONS    = "requestGameOptions"
)

// Message types, server -> client
const (
	MSG_FEATURE_FLAGS        = "featureFlags"
	MSG_JOINED_ROOM          = "joinedRoom"
	MSG_JOIN_ERROR           = "joinError"
	MSG_ERROR                = "error"
	MSG_INPUT_REJECTED       = "inputRejected"
	MSG_PLAYER_JOINED        = "playerJoined"
	MSG_GAME_STARTED         = "gameStarted"
	MSG_PLAYER_READY_STATUS  = "playerReadyStatus"
	MSG_ALL_PLAYERS_READY    = "allPlayersReady"
	MSG_GAME_COUNTDOWN       = "gameCountdown"
	MSG_RESUME_COUNTDOWN     = "resumeCountdown"
	MSG_GAME_STATE_UPDATE    = "gameStateUpdate"
	MSG_GAME_PAUSED          = "gamePaused"
	MSG_GAME_RESUMED         = "gameResumed"
	MSG_PAUSE_ERROR          = "pauseError"
	MSG_RESUME_ERROR         = "resumeError"
	MSG_POWERUP_COLLECTED    = "powerUpCollected"
	MSG_PLAYER_COLLIDED      = "playerCollided"
	MSG_PLAYER_LEFT          = "playerLeft"
	MSG_PLAYER_QUIT          = "playerQuit"
	MSG_GAME_QUIT            = "gameQuit"
	MSG_HOST_CHANGED         = "hostChanged"
	MSG_INACTIVITY_WARNING   = "inactivityWarning"
	MSG_PLAYER_KICKED        = "playerKicked"
	MSG_GAME_ENDED           = "gameEnded"
	MSG_SESSION_HISTORY      = "sessionHistory"
	MSG_PUBLIC_ROOMS_UPDATED = "publicRoomsUpdated"
	MSG_PUBLIC_ROOM_STATUS   = "publicRoomStatus"
	MSG_GAME_OPTIONS_UPDATED = "gameOptionsUpdated"
	MSG_GAME_STATE_ERROR     = "gameStateError"
)

// Session end reasons
const (
	END_WINNER_DECLARED      = "winner_declared"
	END_TIMEOUT              = "timeout"
	END_PLAYER_INACTIVE      = "player_inactive"
	END_PLAYER_INACTIVE_DISC = "player_inactive_disconnected"
	END_ALL_DISCONNECTED     = "all_players_disconnected"
	END_HOST_QUIT_NO_PLAYERS = "host_quit_no_players"
	END_ALL_PLAYERS_QUIT     = "all_players_quit"
	END_ROOM_DELETED         = "room_deleted"
	END_ROOM_NOT_FOUND       = "room_not_found"
	END_GAME_ENDED           = "game_ended"
	END_CRASHED              = "crashed"
)

// Game modes
const (
	MODE_MULTI  = "multi"
	MODE_SINGLE = "single"
	MODE_SOLO   = "solo"
)

// Collision types reported in playerCollided
const (
	COLLISION_WALL         = "wall"
	COLLISION_SELF         = "self"
	COLLISION_HEAD_TO_HEAD = "head-to-head"
	COLLISION_HEAD_TO_BODY = "head-to-body"
)

// Player colors, assigned by join order
var PlayerColors = []string{"#4CAF50", "#2196F3", "#FF9800", "#9C27B0"}

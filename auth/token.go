package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var tokenSecret = secretFromEnv()

func secretFromEnv() []byte {
	if s := os.Getenv("TOKEN_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("snake-game-secret-key-change-in-production")
}

// Claims bind a player token to one player in one room. The token is the
// client's only credential for reattaching after a dropped connection.
type Claims struct {
	PlayerID string `json:"player_id"`
	RoomCode string `json:"room_code"`
	jwt.RegisteredClaims
}

// GeneratePlayerToken mints a reconnect token for a player in a room.
// Tokens outlive any legal reconnection window by a wide margin; the room
// side decides whether a reconnect is still admissible.
func GeneratePlayerToken(playerID, roomCode string) (string, error) {
	now := time.Now()
	claims := &Claims{
		PlayerID: playerID,
		RoomCode: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tokenSecret)
}

// ValidatePlayerToken parses and verifies a player token.
func ValidatePlayerToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tokenSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

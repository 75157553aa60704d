package pkg

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const gameIDBytes = 8

// GenerateGameID - returns a new random game id, unguessable by construction.
func GenerateGameID() string {
	buf := make([]byte, gameIDBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %w", err))
	}

	return hex.EncodeToString(buf)
}

package pkg

import "github.com/google/uuid"

// GenerateNewSessionID - returns a random identifier for a game session.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

// IsValidSessionID - reports whether id looks like an identifier produced by GenerateNewSessionID.
func IsValidSessionID(id string) bool {
	return uuid.Validate(id) == nil
}

package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user. Accounts are immutable after signup.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// SafeUser removes sensitive fields for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// Principal is the verified identity attached to a request after token
// resolution. Services take it as an explicit parameter; nothing reads
// ambient session state.
type Principal struct {
	ID       uuid.UUID
	Username string
}

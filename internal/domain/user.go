// Package domain contains entity without logic, just meta-data
package domain

import (
	"github.com/google/uuid"
)

// UserID is an opaque participant identity handed out by the relay.
type UserID string

// NewUserID returns a fresh identity. uuid v4 keeps ids unique for the process lifetime.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

func (id UserID) String() string { return string(id) }

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxUserNameLen = 36

var (
	ErrUserNameEmpty   = errors.New("user name empty")
	ErrUserNameTooLong = errors.New("user name too long")
)

type UserID string

type UserStatus string

const (
	UserActive       UserStatus = "ACTIVE"
	UserDisconnected UserStatus = "DISCONNECTED"
)

// User is owned by the session that created it. A user no session points at
// is orphaned and eligible for cleanup.
type User struct {
	ID           UserID     `json:"_id"`
	Name         string     `json:"name"`
	Status       UserStatus `json:"status"`
	CreationTime time.Time  `json:"creationTime"`
}

func NewUser(name string) (*User, error) {
	if len(name) == 0 {
		return nil, ErrUserNameEmpty
	}
	if len(name) > MaxUserNameLen {
		return nil, ErrUserNameTooLong
	}
	return &User{
		ID:           UserID(uuid.NewString()),
		Name:         name,
		Status:       UserActive,
		CreationTime: time.Now().UTC(),
	}, nil
}

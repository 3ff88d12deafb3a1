// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxMemberIDLen = 64
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// UserID is the stable id issued by the identity provider.
type UserID string

// Identity is what the identity provider vouches for.
// A zero Identity means the client is anonymous.
type Identity struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

func (i Identity) Anonymous() bool { return i.ID == "" }

// NormalizeUsername trims and validates a display name.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}

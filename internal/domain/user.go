// Package domain contains entities without transport, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen  = 32
	MaxGroupNameLen = 48
)

var (
	ErrUsernameTooLong  = errors.New("username too long")
	ErrUsernameEmpty    = errors.New("username empty")
	ErrUsernameInvalid  = errors.New("username contains invalid characters")
	ErrGroupNameEmpty   = errors.New("group name empty")
	ErrGroupNameTooLong = errors.New("group name too long")
)

// ValidateUsername checks a username before it reaches the directory or the store.
// Usernames double as UDP registration markers, so whitespace and ':' are refused.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if strings.ContainsAny(name, " \t\r\n:/\\") {
		return ErrUsernameInvalid
	}
	return nil
}

func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrGroupNameEmpty
	}
	if len(name) > MaxGroupNameLen {
		return ErrGroupNameTooLong
	}
	return nil
}

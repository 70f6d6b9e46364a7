package core

import (
	"context"
	"errors"

	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
)

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupExists   = errors.New("group already exists")
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
)

// Store is the persistence collaborator: credentials, groups and history.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	PasswordHash(ctx context.Context, username string) (string, error)
	UserExists(ctx context.Context, username string) (bool, error)

	CreateGroup(ctx context.Context, group, owner string) error
	AddMember(ctx context.Context, group, username string) error
	RemoveMember(ctx context.Context, group, username string) error
	IsMember(ctx context.Context, group, username string) (bool, error)
	GroupMembers(ctx context.Context, group string) ([]string, error)

	SaveMessage(ctx context.Context, m domain.ChatMessage) error
	PublicHistory(ctx context.Context, limit int) ([]domain.ChatMessage, error)
	GroupHistory(ctx context.Context, group string, limit int) ([]domain.ChatMessage, error)
	PrivateHistory(ctx context.Context, a, b string, limit int) ([]domain.ChatMessage, error)
}

// PasswordHasher is the hashing collaborator used for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrPasswordEmpty  = errors.New("password is empty")
)

// Authenticator checks credentials. Binding the session to the Directory is
// the caller's step, so a valid password can still lose a login race.
type Authenticator struct {
	store  core.Store
	hasher core.PasswordHasher
}

func NewAuthenticator(store core.Store, hasher core.PasswordHasher) *Authenticator {
	return &Authenticator{store: store, hasher: hasher}
}

func (a *Authenticator) Register(ctx context.Context, username, password string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordEmpty
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.CreateUser(ctx, username, hash); err != nil {
		return err
	}
	log.Info().Str("module", "app.auth").Str("user", username).Msg("account created")
	return nil
}

func (a *Authenticator) Login(ctx context.Context, username, password string) error {
	hash, err := a.store.PasswordHash(ctx, username)
	if errors.Is(err, core.ErrUserNotFound) {
		return ErrBadCredentials
	}
	if err != nil {
		return err
	}
	if a.hasher.Compare(hash, password) != nil {
		return ErrBadCredentials
	}
	return nil
}

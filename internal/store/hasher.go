package store

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
)

// BcryptHasher is the production core.PasswordHasher.
type BcryptHasher struct {
	Cost int
}

var _ core.PasswordHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pierrecuevas/Tarea-Chat/internal/store"
)

func newStore(t *testing.T, users ...string) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "chat.db"), PoolSize: 2})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	for _, u := range users {
		if err := s.CreateUser(context.Background(), u, "x"); err != nil {
			t.Fatalf("create %s: %v", u, err)
		}
	}
	return s
}

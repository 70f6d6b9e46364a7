package app_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/testutil"
)

func TestDirectoryConcurrentLoginSingleWinner(t *testing.T) {
	for round := range 50 {
		dir := app.NewDirectory()
		const workers = 16
		var (
			wg       sync.WaitGroup
			wins     atomic.Int32
			rejected atomic.Int32
		)
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := dir.Put(testutil.NewSession("alice"))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, app.ErrAlreadyOnline):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()
		if wins.Load() != 1 || rejected.Load() != workers-1 {
			t.Fatalf("round %d: wins=%d rejected=%d", round, wins.Load(), rejected.Load())
		}
		if dir.Count() != 1 {
			t.Fatalf("round %d: count=%d", round, dir.Count())
		}
	}
}

func TestDirectoryRemoveIsIdempotentAndKeyedOnSession(t *testing.T) {
	dir := app.NewDirectory()
	old := testutil.NewSession("alice")
	if err := dir.Put(old); err != nil {
		t.Fatal(err)
	}
	if !dir.Remove(old) {
		t.Fatal("first remove reported nothing removed")
	}
	if dir.Remove(old) {
		t.Fatal("second remove reported a removal")
	}

	fresh := testutil.NewSession("alice")
	if err := dir.Put(fresh); err != nil {
		t.Fatal(err)
	}
	// A late teardown of the old session must not evict the new login.
	dir.Remove(old)
	got, ok := dir.Lookup("alice")
	if !ok || got != fresh {
		t.Fatalf("lookup after stale remove = %v, %v", got, ok)
	}
}

func TestDirectoryOnlineSorted(t *testing.T) {
	dir := app.NewDirectory()
	for _, u := range []string{"carol", "alice", "bob"} {
		if err := dir.Put(testutil.NewSession(u)); err != nil {
			t.Fatal(err)
		}
	}
	got := dir.Online()
	want := []string{"alice", "bob", "carol"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("online = %v", got)
		}
	}
	var visited int
	dir.ForEach(func(core.Session) { visited++ })
	if visited != 3 {
		t.Fatalf("visited %d", visited)
	}
}

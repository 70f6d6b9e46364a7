package app

import (
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
)

var ErrAlreadyOnline = errors.New("user already online")

// Directory maps usernames to their live session. One session per user.
type Directory struct {
	sessions sync.Map // username -> core.Session
}

func NewDirectory() *Directory {
	return &Directory{}
}

// Put binds sess to its username. The first writer wins; a concurrent or
// later Put for the same name fails with ErrAlreadyOnline.
func (d *Directory) Put(sess core.Session) error {
	name := sess.Username()
	if _, loaded := d.sessions.LoadOrStore(name, sess); loaded {
		log.Debug().Str("module", "app.directory").Str("user", name).Msg("rejected duplicate session")
		return ErrAlreadyOnline
	}
	log.Info().Str("module", "app.directory").Str("user", name).Str("sid", sess.ID()).Msg("user online")
	return nil
}

// Remove unbinds sess if it is still the one mapped under its username.
// Reports whether anything was removed; repeated calls are no-ops.
func (d *Directory) Remove(sess core.Session) bool {
	name := sess.Username()
	if !d.sessions.CompareAndDelete(name, sess) {
		return false
	}
	log.Info().Str("module", "app.directory").Str("user", name).Str("sid", sess.ID()).Msg("user offline")
	return true
}

func (d *Directory) Lookup(username string) (core.Session, bool) {
	v, ok := d.sessions.Load(username)
	if !ok {
		return nil, false
	}
	return v.(core.Session), true
}

func (d *Directory) IsOnline(username string) bool {
	_, ok := d.sessions.Load(username)
	return ok
}

// ForEach visits every online session. Sessions removed during the walk may
// or may not be visited.
func (d *Directory) ForEach(fn func(core.Session)) {
	d.sessions.Range(func(_, v any) bool {
		fn(v.(core.Session))
		return true
	})
}

// Online returns the sorted names of online users.
func (d *Directory) Online() []string {
	var names []string
	d.sessions.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}

func (d *Directory) Count() int {
	n := 0
	d.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

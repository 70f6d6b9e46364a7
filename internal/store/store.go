package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_groups (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS group_members (
	group_name TEXT NOT NULL,
	username   TEXT NOT NULL,
	joined_at  INTEGER NOT NULL,
	PRIMARY KEY (group_name, username)
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	sender     TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	audio      INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_by_target ON messages (kind, target, id);
`

type Config struct {
	Path     string
	PoolSize int
}

// Store implements core.Store on SQLite.
type Store struct {
	pool   *pool
	logger zerolog.Logger
	now    func() time.Time
}

var _ core.Store = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	logger := log.With().Str("module", "store").Logger()
	p, err := openPool(cfg.Path, cfg.PoolSize, logger, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: p, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error { return s.pool.close() }

// with borrows a connection for the duration of fn.
func (s *Store) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)
	return fn(conn)
}

// tx runs fn inside an IMMEDIATE transaction.
func (s *Store) tx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.with(ctx, func(conn *sqlite.Conn) (err error) {
		end, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer end(&err)
		return fn(conn)
	})
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (username) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{username, passwordHash, s.now().UnixMilli()}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return core.ErrUserExists
		}
		return nil
	})
}

func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var (
		hash  string
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT password_hash FROM users WHERE username = ?`,
			&sqlitex.ExecOptions{
				Args: []any{username},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					hash, found = stmt.ColumnText(0), true
					return nil
				},
			})
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", core.ErrUserNotFound
	}
	return hash, nil
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var found bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		var err error
		found, err = exists(conn, `SELECT 1 FROM users WHERE username = ?`, username)
		return err
	})
	return found, err
}

func (s *Store) CreateGroup(ctx context.Context, group, owner string) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		now := s.now().UnixMilli()
		err := sqlitex.Execute(conn,
			`INSERT INTO chat_groups (name, owner, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{group, owner, now}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return core.ErrGroupExists
		}
		return sqlitex.Execute(conn,
			`INSERT INTO group_members (group_name, username, joined_at) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{group, owner, now}})
	})
}

func (s *Store) AddMember(ctx context.Context, group, username string) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		ok, err := exists(conn, `SELECT 1 FROM chat_groups WHERE name = ?`, group)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrGroupNotFound
		}
		ok, err = exists(conn, `SELECT 1 FROM users WHERE username = ?`, username)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrUserNotFound
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO group_members (group_name, username, joined_at) VALUES (?, ?, ?)
			 ON CONFLICT (group_name, username) DO NOTHING`,
			&sqlitex.ExecOptions{Args: []any{group, username, s.now().UnixMilli()}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return core.ErrAlreadyMember
		}
		return nil
	})
}

func (s *Store) RemoveMember(ctx context.Context, group, username string) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`DELETE FROM group_members WHERE group_name = ? AND username = ?`,
			&sqlitex.ExecOptions{Args: []any{group, username}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return core.ErrNotMember
		}
		return nil
	})
}

func (s *Store) IsMember(ctx context.Context, group, username string) (bool, error) {
	var found bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		var err error
		found, err = exists(conn,
			`SELECT 1 FROM group_members WHERE group_name = ? AND username = ?`, group, username)
		return err
	})
	return found, err
}

func (s *Store) GroupMembers(ctx context.Context, group string) ([]string, error) {
	var members []string
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT username FROM group_members WHERE group_name = ? ORDER BY username`,
			&sqlitex.ExecOptions{
				Args: []any{group},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					members = append(members, stmt.ColumnText(0))
					return nil
				},
			})
	})
	return members, err
}

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	audio := 0
	if m.Audio {
		audio = 1
	}
	return s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO messages (kind, sender, target, body, audio, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{string(m.Kind), m.Sender, m.Target, m.Body, audio, created.UnixMilli()}})
	})
}

func (s *Store) PublicHistory(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	return s.history(ctx, `kind = 'public'`, limit)
}

func (s *Store) GroupHistory(ctx context.Context, group string, limit int) ([]domain.ChatMessage, error) {
	return s.history(ctx, `kind = 'group' AND target = ?`, limit, group)
}

func (s *Store) PrivateHistory(ctx context.Context, a, b string, limit int) ([]domain.ChatMessage, error) {
	return s.history(ctx,
		`kind = 'private' AND ((sender = ? AND target = ?) OR (sender = ? AND target = ?))`,
		limit, a, b, b, a)
}

// history returns the newest limit rows matching where, oldest first.
func (s *Store) history(ctx context.Context, where string, limit int, args ...any) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT kind, sender, target, body, audio, created_at FROM (
		SELECT id, kind, sender, target, body, audio, created_at FROM messages
		WHERE ` + where + ` ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`
	var out []domain.ChatMessage
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: append(args, limit),
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, domain.ChatMessage{
					Kind:      domain.MessageKind(stmt.ColumnText(0)),
					Sender:    stmt.ColumnText(1),
					Target:    stmt.ColumnText(2),
					Body:      stmt.ColumnText(3),
					Audio:     stmt.ColumnInt64(4) != 0,
					CreatedAt: time.UnixMilli(stmt.ColumnInt64(5)),
				})
				return nil
			},
		})
	})
	return out, err
}

func exists(conn *sqlite.Conn, query string, args ...any) (bool, error) {
	var found bool
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	return found, err
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/studysimplify/internal/model"

	_ "modernc.org/sqlite"
)

const (
	// DefaultSessionTTL is how long an idle session is kept.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultBusyTimeout is how long a busy flag blocks a repeated action.
	DefaultBusyTimeout = 10 * time.Minute
)

// ErrStaleSession is returned when a write targets a session that was cleared
// (or removed) after the caller loaded it.
var ErrStaleSession = errors.New("session changed since it was loaded")

type Store struct {
	db          *sql.DB
	ttl         time.Duration
	busyTimeout time.Duration
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, ttl: DefaultSessionTTL, busyTimeout: DefaultBusyTimeout}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetSessionTTL changes the idle lifetime applied on create and save.
func (s *Store) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		epoch INTEGER NOT NULL DEFAULT 0,
		transcript TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		objective TEXT NOT NULL DEFAULT '',
		subjective TEXT NOT NULL DEFAULT '',
		quiz TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_actions (
		session_id TEXT NOT NULL,
		action TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, action),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession starts an empty session.
func (s *Store) CreateSession() (*model.SessionState, error) {
	now := time.Now()
	sess := &model.SessionState{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, epoch, created_at, expires_at) VALUES (?, 0, ?, ?)`,
		sess.ID, now, sess.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession returns the session for id, or nil if it does not exist or has expired.
func (s *Store) GetSession(id string) (*model.SessionState, error) {
	sess, err := scanSession(s.db.QueryRow(selectSession, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteSession(id)
		return nil, nil
	}
	return sess, nil
}

// Update loads the session inside a transaction, applies fn and writes the
// result back. It returns ErrStaleSession if the session is gone or its epoch
// no longer matches. Returning an error from fn aborts the update. fn must not
// call back into the Store: the transaction holds the only connection.
func (s *Store) Update(id string, epoch int64, fn func(*model.SessionState) error) (*model.SessionState, error) {
	return s.update(id, epoch, false, fn)
}

// Replace is Update for changes that start the session over with new content,
// such as a new transcript. It advances the epoch and drops the busy flags, so
// responses to requests started before it are discarded like after
// ClearSession.
func (s *Store) Replace(id string, epoch int64, fn func(*model.SessionState) error) (*model.SessionState, error) {
	return s.update(id, epoch, true, fn)
}

func (s *Store) update(id string, epoch int64, advance bool, fn func(*model.SessionState) error) (*model.SessionState, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(selectSession, id))
	if err == sql.ErrNoRows {
		return nil, ErrStaleSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess.Epoch != epoch || time.Now().After(sess.ExpiresAt) {
		return nil, ErrStaleSession
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.write(tx, sess); err != nil {
		return nil, err
	}
	if advance {
		if _, err := tx.Exec(`UPDATE sessions SET epoch = epoch + 1 WHERE id = ?`, id); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM session_actions WHERE session_id = ?`, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if advance {
		sess.Epoch++
	}
	return sess, nil
}

const selectSession = `SELECT id, epoch, transcript, summary, objective, subjective, quiz, expires_at
	FROM sessions WHERE id = ?`

func scanSession(row *sql.Row) (*model.SessionState, error) {
	var (
		sess                                                model.SessionState
		transcript, summary, objective, subjective, quizRaw string
		expires                                             int64
	)
	err := row.Scan(&sess.ID, &sess.Epoch, &transcript, &summary, &objective, &subjective, &quizRaw, &expires)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = time.UnixMilli(expires)

	fields := []struct {
		raw  string
		dest any
	}{
		{transcript, &sess.Transcript},
		{summary, &sess.Summary},
		{objective, &sess.Objective},
		{subjective, &sess.Subjective},
		{quizRaw, &sess.Quiz},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	}
	return &sess, nil
}

// SaveSession writes the session's artifacts and extends its lifetime. It
// returns ErrStaleSession if the session was cleared since it was loaded.
func (s *Store) SaveSession(sess *model.SessionState) error {
	return s.write(s.db, sess)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) write(db execer, sess *model.SessionState) error {
	transcript, err := encode(sess.Transcript)
	if err != nil {
		return err
	}
	summary, err := encode(sess.Summary)
	if err != nil {
		return err
	}
	objective, err := encode(sess.Objective)
	if err != nil {
		return err
	}
	subjective, err := encode(sess.Subjective)
	if err != nil {
		return err
	}
	quizRaw, err := encode(sess.Quiz)
	if err != nil {
		return err
	}

	expires := time.Now().Add(s.ttl)
	res, err := db.Exec(
		`UPDATE sessions SET transcript = ?, summary = ?, objective = ?, subjective = ?, quiz = ?, expires_at = ?
		 WHERE id = ? AND epoch = ?`,
		transcript, summary, objective, subjective, quizRaw, expires.UnixMilli(), sess.ID, sess.Epoch,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleSession
	}
	sess.ExpiresAt = expires
	return nil
}

// Touch restarts the idle lifetime of sess without writing its artifacts.
func (s *Store) Touch(sess *model.SessionState) error {
	expires := time.Now().Add(s.ttl)
	if _, err := s.db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, expires.UnixMilli(), sess.ID); err != nil {
		return err
	}
	sess.ExpiresAt = expires
	return nil
}

// ClearSession drops every artifact of the session and advances its epoch so
// that responses to requests started earlier are discarded.
func (s *Store) ClearSession(sess *model.SessionState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE sessions SET epoch = epoch + 1, transcript = '', summary = '', objective = '', subjective = '', quiz = ''
		 WHERE id = ?`, sess.ID,
	)
	if err != nil {
		return err
	}
	var epoch int64
	if err := tx.QueryRow(`SELECT epoch FROM sessions WHERE id = ?`, sess.ID).Scan(&epoch); err != nil {
		if err == sql.ErrNoRows {
			return ErrStaleSession
		}
		return err
	}
	if _, err := tx.Exec(`DELETE FROM session_actions WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	sess.Clear()
	sess.Epoch = epoch
	return nil
}

// DeleteSession removes a session and its busy flags.
func (s *Store) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM session_actions WHERE session_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions removes all expired sessions and returns how many were removed.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	now := time.Now().UnixMilli()
	if _, err := s.db.Exec(
		`DELETE FROM session_actions WHERE session_id IN (SELECT id FROM sessions WHERE expires_at < ?)`, now,
	); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

func encode[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package store

import (
	"time"

	"github.com/pavelanni/studysimplify/internal/model"
)

// SetBusyTimeout changes how long a busy flag is honored. A flag older than
// this is treated as abandoned and may be claimed again.
func (s *Store) SetBusyTimeout(d time.Duration) {
	if d > 0 {
		s.busyTimeout = d
	}
}

// BeginAction claims the busy flag for action in the given session epoch.
// It returns false if the action is already in flight.
func (s *Store) BeginAction(sessionID string, action model.Action, epoch int64) (bool, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO session_actions (session_id, action, epoch, started_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, action) DO UPDATE SET epoch = excluded.epoch, started_at = excluded.started_at
		 WHERE session_actions.started_at < ?`,
		sessionID, action, epoch, now.UnixMilli(), now.Add(-s.busyTimeout).UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EndAction releases the busy flag for action if it is still held by epoch.
// A flag claimed after the session was cleared is left alone.
func (s *Store) EndAction(sessionID string, action model.Action, epoch int64) error {
	_, err := s.db.Exec(
		`DELETE FROM session_actions WHERE session_id = ? AND action = ? AND epoch = ?`,
		sessionID, action, epoch,
	)
	return err
}

// BusyActions returns the actions currently in flight for a session.
func (s *Store) BusyActions(sessionID string) (map[model.Action]bool, error) {
	rows, err := s.db.Query(
		`SELECT action FROM session_actions WHERE session_id = ? AND started_at >= ?`,
		sessionID, time.Now().Add(-s.busyTimeout).UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	busy := make(map[model.Action]bool)
	for rows.Next() {
		var a model.Action
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		busy[a] = true
	}
	return busy, rows.Err()
}

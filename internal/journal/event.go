package journal

import (
	"database/sql"
	"time"
)

// EventKind classifies journal events.
type EventKind string

const (
	EventTakeOff EventKind = "takeoff"
	EventLand    EventKind = "land"
	EventWarning EventKind = "warning"
	EventError   EventKind = "error"
)

// Event is a notable moment of a session.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	At         time.Time `json:"at"`
	Kind       EventKind `json:"kind"`
	Detail     string    `json:"detail"`
	BatteryPct int       `json:"battery_pct"`
	AltitudeCM int       `json:"altitude_cm"`
}

// EventRepository provides access to session events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this journal.
func (j *Journal) Events() *EventRepository {
	return &EventRepository{db: j.db}
}

// Add inserts e and sets its ID.
func (r *EventRepository) Add(e *Event) error {
	result, err := r.db.Exec(
		`INSERT INTO events (session_id, at, kind, detail, battery_pct, altitude_cm)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.At, string(e.Kind), e.Detail, e.BatteryPct, e.AltitudeCM,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession returns the events of a session in chronological order.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, at, kind, detail, battery_pct, altitude_cm
		 FROM events WHERE session_id = ? ORDER BY at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.At, &kind, &e.Detail, &e.BatteryPct, &e.AltitudeCM); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}

	return events, rows.Err()
}

// CountByKind returns how many events of kind a session recorded.
func (r *EventRepository) CountByKind(sessionID string, kind EventKind) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND kind = ?`,
		sessionID, string(kind),
	).Scan(&n)
	return n, err
}

package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/trustledger/internal/trust"
	"go.uber.org/zap"
)

// defaultListLimit caps queries that pass limit <= 0.
const defaultListLimit = 100

// Entry is one persisted ledger event.
type Entry struct {
	ID            int64          `json:"id"`
	EventID       string         `json:"event_id"`
	Type          string         `json:"type"`
	UserID        string         `json:"user_id,omitempty"`
	Amount        float64        `json:"amount"`
	PreviousScore float64        `json:"previous_score"`
	NewScore      float64        `json:"new_score"`
	Reason        string         `json:"reason,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	OccurredAt    int64          `json:"occurred_at"` // unix millis
}

// Time returns OccurredAt as a time.Time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.OccurredAt)
}

// Record stores one event. Re-recording the same event id is a no-op.
func (db *DB) Record(ev trust.Event) error {
	var data []byte
	if len(ev.Data) > 0 {
		var err error
		data, err = json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
	}

	_, err := db.Exec(`
		INSERT INTO audit_events (event_id, event_type, user_id, amount, previous_score, new_score, reason, data, occurred_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, ev.ID, string(ev.Type), ev.UserID, ev.Amount, ev.PreviousScore, ev.NewScore,
		ev.Reason, nullableText(data), ev.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.ID, err)
	}
	return nil
}

// HandleEvent implements trust.Sink. Write failures are logged; the ledger
// never waits on the audit log.
func (db *DB) HandleEvent(ev trust.Event) {
	if err := db.Record(ev); err != nil {
		db.log.Error("audit: record failed",
			zap.String("event", string(ev.Type)),
			zap.String("user", ev.UserID),
			zap.Error(err))
	}
}

// ListByUser returns a user's events, newest first.
func (db *DB) ListByUser(userID string, limit int) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT id, event_id, event_type, user_id, amount, previous_score, new_score, reason, data, occurred_at
		FROM audit_events WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?
	`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list events by user: %w", err)
	}
	return scanEntries(rows)
}

// ListByType returns events of one type, newest first.
func (db *DB) ListByType(eventType trust.EventType, limit int) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT id, event_id, event_type, user_id, amount, previous_score, new_score, reason, data, occurred_at
		FROM audit_events WHERE event_type = ? ORDER BY occurred_at DESC, id DESC LIMIT ?
	`, string(eventType), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list events by type: %w", err)
	}
	return scanEntries(rows)
}

// Count returns the number of stored events.
func (db *DB) Count() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var userID, reason, data sql.NullString
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &userID, &e.Amount, &e.PreviousScore,
			&e.NewScore, &reason, &data, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.UserID = userID.String
		e.Reason = reason.String
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("decode event %s data: %w", e.EventID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

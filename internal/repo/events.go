package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tableside/internal/domain"
)

// EventFilter narrows event queries. Empty fields match everything.
type EventFilter struct {
	RestaurantID string
	Type         string
	EntityKind   string
	EntityID     string
}

func (f EventFilter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.RestaurantID != "" {
		clauses = append(clauses, "restaurant_id=?")
		args = append(args, f.RestaurantID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	return clauses, args
}

// LatestEvents returns events newest first. A positive cursor returns events older than it.
func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, f EventFilter) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses, args := f.clauses()
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(restaurant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, restaurantID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses, args := EventFilter{RestaurantID: restaurantID}.clauses()
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(restaurant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id ASC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.RestaurantID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, or 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// WebhookCursor returns the last delivered event id for a hook.
func (r Repo) WebhookCursor(ctx context.Context, hookID string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT last_event_id FROM webhook_cursors WHERE hook_id=?`, hookID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (r Repo) SetWebhookCursor(ctx context.Context, hookID string, eventID int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhook_cursors(hook_id,last_event_id,updated_at) VALUES (?,?,?)
ON CONFLICT(hook_id) DO UPDATE SET last_event_id=excluded.last_event_id, updated_at=excluded.updated_at`,
		hookID, eventID, time.Now().UTC().Format(time.RFC3339))
	return err
}

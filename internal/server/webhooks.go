package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher posts logged events to configured hooks. Each hook keeps a
// persisted cursor, so a restart resumes after the last delivered event.
type WebhookDispatcher struct {
	Repo         repo.Repo
	RestaurantID string
	Hooks        []config.Webhook
	Client       *http.Client
	Interval     time.Duration
	Log          *zap.SugaredLogger
}

// Run dispatches until ctx is done.
func (d WebhookDispatcher) Run(ctx context.Context) error {
	if len(d.Hooks) == 0 {
		return nil
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchAll runs one delivery round for every hook.
func (d WebhookDispatcher) DispatchAll(ctx context.Context) {
	for _, hook := range d.Hooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		if err := d.dispatch(ctx, hook); err != nil && ctx.Err() == nil {
			d.logger().Warnw("webhook delivery stalled", "hook", hookID(hook), "url", hook.URL, "error", err)
		}
	}
}

func (d WebhookDispatcher) logger() *zap.SugaredLogger {
	if d.Log != nil {
		return d.Log
	}
	return zap.NewNop().Sugar()
}

func hookID(hook config.Webhook) string {
	if hook.ID != "" {
		return hook.ID
	}
	return hook.URL
}

func (d WebhookDispatcher) dispatch(ctx context.Context, hook config.Webhook) error {
	id := hookID(hook)
	cursor, err := d.cursorFor(ctx, id)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	events, err := d.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, d.RestaurantID)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if filter.match(evt.Type) {
			if err := d.postEvent(ctx, hook, evt); err != nil {
				return err
			}
		}
		if err := d.Repo.SetWebhookCursor(ctx, id, evt.ID); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
	}
	return nil
}

// cursorFor starts new hooks at the current end of the log.
func (d WebhookDispatcher) cursorFor(ctx context.Context, id string) (int64, error) {
	cur, err := d.Repo.WebhookCursor(ctx, id)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return 0, err
	}
	cur, err = d.Repo.LatestEventID(ctx)
	if err != nil {
		return 0, err
	}
	if err := d.Repo.SetWebhookCursor(ctx, id, cur); err != nil {
		return 0, err
	}
	return cur, nil
}

type webhookEvent struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	RestaurantID string          `json:"restaurant_id"`
	EntityKind   string          `json:"entity_kind"`
	EntityID     string          `json:"entity_id,omitempty"`
	ActorID      string          `json:"actor_id"`
	TS           string          `json:"ts"`
	Payload      json.RawMessage `json:"payload"`
}

func (d WebhookDispatcher) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:           evt.ID,
		Type:         evt.Type,
		RestaurantID: evt.RestaurantID,
		EntityKind:   evt.EntityKind,
		EntityID:     evt.EntityID,
		ActorID:      evt.ActorID,
		TS:           evt.TS,
		Payload:      payload,
	})
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tableside-Event", evt.Type)
	req.Header.Set("X-Tableside-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Tableside-Restaurant", d.RestaurantID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Tableside-Signature", "sha256="+Sign(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	d.logger().Debugw("webhook delivered", "hook", hookID(hook), "event_id", evt.ID, "type", evt.Type)
	return nil
}

// Sign is the hex HMAC-SHA256 of body under secret, as sent in X-Tableside-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}

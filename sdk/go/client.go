// Package tablesidesdk is a small client for the Tableside HTTP API.
package tablesidesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Tableside HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// OrderItem is one line of an order. Money is a decimal string.
type OrderItem struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name,omitempty"`
	Quantity  int               `json:"quantity"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
	UnitPrice string            `json:"unit_price,omitempty"`
}

// Order mirrors the API order model.
type Order struct {
	ID          string               `json:"id"`
	Table       string               `json:"table,omitempty"`
	Items       []OrderItem          `json:"items"`
	Status      string               `json:"status"`
	Note        string               `json:"note,omitempty"`
	Total       string               `json:"total,omitempty"`
	CreatedAt   *time.Time           `json:"created_at,omitempty"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
	StatusTimes map[string]time.Time `json:"status_times,omitempty"`
	Priority    *int                 `json:"priority,omitempty"`
}

// Orders is the order listing with the kitchen queue.
type Orders struct {
	Items []Order  `json:"items"`
	Queue []string `json:"queue"`
}

type QueueEntry struct {
	Position int    `json:"position"`
	Order    Order  `json:"order"`
	Waiting  string `json:"waiting,omitempty"`
}

type CartLine struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name,omitempty"`
	Quantity  int               `json:"quantity"`
	Modifiers map[string]string `json:"modifiers,omitempty"`
	UnitPrice string            `json:"unit_price"`
	LineTotal string            `json:"line_total"`
}

type Cart struct {
	Table string     `json:"table"`
	Lines []CartLine `json:"lines"`
	Total string     `json:"total"`
}

type MenuItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// Event represents a log entry.
type Event struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts"`
	Type         string         `json:"type"`
	RestaurantID string         `json:"restaurant_id"`
	EntityKind   string         `json:"entity_kind"`
	EntityID     string         `json:"entity_id"`
	ActorID      string         `json:"actor_id"`
	Payload      map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type ClearResult struct {
	Cleared  int      `json:"cleared"`
	Archived []string `json:"archived"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListOrders returns every known order, optionally filtered by status.
func (c *Client) ListOrders(ctx context.Context, status string) (Orders, error) {
	endpoint := "v0/orders"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp Orders
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "v0/orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// GetQueue returns the kitchen queue, head first.
func (c *Client) GetQueue(ctx context.Context) ([]QueueEntry, error) {
	var resp []QueueEntry
	err := c.do(ctx, http.MethodGet, "v0/queue", nil, &resp)
	return resp, err
}

// UpdateStatus announces a status change for an order.
func (c *Client) UpdateStatus(ctx context.Context, orderID, status string) (Order, error) {
	var resp Order
	endpoint := fmt.Sprintf("v0/orders/%s/status", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// ClearOrders ends the shift, archiving first when archive is set.
func (c *Client) ClearOrders(ctx context.Context, archive bool) (ClearResult, error) {
	var resp ClearResult
	endpoint := "v0/orders"
	if archive {
		endpoint += "?archive=true"
	}
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

// AddLine adds an item to a table's cart.
func (c *Client) AddLine(ctx context.Context, table, itemID string, quantity int, modifiers map[string]string) (Cart, error) {
	body := map[string]any{
		"item_id":  itemID,
		"quantity": quantity,
	}
	if len(modifiers) > 0 {
		body["modifiers"] = modifiers
	}
	var resp Cart
	err := c.do(ctx, http.MethodPost, c.tablePath(table, "cart/lines"), body, &resp)
	return resp, err
}

// GetCart returns a table's cart.
func (c *Client) GetCart(ctx context.Context, table string) (Cart, error) {
	var resp Cart
	err := c.do(ctx, http.MethodGet, c.tablePath(table, "cart"), nil, &resp)
	return resp, err
}

// SubmitCart turns a table's cart into a placed order.
func (c *Client) SubmitCart(ctx context.Context, table, note string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, c.tablePath(table, "cart/submit"), map[string]any{"note": note}, &resp)
	return resp, err
}

// Menu lists menu items.
func (c *Client) Menu(ctx context.Context, category string) ([]MenuItem, error) {
	endpoint := "v0/menu"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}
	var resp []MenuItem
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DevLogin asks a development server for a token and keeps it for later calls.
func (c *Client) DevLogin(ctx context.Context, actorID string, roles []string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID, "roles": roles}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) tablePath(table, p string) string {
	return fmt.Sprintf("v0/tables/%s/%s", url.PathEscape(table), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"tableside/internal/archive"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/domain"
	"tableside/internal/events"
	"tableside/internal/ledger"
	"tableside/internal/menu"
	"tableside/internal/migrate"
	"tableside/internal/repo"
	"tableside/internal/session"
)

const testSecret = "test-secret"

type testServer struct {
	URL        string
	client     *http.Client
	close      func()
	orders     *session.Orders
	archiveDir string
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("bistro")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := zaptest.NewLogger(t).Sugar()
	writer := events.Writer{RestaurantID: cfg.Restaurant.ID}
	catalog := menu.Catalog{Repo: repo.Repo{DB: conn}, Events: writer}
	if err := catalog.Import(context.Background(), "tester", testMenu()); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	orders := session.NewOrders(ledger.New(), nil, log)
	orders.Subscribe(events.Recorder{DB: conn, Writer: writer, Log: log}.OnChange)
	archiveDir := filepath.Join(workspace, "archive")
	handler, err := New(Config{
		Orders:   orders,
		Carts:    session.NewCarts(nil, log),
		Menu:     catalog,
		Repo:     repo.Repo{DB: conn},
		App:      cfg,
		Archive:  []archive.Store{archive.Dir{Path: archiveDir}},
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true},
		Log:      log,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:        "http://" + ln.Addr().String(),
		client:     &http.Client{},
		orders:     orders,
		archiveDir: archiveDir,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func testMenu() []domain.MenuItem {
	return []domain.MenuItem{
		{
			ID:        "burger",
			Name:      "Burger",
			Category:  "mains",
			Price:     decimal.RequireFromString("5.00"),
			Available: true,
			Modifiers: []domain.Modifier{{
				ID:   "cheese",
				Name: "Cheese",
				Max:  1,
				Options: []domain.ModifierOption{
					{ID: "cheddar", Name: "Cheddar", PriceDelta: decimal.RequireFromString("0.50")},
					{ID: "none", Name: "No cheese", PriceDelta: decimal.Zero},
				},
			}},
		},
		{ID: "lemonade", Name: "Lemonade", Category: "drinks", Price: decimal.RequireFromString("3.20"), Available: false},
	}
}

func bearer(t *testing.T, actor string, roles ...string) map[string]string {
	t.Helper()
	token, err := SignToken(testSecret, actor, roles, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v: %s", err, string(data))
	}
	return env.Error
}

func TestCartTotalAndSubmit(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	cartURL := srv.URL + "/v0/tables/12/cart"

	res, data := doJSON(t, client, http.MethodPost, cartURL+"/lines", map[string]any{
		"item_id":   "burger",
		"quantity":  2,
		"modifiers": map[string]string{"cheese": "cheddar"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add line status %d: %s", res.StatusCode, string(data))
	}
	var c CartResponse
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal cart: %v", err)
	}
	if c.Total != "11.00" || len(c.Lines) != 1 || c.Lines[0].UnitPrice != "5.50" {
		t.Fatalf("unexpected cart: %+v", c)
	}

	res, data = doJSON(t, client, http.MethodPost, cartURL+"/lines", map[string]any{
		"item_id":   "burger",
		"modifiers": map[string]string{"cheese": "cheddar"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add line status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 3 || c.Total != "16.50" {
		t.Fatalf("expected merged line, got %+v", c)
	}

	res, data = doJSON(t, client, http.MethodPost, cartURL+"/submit", map[string]any{"note": "no onions"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	var order OrderResponse
	if err := json.Unmarshal(data, &order); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if order.ID == "" || order.Status != string(domain.StatusPlaced) || order.Table != "12" || order.Total != "16.50" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != "5.50" || order.Items[0].Name != "Burger" {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}
	if _, ok := srv.orders.Order(order.ID); !ok {
		t.Fatalf("submitted order missing from ledger")
	}

	_, data = doJSON(t, client, http.MethodGet, cartURL, nil, nil)
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 0 || c.Total != "0.00" {
		t.Fatalf("cart should be empty after submit: %+v", c)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=order.submitted", nil, bearer(t, "mia", "manager"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].EntityID != order.ID || page.Items[0].ActorID != "table:12" {
		t.Fatalf("unexpected events: %+v", page.Items)
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tables/3/cart/submit", nil, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "empty_cart" {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestAddUnavailableItem(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tables/3/cart/lines", map[string]any{"item_id": "lemonade"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tables/3/cart/lines", map[string]any{"item_id": "ghost"}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCartLineEdits(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	cartURL := srv.URL + "/v0/tables/5/cart"

	res, data := doJSON(t, client, http.MethodPut, cartURL+"/lines", map[string]any{
		"lines": []map[string]any{
			{"item_id": "burger", "quantity": 1, "modifiers": map[string]string{"cheese": "cheddar"}},
			{"item_id": "burger", "quantity": 1, "modifiers": map[string]string{"cheese": "none"}},
			{"item_id": "lemonade", "quantity": 2},
		},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set lines status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, cartURL+"/lines/1", map[string]any{
		"modifiers": map[string]string{"cheese": "cheddar"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update modifiers status %d: %s", res.StatusCode, string(data))
	}
	var c CartResponse
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 2 || c.Lines[0].Quantity != 2 {
		t.Fatalf("expected burger lines merged, got %+v", c.Lines)
	}

	res, data = doJSON(t, client, http.MethodPatch, cartURL+"/lines/9", map[string]any{"modifiers": map[string]string{}}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for bad index, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, cartURL+"/items/burger", map[string]any{"quantity": 0}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set quantity status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &c)
	if c.Lines[0].Quantity != 1 {
		t.Fatalf("expected coerced quantity 1, got %d", c.Lines[0].Quantity)
	}

	res, data = doJSON(t, client, http.MethodDelete, cartURL+"/items/burger", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remove status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 1 || c.Lines[0].ItemID != "lemonade" || c.Total != "6.40" {
		t.Fatalf("unexpected cart after remove: %+v", c)
	}

	res, data = doJSON(t, client, http.MethodDelete, cartURL, nil, nil)
	_ = json.Unmarshal(data, &c)
	if res.StatusCode != http.StatusOK || len(c.Lines) != 0 {
		t.Fatalf("clear status %d: %s", res.StatusCode, string(data))
	}
}

func TestStatusUpdatesDriveQueue(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	waiter := bearer(t, "walt", "waiter")
	cook := bearer(t, "carla", "cook")

	for _, id := range []string{"A", "B", "C"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{"id": id, "table": "1"}, waiter)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("upsert %s status %d: %s", id, res.StatusCode, string(data))
		}
	}
	for _, id := range []string{"B", "A", "C"} {
		res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/orders/"+id+"/status", map[string]any{"status": "preparing"}, cook)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status %s: %d %s", id, res.StatusCode, string(data))
		}
	}
	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/orders/B/status", map[string]any{"status": "READY"}, cook)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ready status %d: %s", res.StatusCode, string(data))
	}
	var b OrderResponse
	_ = json.Unmarshal(data, &b)
	if b.Priority != nil || b.Status != "READY" {
		t.Fatalf("ready order should have no priority: %+v", b)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/queue", nil, cook)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("queue status %d: %s", res.StatusCode, string(data))
	}
	var queue []QueueEntry
	if err := json.Unmarshal(data, &queue); err != nil {
		t.Fatalf("unmarshal queue: %v", err)
	}
	if len(queue) != 2 || queue[0].Order.ID != "A" || queue[1].Order.ID != "C" {
		t.Fatalf("unexpected queue: %+v", queue)
	}
	for i, entry := range queue {
		if entry.Position != i+1 || entry.Order.Priority == nil || *entry.Order.Priority != i+1 {
			t.Fatalf("entry %d priority mismatch: %+v", i, entry)
		}
		if entry.Waiting == "" {
			t.Fatalf("entry %d has no waiting time", i)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orders?status=preparing", nil, cook)
	var list OrdersResponse
	_ = json.Unmarshal(data, &list)
	if res.StatusCode != http.StatusOK || len(list.Items) != 2 || len(list.Queue) != 2 {
		t.Fatalf("filtered list %d: %s", res.StatusCode, string(data))
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	cook := bearer(t, "carla", "cook")

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/orders/ghost/status", map[string]any{"status": "READY"}, cook)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "order_not_found" || body.Details["order_id"] != "ghost" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	srv.orders.Upsert(context.Background(), "test", domain.Order{ID: "o1"})
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/orders/o1/status", map[string]any{"status": "COOKING"}, cook)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "invalid_status" {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestPermissions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/orders", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "unauthorized" {
		t.Fatalf("unexpected error code %q", body.Code)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orders", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{"id": "x"}, bearer(t, "carla", "cook"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cook upsert, got %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Details["permission"] != config.PermOrdersWrite {
		t.Fatalf("unexpected details: %+v", body)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/menu", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("guest menu status %d: %s", res.StatusCode, string(data))
	}
	var items []MenuItemResponse
	_ = json.Unmarshal(data, &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 menu items, got %d", len(items))
	}

	res, _ = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/menu/lemonade/availability", map[string]any{"available": true}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("guest availability change should be 401, got %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/menu/lemonade/availability", map[string]any{"available": true}, bearer(t, "mia", "manager"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("manager availability status %d: %s", res.StatusCode, string(data))
	}
}

func TestReplaceOrders(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	waiter := bearer(t, "walt", "waiter")
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/orders", map[string]any{
		"orders": []map[string]any{
			{"id": "late", "status": "PREPARING", "created_at": "2026-10-18T12:05:00Z"},
			{"id": "early", "status": "PREPARING", "created_at": "2026-10-18T12:00:00Z", "total": "9.90"},
			{"id": "done", "status": "PAID"},
		},
	}, waiter)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("replace status %d: %s", res.StatusCode, string(data))
	}
	var list OrdersResponse
	_ = json.Unmarshal(data, &list)
	if len(list.Items) != 3 || len(list.Queue) != 2 || list.Queue[0] != "early" || list.Queue[1] != "late" {
		t.Fatalf("unexpected replace result: %+v", list)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/orders", map[string]any{
		"orders": []map[string]any{{"id": "x", "total": "lots"}},
	}, waiter)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad total, got %d: %s", res.StatusCode, string(data))
	}
}

func TestClearOrdersWithArchive(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	srv.orders.Upsert(ctx, "test", domain.Order{ID: "o1", Status: domain.StatusPaid})
	srv.orders.Upsert(ctx, "test", domain.Order{ID: "o2", Status: domain.StatusPreparing})

	res, _ := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/orders", nil, bearer(t, "walt", "waiter"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("waiter clear should be 403, got %d", res.StatusCode)
	}

	res, data := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/orders?archive=true", nil, bearer(t, "mia", "manager"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clear status %d: %s", res.StatusCode, string(data))
	}
	var out ClearOrdersResponse
	_ = json.Unmarshal(data, &out)
	if out.Cleared != 2 || len(out.Archived) != 1 {
		t.Fatalf("unexpected clear result: %+v", out)
	}
	raw, err := os.ReadFile(out.Archived[0])
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var shift archive.Shift
	if err := json.Unmarshal(raw, &shift); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if shift.ClosedBy != "mia" || shift.Summary.Orders != 2 || filepath.Dir(out.Archived[0]) != srv.archiveDir {
		t.Fatalf("unexpected shift: %+v", shift)
	}
	if snap := srv.orders.Snapshot(); len(snap.Orders) != 0 || len(snap.Queue) != 0 {
		t.Fatalf("ledger not cleared: %+v", snap)
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "carla",
		"roles":    []string{"cook"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.ActorID != "carla" || who.Source != "jwt" || len(who.Permissions) != 2 {
		t.Fatalf("unexpected principal: %+v", who)
	}
}

func TestOpenAPIIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	paths := doc["paths"].(map[string]any)
	submit, ok := paths["/v0/tables/{table}/cart/submit"].(map[string]any)
	if !ok {
		t.Fatalf("submit route missing from openapi")
	}
	if sec, _ := submit["post"].(map[string]any)["security"].([]any); len(sec) != 0 {
		t.Fatalf("guest route should not require auth, got %v", sec)
	}
	listOrders := paths["/v0/orders"].(map[string]any)["get"].(map[string]any)
	if sec, _ := listOrders["security"].([]any); len(sec) != 1 {
		t.Fatalf("orders route should require bearer auth, got %v", sec)
	}
	if _, ok := listOrders["responses"].(map[string]any)["default"]; !ok {
		t.Fatalf("default error response missing")
	}
}

func TestCartFollowsMenuPriceChanges(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	cartURL := srv.URL + "/v0/tables/8/cart"

	res, data := doJSON(t, client, http.MethodPost, cartURL+"/lines", map[string]any{"item_id": "burger"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add line status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/tables/9/cart/lines", map[string]any{
		"lines": []map[string]any{{"item_id": "lemonade", "quantity": 2}},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set lines status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/menu", map[string]any{
		"items": []map[string]any{{"id": "burger", "name": "Burger", "category": "mains", "price": "9.00"}},
	}, bearer(t, "mia", "manager"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("import menu status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, cartURL+"/lines", map[string]any{"item_id": "burger"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add line status %d: %s", res.StatusCode, string(data))
	}
	var c CartResponse
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 2 || c.Lines[0].UnitPrice != "9.00" || c.Total != "18.00" {
		t.Fatalf("cart kept the old price: %+v", c)
	}

	// lemonade left the menu; the line stays but is no longer charged
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tables/9/cart", nil, nil)
	_ = json.Unmarshal(data, &c)
	if len(c.Lines) != 1 || c.Lines[0].ItemID != "lemonade" || c.Total != "0.00" {
		t.Fatalf("unexpected cart for removed item: %+v", c)
	}

	res, data = doJSON(t, client, http.MethodPost, cartURL+"/submit", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	var order OrderResponse
	_ = json.Unmarshal(data, &order)
	if order.Total != "18.00" || len(order.Items) != 1 || order.Items[0].UnitPrice != "9.00" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestRequestBodies(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	manager := bearer(t, "mia", "manager")

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/menu", nil, manager)
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("menu import without body: got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/menu", map[string]any{}, manager)
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("menu import without items: got %d: %s", res.StatusCode, string(data))
	}
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/menu", nil, nil)
	var items []MenuItemResponse
	_ = json.Unmarshal(data, &items)
	if len(items) != 2 {
		t.Fatalf("rejected imports must leave the menu alone, got %d items", len(items))
	}

	huge := map[string]any{"item_id": string(bytes.Repeat([]byte("x"), 2<<20))}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tables/1/cart/lines", huge, nil)
	if res.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", res.StatusCode)
	}
}

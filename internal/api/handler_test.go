package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Fanout/internal/domain"
	"github.com/shaiso/Fanout/internal/downstream"
	"github.com/shaiso/Fanout/internal/fanout"
	"github.com/shaiso/Fanout/internal/gateway"
	"github.com/shaiso/Fanout/internal/health"
	"github.com/shaiso/Fanout/internal/idempotency"
	"github.com/shaiso/Fanout/internal/repo"
	"github.com/shaiso/Fanout/internal/telemetry"
)

// --- fakes ---

type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]domain.User
	createErr error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]domain.User)}
}

func (s *memStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.users[u.ID] = *u
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []domain.User{}
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// memIdempotency — idempotency.Store в памяти.
type memIdempotency struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
}

type idemEntry struct {
	hash string
	resp *idempotency.StoredResponse
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{entries: make(map[string]*idemEntry)}
}

func (m *memIdempotency) Acquire(_ context.Context, req idempotency.Request) (idempotency.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req.Key]
	if !ok {
		m.entries[req.Key] = &idemEntry{hash: req.RequestHash}
		return idempotency.Decision{Type: idempotency.DecisionAcquired}, nil
	}
	if e.hash != req.RequestHash {
		return idempotency.Decision{Type: idempotency.DecisionConflict}, nil
	}
	if e.resp == nil {
		return idempotency.Decision{Type: idempotency.DecisionInProgress}, nil
	}
	return idempotency.Decision{Type: idempotency.DecisionReplay, Response: *e.resp}, nil
}

func (m *memIdempotency) Complete(_ context.Context, req idempotency.Request, resp idempotency.StoredResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[req.Key].resp = &resp
	return nil
}

func (m *memIdempotency) Release(_ context.Context, req idempotency.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, req.Key)
	return nil
}

type fakeStatuses map[string]health.Status

func (f fakeStatuses) Status(target string) (health.Status, bool) {
	st, ok := f[target]
	return st, ok
}

// stub — downstream сервис.
type stub struct {
	server *httptest.Server
	hits   atomic.Int32
	lastID atomic.Value
}

func newStub(t *testing.T, status int, body string) *stub {
	t.Helper()
	s := &stub{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.lastID.Store(r.Header.Get(telemetry.HeaderRequestID))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func target(name, entity, baseURL string) *domain.Target {
	return &domain.Target{
		Name:       name,
		Entity:     entity,
		Service:    name + "-service",
		BaseURL:    baseURL,
		CreatePath: "/api/" + name,
		ListPath:   "/api/" + name,
		HealthPath: "/health",
		Timeout:    500 * time.Millisecond,
	}
}

type testEnv struct {
	mux   *http.ServeMux
	store *memStore
	reg   *prometheus.Registry
}

func newTestEnv(t *testing.T, cfg Config, targets ...*domain.Target) *testEnv {
	t.Helper()
	store := newMemStore()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	cfg.Service = gateway.NewService(gateway.Config{
		Store:    store,
		Executor: fanout.New(fanout.Config{Caller: downstream.New(downstream.Config{Metrics: metrics})}),
		Targets:  targets,
	})
	cfg.Metrics = metrics

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	return &testEnv{mux: mux, store: store, reg: reg}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// --- tests ---

func TestCreateUser_AllDownstreamsDown(t *testing.T) {
	env := newTestEnv(t, Config{},
		target("items", "item", deadURL(t)),
		target("products", "product", deadURL(t)),
	)

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"alice"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	for _, key := range []string{"user", "createdItem", "createdProduct", "warnings"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response should contain %q: %s", key, rec.Body.String())
		}
	}
	if body["createdItem"] != nil || body["createdProduct"] != nil {
		t.Errorf("created entries should be null: %s", rec.Body.String())
	}
	if warnings := body["warnings"].([]any); len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", warnings)
	}
	if env.store.count() != 1 {
		t.Errorf("user should be stored, got %d", env.store.count())
	}
}

func TestCreateUser_RequestIDPropagation(t *testing.T) {
	items := newStub(t, http.StatusCreated, `{"id":1,"name":"bob"}`)
	env := newTestEnv(t, Config{}, target("items", "item", items.server.URL))

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"bob"}`,
		map[string]string{telemetry.HeaderRequestID: "trace-123"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got := rec.Header().Get(telemetry.HeaderRequestID); got != "trace-123" {
		t.Errorf("request id should be echoed, got %q", got)
	}
	if got := items.lastID.Load(); got != "trace-123" {
		t.Errorf("downstream should receive request id, got %v", got)
	}
}

func TestCreateUser_GeneratesRequestID(t *testing.T) {
	env := newTestEnv(t, Config{}, target("items", "item", deadURL(t)))

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"x"}`, nil)
	if rec.Header().Get(telemetry.HeaderRequestID) == "" {
		t.Error("request id should be generated when absent")
	}
}

func TestCreateUser_BadRequests(t *testing.T) {
	items := newStub(t, http.StatusCreated, `{}`)
	env := newTestEnv(t, Config{}, target("items", "item", items.server.URL))

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"name":`},
		{"missing name", `{"email":"a@b.c"}`},
		{"blank name", `{"name":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/v1/users", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != string(ErrCodeBadRequest) {
				t.Errorf("expected %s, got %s", ErrCodeBadRequest, code)
			}
		})
	}

	if items.hits.Load() != 0 {
		t.Errorf("no downstream calls expected, got %d", items.hits.Load())
	}
}

func TestCreateUser_LocalWriteFailure(t *testing.T) {
	items := newStub(t, http.StatusCreated, `{}`)
	env := newTestEnv(t, Config{}, target("items", "item", items.server.URL))
	env.store.createErr = errors.New("db is down")

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"carol"}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(ErrCodeInternalError) {
		t.Errorf("expected %s, got %s", ErrCodeInternalError, code)
	}
	if items.hits.Load() != 0 {
		t.Error("fan-out must not start after local write failure")
	}
}

func TestForwardCreate(t *testing.T) {
	items := newStub(t, http.StatusCreated, `{"id":42,"name":"widget"}`)
	env := newTestEnv(t, Config{},
		target("items", "item", items.server.URL),
		target("products", "product", deadURL(t)),
	)

	user := domain.NewUser("dave", "")
	env.store.Create(context.Background(), user)
	base := "/api/v1/users/" + user.ID.String()

	t.Run("success passes body through", func(t *testing.T) {
		rec := env.do(http.MethodPost, base+"/items", `{"name":"widget"}`, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if rec.Body.String() != `{"id":42,"name":"widget"}` {
			t.Errorf("body should be passed verbatim, got %s", rec.Body.String())
		}
	})

	t.Run("unreachable target", func(t *testing.T) {
		rec := env.do(http.MethodPost, base+"/products", `{"name":"gadget"}`, nil)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != string(ErrCodeBadGateway) {
			t.Errorf("expected %s, got %s", ErrCodeBadGateway, code)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := env.do(http.MethodPost, base+"/orders", `{"name":"x"}`, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/users/"+uuid.NewString()+"/items", `{"name":"x"}`, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/users/not-a-uuid/items", `{"name":"x"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		rec := env.do(http.MethodPost, base+"/items", `{}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	if items.hits.Load() != 1 {
		t.Errorf("expected exactly 1 call to items, got %d", items.hits.Load())
	}
	if env.store.count() != 1 {
		t.Errorf("proxy must not create local records, got %d", env.store.count())
	}
}

func TestSummary(t *testing.T) {
	items := newStub(t, http.StatusOK, `[{"id":1,"name":"erin"}]`)
	products := newStub(t, http.StatusInternalServerError, `oops`)
	env := newTestEnv(t, Config{},
		target("items", "item", items.server.URL),
		target("products", "product", products.server.URL),
	)

	rec := env.do(http.MethodGet, "/api/v1/summary", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if len(body["items"].([]any)) != 1 {
		t.Errorf("expected 1 item, got %v", body["items"])
	}
	if len(body["products"].([]any)) != 0 {
		t.Errorf("failed target should be [], got %v", body["products"])
	}
	warnings := body["warnings"].([]any)
	if len(warnings) != 1 || warnings[0] != "Failed to fetch products in products-service: upstream status 500" {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if _, ok := body["users"].([]any); !ok {
		t.Errorf("users should be an array: %v", body["users"])
	}
}

func TestUserSummary_NotFound(t *testing.T) {
	items := newStub(t, http.StatusOK, `[]`)
	env := newTestEnv(t, Config{}, target("items", "item", items.server.URL))

	rec := env.do(http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/summary", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(ErrCodeNotFound) {
		t.Errorf("expected %s, got %s", ErrCodeNotFound, code)
	}
	if items.hits.Load() != 0 {
		t.Errorf("no downstream calls expected, got %d", items.hits.Load())
	}
}

func TestUsers_ListAndGet(t *testing.T) {
	env := newTestEnv(t, Config{}, target("items", "item", deadURL(t)))
	user := domain.NewUser("frank", "frank@example.com")
	env.store.Create(context.Background(), user)

	rec := env.do(http.MethodGet, "/api/v1/users", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if total := decodeBody(t, rec)["total"]; total != float64(1) {
		t.Errorf("expected total 1, got %v", total)
	}

	rec = env.do(http.MethodGet, "/api/v1/users/"+user.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["email"] != "frank@example.com" {
		t.Errorf("unexpected user: %v", data)
	}

	rec = env.do(http.MethodGet, "/api/v1/users/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListTargets(t *testing.T) {
	statuses := fakeStatuses{
		"items": {Target: "items", Up: false, Reason: "timeout", CheckedAt: time.Now()},
	}
	env := newTestEnv(t, Config{Statuses: statuses},
		target("items", "item", "http://items:5000"),
		target("products", "product", "http://products:7000"),
	)

	rec := env.do(http.MethodGet, "/api/v1/targets", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data []TargetResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(resp.Data))
	}
	if resp.Data[0].Health == nil || resp.Data[0].Health.Reason != "timeout" {
		t.Errorf("items should carry health status: %+v", resp.Data[0].Health)
	}
	if resp.Data[1].Health != nil {
		t.Errorf("unchecked target should have no health: %+v", resp.Data[1].Health)
	}
	if resp.Data[0].TimeoutMS != 500 {
		t.Errorf("expected timeout 500ms, got %d", resp.Data[0].TimeoutMS)
	}
}

func TestIdempotentCreate(t *testing.T) {
	items := newStub(t, http.StatusCreated, `{"id":1,"name":"gina"}`)
	store := newMemIdempotency()
	env := newTestEnv(t, Config{Idempotency: store}, target("items", "item", items.server.URL))

	headers := map[string]string{idempotency.HeaderKey: "key-1"}

	first := env.do(http.MethodPost, "/api/v1/users", `{"name":"gina"}`, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := env.do(http.MethodPost, "/api/v1/users", `{"name":"gina"}`, headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay should return stored status, got %d", second.Code)
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Error("replayed response should be marked")
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replay body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if env.store.count() != 1 {
		t.Errorf("replay must not create another user, got %d", env.store.count())
	}
	if items.hits.Load() != 1 {
		t.Errorf("replay must not call downstream again, got %d", items.hits.Load())
	}

	conflict := env.do(http.MethodPost, "/api/v1/users", `{"name":"other"}`, headers)
	if conflict.Code != http.StatusConflict {
		t.Errorf("different body with same key should be 409, got %d", conflict.Code)
	}
}

func TestIdempotentCreate_InProgress(t *testing.T) {
	store := newMemIdempotency()
	store.entries["busy"] = &idemEntry{hash: idempotency.Hash([]byte(`{"name":"h"}`))}
	env := newTestEnv(t, Config{Idempotency: store}, target("items", "item", deadURL(t)))

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"h"}`,
		map[string]string{idempotency.HeaderKey: "busy"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if env.store.count() != 0 {
		t.Error("in-progress request must not be executed twice")
	}
}

func TestIdempotentCreate_FailureReleasesKey(t *testing.T) {
	store := newMemIdempotency()
	env := newTestEnv(t, Config{Idempotency: store}, target("items", "item", deadURL(t)))
	env.store.createErr = errors.New("db is down")

	rec := env.do(http.MethodPost, "/api/v1/users", `{"name":"ivan"}`,
		map[string]string{idempotency.HeaderKey: "retry-me"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if _, ok := store.entries["retry-me"]; ok {
		t.Error("key should be released after 5xx")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Config{}, target("items", "item", deadURL(t)))

	rec := env.do(http.MethodOptions, "/api/v1/users", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestHTTPMetrics(t *testing.T) {
	env := newTestEnv(t, Config{}, target("items", "item", deadURL(t)))

	env.do(http.MethodGet, "/healthz", "", nil)
	env.do(http.MethodGet, "/api/v1/users", "", nil)

	count, err := testutil.GatherAndCount(env.reg, "http_request_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// /healthz без middleware, в гистограмму попадает только /api/v1/users
	if count != 1 {
		t.Errorf("expected 1 series, got %d", count)
	}
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		want   int
	}{
		{name: "no store configured", pinger: nil, want: http.StatusOK},
		{name: "store reachable", pinger: fakePinger{}, want: http.StatusOK},
		{name: "store down", pinger: fakePinger{err: errors.New("connection refused")}, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{Readiness: tt.pinger}, target("items", "item", deadURL(t)))

			rec := env.do(http.MethodGet, "/ready", "", nil)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusServiceUnavailable && errorCode(t, rec) != string(ErrCodeUnavailable) {
				t.Errorf("expected UNAVAILABLE, got %s", rec.Body.String())
			}
		})
	}
}

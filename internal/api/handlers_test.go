package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leafsii/post-api/internal/events"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/session"
	"github.com/leafsii/post-api/internal/store/memory"
	kvmemory "github.com/leafsii/post-api/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Mock metrics for testing
type MockMetrics struct{}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
}

type MockCollection struct {
	mock.Mock
}

func (m *MockCollection) Find(ctx context.Context) ([]posts.Post, error) {
	args := m.Called(ctx)
	docs, _ := args.Get(0).([]posts.Post)
	return docs, args.Error(1)
}

func (m *MockCollection) Insert(ctx context.Context, f posts.Fields) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func (m *MockCollection) Replace(ctx context.Context, id string, f posts.Fields) error {
	return m.Called(ctx, id, f).Error(0)
}

func (m *MockCollection) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type staticHealth bool

func (s staticHealth) IsHealthy(ctx context.Context) bool { return bool(s) }

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	hub    *events.Hub
}

func newTestEnv(t *testing.T, coll posts.Collection, health HealthChecker, rpm int) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	kv := kvmemory.NewStore()
	t.Cleanup(func() { kv.Close() })

	hub := events.NewHub(events.NewMemoryBroker(), "posts:events", nil, logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	sessions := session.NewManager(kv, session.Options{CookieName: "sid", TTL: time.Hour}, logger, nil)
	auth := session.NewAuthenticator(map[string]string{"alice": string(hash)})
	svc := posts.NewService(coll, hub, logger, nil)

	h := NewHandler(svc, sessions, auth, http.HandlerFunc(hub.HandleWebSocket), health, logger, 1<<10)
	router := h.Routes(NewMiddleware(logger, &MockMetrics{}), nil, []string{"http://localhost:3000"}, rpm)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, hub: hub}
}

func newMemoryEnv(t *testing.T) (*testEnv, *memory.Store) {
	t.Helper()
	coll := memory.New()
	require.NoError(t, coll.Connect(context.Background()))
	return newTestEnv(t, coll, coll, 6000), coll
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	resp, raw := e.do(t, method, path, body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	status, out := e.doJSON(t, http.MethodPost, "/api/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["isLoggedIn"])
}

func TestPostRoute_ListWithoutSession(t *testing.T) {
	env, _ := newMemoryEnv(t)

	status, out := env.doJSON(t, http.MethodGet, "/api/post", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"type": "echo", "description": "GET", "collection": []any{}}, out)
}

func TestPostRoute_WriteWithoutSessionIsListed(t *testing.T) {
	env, coll := newMemoryEnv(t)

	status, out := env.doJSON(t, http.MethodPost, "/api/post", `{"name":"n","image0":"i0","image1":"i1","description":"d"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "GET", out["description"])

	docs, err := coll.Find(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPostRoute_OtherMethodsList(t *testing.T) {
	env, coll := newMemoryEnv(t)
	_, err := coll.Insert(context.Background(), posts.Fields{Name: "n", Image0: "a", Image1: "b", Description: "d"})
	require.NoError(t, err)

	check := func(t *testing.T) {
		for _, method := range []string{"PROPFIND", "FOO", http.MethodPatch, http.MethodGet} {
			t.Run(method, func(t *testing.T) {
				status, out := env.doJSON(t, method, "/api/post", "")
				assert.Equal(t, http.StatusOK, status)
				assert.Equal(t, "GET", out["description"])
				assert.Len(t, out["collection"], 1)
			})
		}
	}

	t.Run("anonymous", check)
	env.login(t)
	t.Run("logged in", check)

	resp, _ := env.do(t, "FOO", "/api/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPatch, "/api/user", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPostRoute_CRUDFlow(t *testing.T) {
	env, _ := newMemoryEnv(t)
	env.login(t)

	status, out := env.doJSON(t, http.MethodPost, "/api/post", `{"name":"n<>","image0":"i0","image1":"i1","description":"{d}"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, map[string]any{"type": "echo", "description": "Post added to DB"}, out)

	status, out = env.doJSON(t, http.MethodGet, "/api/post", "")
	require.Equal(t, http.StatusOK, status)
	collection := out["collection"].([]any)
	require.Len(t, collection, 1)
	doc := collection[0].(map[string]any)
	id := doc["_id"].(string)
	assert.Equal(t, "n", doc["name"])
	assert.Equal(t, "", doc["category"])
	assert.Equal(t, "d", doc["description"])

	status, out = env.doJSON(t, http.MethodPut, "/api/post",
		`{"_id":"`+id+`","name":"n2","image0":"i0","image1":"i1","description":"d2","category":"c"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Successful change", out["description"])

	_, out = env.doJSON(t, http.MethodGet, "/api/post", "")
	doc = out["collection"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"_id": id, "name": "n2", "category": "c", "image0": "i0", "image1": "i1", "description": "d2"}, doc)

	status, out = env.doJSON(t, http.MethodDelete, "/api/post", `{"_id":"`+id+`"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Successful deletion", out["description"])

	_, out = env.doJSON(t, http.MethodGet, "/api/post", "")
	assert.Equal(t, []any{}, out["collection"])
}

func TestPostRoute_InvalidParameters(t *testing.T) {
	env, _ := newMemoryEnv(t)
	env.login(t)

	tests := []struct {
		name   string
		method string
		body   string
	}{
		{"create missing image1", http.MethodPost, `{"name":"n","image0":"i0","description":"d"}`},
		{"create numeric name", http.MethodPost, `{"name":1,"image0":"i0","image1":"i1","description":"d"}`},
		{"create non-object body", http.MethodPost, `["n","i0","i1","d"]`},
		{"create malformed json", http.MethodPost, `{"name":`},
		{"create empty body", http.MethodPost, ""},
		{"update missing id", http.MethodPut, `{"name":"n","image0":"i0","image1":"i1","description":"d"}`},
		{"delete missing id", http.MethodDelete, `{}`},
		{"delete null id", http.MethodDelete, `{"_id":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := env.doJSON(t, tt.method, "/api/post", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, map[string]any{"type": "error", "description": "Invalid parameters"}, out)
		})
	}
}

func TestPostRoute_OversizedBodyIsEmpty(t *testing.T) {
	env, _ := newMemoryEnv(t)
	env.login(t)

	big := `{"name":"` + strings.Repeat("x", 2<<10) + `","image0":"a","image1":"b","description":"d"}`
	status, _ := env.doJSON(t, http.MethodPost, "/api/post", big)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPostRoute_MalformedIDIsDBError(t *testing.T) {
	env, _ := newMemoryEnv(t)
	env.login(t)

	status, out := env.doJSON(t, http.MethodDelete, "/api/post", `{"_id":"not-a-uuid"}`)

	assert.Equal(t, http.StatusFailedDependency, status)
	assert.Equal(t, "error", out["type"])
	assert.Equal(t, "Error DB", out["description"])
	assert.Contains(t, out["text"], "invalid id")
}

func TestPostRoute_StoreFailureSendsExactlyOneBody(t *testing.T) {
	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			coll := &MockCollection{}
			coll.On("Replace", mock.Anything, "abc", mock.Anything).Return(errors.New("write conflict"))
			coll.On("Delete", mock.Anything, "abc").Return(errors.New("write conflict"))

			env := newTestEnv(t, coll, staticHealth(true), 6000)
			env.login(t)

			resp, raw := env.do(t, method, "/api/post", `{"_id":"abc","name":"n","image0":"a","image1":"b","description":"d"}`)
			assert.Equal(t, http.StatusFailedDependency, resp.StatusCode)

			dec := json.NewDecoder(bytes.NewReader(raw))
			var first map[string]any
			require.NoError(t, dec.Decode(&first))
			assert.Equal(t, map[string]any{"type": "error", "description": "Error DB", "text": "write conflict"}, first)

			var second map[string]any
			assert.ErrorIs(t, dec.Decode(&second), io.EOF, "a second body was written")
		})
	}
}

func TestPostRoute_WritesAreBroadcast(t *testing.T) {
	env, _ := newMemoryEnv(t)
	env.login(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/post/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	status, _ := env.doJSON(t, http.MethodPost, "/api/post", `{"name":"n","image0":"a","image1":"b","description":"d"}`)
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev posts.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, posts.EventCreated, ev.Type)
	assert.NotEmpty(t, ev.ID)
}

func TestLoginLogoutUser(t *testing.T) {
	env, _ := newMemoryEnv(t)

	status, out := env.doJSON(t, http.MethodGet, "/api/user", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"type": "echo", "isLoggedIn": false}, out)

	env.login(t)

	_, out = env.doJSON(t, http.MethodGet, "/api/user", "")
	assert.Equal(t, map[string]any{"type": "echo", "isLoggedIn": true, "user": "alice"}, out)

	status, out = env.doJSON(t, http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["isLoggedIn"])

	_, out = env.doJSON(t, http.MethodGet, "/api/user", "")
	assert.Equal(t, false, out["isLoggedIn"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env, _ := newMemoryEnv(t)

	status, out := env.doJSON(t, http.MethodPost, "/api/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", out["description"])

	status, _ = env.doJSON(t, http.MethodPost, "/api/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	_, out = env.doJSON(t, http.MethodGet, "/api/user", "")
	assert.Equal(t, false, out["isLoggedIn"])
}

func TestHealthAndReadiness(t *testing.T) {
	env, coll := newMemoryEnv(t)

	resp, raw := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(raw))

	resp, raw = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "READY", string(raw))

	require.NoError(t, coll.Disconnect(context.Background()))
	resp, _ = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	env, _ := newMemoryEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err = env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	coll := memory.New()
	require.NoError(t, coll.Connect(context.Background()))
	env := newTestEnv(t, coll, coll, 6)

	resp, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestResponderRefusesSecondWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rs := newResponder(rec, zap.NewNop().Sugar(), "req-1")

	require.NoError(t, rs.JSON(http.StatusFailedDependency, map[string]string{"type": "error"}))
	assert.True(t, rs.Sent())

	err := rs.JSON(http.StatusCreated, map[string]string{"type": "echo"})
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	assert.Equal(t, http.StatusFailedDependency, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":"error"}`, rec.Body.String())
}

package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leafsii/post-api/pkg/kv"
	"go.uber.org/zap"
)

const keyPrefix = "posts:session:"

type MetricsInterface interface {
	RecordSessionLookup(ctx context.Context, outcome string)
}

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads and persists sessions in a kv.Store keyed by cookie value.
type Manager struct {
	store   kv.Store
	opts    Options
	logger  *zap.SugaredLogger
	metrics MetricsInterface
}

func NewManager(store kv.Store, opts Options, logger *zap.SugaredLogger, metrics MetricsInterface) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.CookieName == "" {
		opts.CookieName = "posts_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{store: store, opts: opts, logger: logger, metrics: metrics}
}

// Load resolves the session named by the request cookie. An absent, unknown
// or expired cookie yields an empty unsaved session. The TTL of a found
// session is refreshed.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		m.record(ctx, "miss")
		return newSession("", nil), nil
	}

	key := keyPrefix + cookie.Value
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		m.record(ctx, "miss")
		return newSession("", nil), nil
	}
	if err != nil {
		m.record(ctx, "error")
		return newSession("", nil), fmt.Errorf("failed to load session: %w", err)
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		m.record(ctx, "error")
		return newSession("", nil), fmt.Errorf("failed to decode session: %w", err)
	}

	if _, err := m.store.Expire(ctx, key, m.opts.TTL); err != nil {
		m.logger.Warnw("Failed to refresh session TTL", "error", err)
	}

	m.record(ctx, "hit")
	return newSession(cookie.Value, values), nil
}

// Save persists s and sets the cookie. An unsaved session gets a fresh ID.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		s.ID = id
	}

	raw, err := json.Marshal(s.snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.store.Set(ctx, keyPrefix+s.ID, raw, m.opts.TTL); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(m.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Regenerate drops the stored copy of s so the next Save issues a new ID.
// Call it when the privilege level changes.
func (m *Manager) Regenerate(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return nil
	}
	if _, err := m.store.Del(ctx, keyPrefix+s.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.ID = ""
	return nil
}

// Destroy removes the stored session and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.ID != "" {
		if _, err := m.store.Del(ctx, keyPrefix+s.ID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		s.ID = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware attaches the request session to the context. A store failure
// leaves the request unauthenticated.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(r.Context(), r)
		if err != nil {
			m.logger.Errorw("Session lookup failed", "error", err)
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

func (m *Manager) record(ctx context.Context, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordSessionLookup(ctx, outcome)
	}
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

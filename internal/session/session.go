package session

import (
	"context"
	"sync"
)

// KeyUser holds the logged-in user name.
const KeyUser = "user"

// Session is the server-side state behind one cookie. A Session with an
// empty ID has not been saved yet.
type Session struct {
	ID string

	mu     sync.RWMutex
	values map[string]any
}

func newSession(id string, values map[string]any) *Session {
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{ID: id, values: values}
}

// Get returns the value stored under key and whether it was present.
func (s *Session) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// User returns the logged-in user name, if any.
func (s *Session) User() (string, bool) {
	v, ok := s.Get(KeyUser)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

func (s *Session) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request session, or an empty unsaved one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
		return s
	}
	return newSession("", nil)
}

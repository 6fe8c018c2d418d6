package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/store/interfaces"
)

// Store keeps posts in insertion order behind a RWMutex
type Store struct {
	mu        sync.RWMutex
	docs      map[string]posts.Fields
	order     []string
	connected bool
}

func New() *Store {
	return &Store{docs: make(map[string]posts.Fields)}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Disconnect drops all documents
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.docs = make(map[string]posts.Fields)
	s.order = nil
	return nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Store) Find(ctx context.Context) ([]posts.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil, interfaces.Wrap("find", interfaces.ErrDatabaseNotConnected)
	}

	out := make([]posts.Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, posts.Post{ID: id, Fields: s.docs[id]})
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, f posts.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return "", interfaces.Wrap("insert", interfaces.ErrDatabaseNotConnected)
	}

	id := uuid.NewString()
	s.docs[id] = f
	s.order = append(s.order, id)
	return id, nil
}

func (s *Store) Replace(ctx context.Context, id string, f posts.Fields) error {
	if err := validateID(id); err != nil {
		return interfaces.Wrap("replace", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return interfaces.Wrap("replace", interfaces.ErrDatabaseNotConnected)
	}

	if _, ok := s.docs[id]; ok {
		s.docs[id] = f
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return interfaces.Wrap("delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return interfaces.Wrap("delete", interfaces.ErrDatabaseNotConnected)
	}

	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w %q: %v", interfaces.ErrInvalidID, id, err)
	}
	return nil
}

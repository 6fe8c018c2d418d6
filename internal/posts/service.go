package posts

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Collection is the document store behind the endpoint.
type Collection interface {
	Find(ctx context.Context) ([]Post, error)
	Insert(ctx context.Context, f Fields) (string, error)
	Replace(ctx context.Context, id string, f Fields) error
	Delete(ctx context.Context, id string) error
}

// Notifier is told about every successful write.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// MetricsInterface records the outcome of each operation.
type MetricsInterface interface {
	RecordPostOperation(ctx context.Context, op string, status int)
}

type Service struct {
	coll     Collection
	notifier Notifier
	logger   *zap.SugaredLogger
	metrics  MetricsInterface
}

// NewService wires the endpoint. notifier and metrics may be nil.
func NewService(coll Collection, notifier Notifier, logger *zap.SugaredLogger, metrics MetricsInterface) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		coll:     coll,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch picks the operation for method. Writes require an authenticated
// caller; without one the request is served as a List.
func (s *Service) Dispatch(ctx context.Context, method string, authenticated bool, body Body) Response {
	if authenticated {
		switch method {
		case http.MethodPost:
			return s.Create(ctx, body)
		case http.MethodPut:
			return s.Update(ctx, body)
		case http.MethodDelete:
			return s.Delete(ctx, body)
		}
	} else if isWrite(method) {
		s.logger.Debugw("Unauthenticated write served as list", "method", method)
	}
	return s.List(ctx)
}

func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete
}

// List returns every stored post.
func (s *Service) List(ctx context.Context) Response {
	docs, err := s.coll.Find(ctx)
	if err != nil {
		return s.fail(ctx, OpList, err)
	}
	return s.done(ctx, OpList, listed(docs))
}

// Create validates body and inserts a new post.
func (s *Service) Create(ctx context.Context, body Body) Response {
	p := Extract(body, createKeys...)
	if !p.Valid(createRequired...) {
		return s.invalid(ctx, OpCreate)
	}

	id, err := s.coll.Insert(ctx, p.Fields())
	if err != nil {
		return s.fail(ctx, OpCreate, err)
	}
	s.notify(ctx, EventCreated, id)
	return s.done(ctx, OpCreate, created("Post added to DB"))
}

// Update replaces the fields of the post named by _id.
func (s *Service) Update(ctx context.Context, body Body) Response {
	p := Extract(body, updateKeys...)
	if !p.Valid(updateRequired...) {
		return s.invalid(ctx, OpUpdate)
	}

	id := p.String(KeyID)
	if err := s.coll.Replace(ctx, id, p.Fields()); err != nil {
		return s.fail(ctx, OpUpdate, err)
	}
	s.notify(ctx, EventUpdated, id)
	return s.done(ctx, OpUpdate, created("Successful change"))
}

// Delete removes the post named by _id.
func (s *Service) Delete(ctx context.Context, body Body) Response {
	id, ok := ExtractID(body)
	if !ok {
		return s.invalid(ctx, OpDelete)
	}

	if err := s.coll.Delete(ctx, id); err != nil {
		return s.fail(ctx, OpDelete, err)
	}
	s.notify(ctx, EventDeleted, id)
	return s.done(ctx, OpDelete, created("Successful deletion"))
}

func (s *Service) notify(ctx context.Context, t EventType, id string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, newEvent(t, id))
}

func (s *Service) invalid(ctx context.Context, op string) Response {
	s.logger.Debugw("Rejected post request", "op", op, "reason", "invalid_parameters")
	return s.done(ctx, op, invalidParameters())
}

func (s *Service) fail(ctx context.Context, op string, err error) Response {
	s.logger.Errorw("Post store operation failed", "op", op, "error", err)
	return s.done(ctx, op, dbError(err))
}

func (s *Service) done(ctx context.Context, op string, resp Response) Response {
	if s.metrics != nil {
		s.metrics.RecordPostOperation(ctx, op, resp.Status)
	}
	return resp
}

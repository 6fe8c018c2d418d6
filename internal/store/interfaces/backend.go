package interfaces

import (
	"context"
	"errors"

	"github.com/leafsii/post-api/internal/posts"
)

// Backend is a post collection with a connection lifecycle
type Backend interface {
	posts.Collection

	// Connect establishes a connection to the database
	Connect(ctx context.Context) error

	// Disconnect closes the database connection
	Disconnect(ctx context.Context) error

	// IsHealthy checks if the database connection is healthy
	IsHealthy(ctx context.Context) bool
}

// Migrator is implemented by backends that manage their own schema
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Common database errors
var (
	ErrDatabaseNotConnected = errors.New("database not connected")
	ErrInvalidID            = errors.New("invalid id")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

package postgres

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/store/interfaces"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding goose files.
const MigrationsDir = "migrations"

// Store keeps one JSONB document per row. Ids are UUIDs.
type Store struct {
	dsn            string
	connectTimeout time.Duration

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func New(dsn string, connectTimeout time.Duration) *Store {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &Store{dsn: dsn, connectTimeout: connectTimeout}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.pool = pool
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	pool, err := s.getPool()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(ctx) == nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return interfaces.Wrap("migrate", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(Migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return interfaces.Wrap("migrate", err)
	}
	return interfaces.Wrap("migrate", goose.UpContext(ctx, db, MigrationsDir))
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}
	return s.pool, nil
}

func (s *Store) Find(ctx context.Context) ([]posts.Post, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, interfaces.Wrap("find", err)
	}

	rows, err := pool.Query(ctx, `SELECT id::text, doc FROM posts ORDER BY seq`)
	if err != nil {
		return nil, interfaces.Wrap("find", err)
	}
	defer rows.Close()

	out := []posts.Post{}
	for rows.Next() {
		var p posts.Post
		if err := rows.Scan(&p.ID, &p.Fields); err != nil {
			return nil, interfaces.Wrap("find", err)
		}
		out = append(out, p)
	}
	return out, interfaces.Wrap("find", rows.Err())
}

func (s *Store) Insert(ctx context.Context, f posts.Fields) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", interfaces.Wrap("insert", err)
	}

	var id string
	err = pool.QueryRow(ctx, `INSERT INTO posts (doc) VALUES ($1) RETURNING id::text`, f).Scan(&id)
	if err != nil {
		return "", interfaces.Wrap("insert", err)
	}
	return id, nil
}

func (s *Store) Replace(ctx context.Context, id string, f posts.Fields) error {
	uid, err := parseID(id)
	if err != nil {
		return interfaces.Wrap("replace", err)
	}
	pool, err := s.getPool()
	if err != nil {
		return interfaces.Wrap("replace", err)
	}

	_, err = pool.Exec(ctx, `UPDATE posts SET doc = $2, updated_at = now() WHERE id = $1`, uid.String(), f)
	return interfaces.Wrap("replace", err)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return interfaces.Wrap("delete", err)
	}
	pool, err := s.getPool()
	if err != nil {
		return interfaces.Wrap("delete", err)
	}

	_, err = pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, uid.String())
	return interfaces.Wrap("delete", err)
}

// Truncate removes every row. Used by tests.
func (s *Store) Truncate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `TRUNCATE posts`)
	return err
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", interfaces.ErrInvalidID, id, err)
	}
	return uid, nil
}

var _ interfaces.Migrator = (*Store)(nil)

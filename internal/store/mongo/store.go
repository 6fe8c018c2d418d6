package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leafsii/post-api/internal/posts"
	"github.com/leafsii/post-api/internal/store/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Store persists posts as documents in a single collection. Ids are ObjectID
// hex strings.
type Store struct {
	cfg Config

	mu     sync.RWMutex
	client *mongo.Client
	coll   *mongo.Collection
}

type document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	posts.Fields `bson:",inline"`
}

func New(cfg Config) *Store {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Store{cfg: cfg}
}

// NewWithCollection wraps an already connected collection.
func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{
		client: coll.Database().Client(),
		coll:   coll,
	}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s.client = client
	s.coll = client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client, s.coll = nil, nil
	return err
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx, readpref.Primary()) == nil
}

func (s *Store) collection() (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}
	return s.coll, nil
}

func (s *Store) Find(ctx context.Context) ([]posts.Post, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, interfaces.Wrap("find", err)
	}

	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, interfaces.Wrap("find", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, interfaces.Wrap("find", err)
	}

	out := make([]posts.Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, posts.Post{ID: d.ID.Hex(), Fields: d.Fields})
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, f posts.Fields) (string, error) {
	coll, err := s.collection()
	if err != nil {
		return "", interfaces.Wrap("insert", err)
	}

	res, err := coll.InsertOne(ctx, document{Fields: f})
	if err != nil {
		return "", interfaces.Wrap("insert", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", interfaces.Wrap("insert", fmt.Errorf("unexpected inserted id type %T", res.InsertedID))
	}
	return oid.Hex(), nil
}

func (s *Store) Replace(ctx context.Context, id string, f posts.Fields) error {
	oid, err := objectID(id)
	if err != nil {
		return interfaces.Wrap("replace", err)
	}
	coll, err := s.collection()
	if err != nil {
		return interfaces.Wrap("replace", err)
	}

	_, err = coll.ReplaceOne(ctx, bson.M{"_id": oid}, f)
	return interfaces.Wrap("replace", err)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return interfaces.Wrap("delete", err)
	}
	coll, err := s.collection()
	if err != nil {
		return interfaces.Wrap("delete", err)
	}

	_, err = coll.DeleteOne(ctx, bson.M{"_id": oid})
	return interfaces.Wrap("delete", err)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w %q: %v", interfaces.ErrInvalidID, id, err)
	}
	return oid, nil
}

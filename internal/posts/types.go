package posts

import "time"

// Fields is the user-editable part of a post. Create and Update both persist
// the complete set.
type Fields struct {
	Name        string `json:"name" bson:"name"`
	Category    string `json:"category" bson:"category"`
	Image0      string `json:"image0" bson:"image0"`
	Image1      string `json:"image1" bson:"image1"`
	Description string `json:"description" bson:"description"`
}

// Post is a stored document. ID is assigned by the store on insert.
type Post struct {
	ID     string `json:"_id" bson:"-"`
	Fields `bson:",inline"`
}

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a successful write.
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
}

func newEvent(t EventType, id string) Event {
	return Event{Type: t, ID: id, Timestamp: time.Now().UnixMilli()}
}

// Operation names used for logging and metrics.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

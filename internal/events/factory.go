package events

import (
	"fmt"

	"github.com/leafsii/post-api/internal/config"
)

// NewBroker builds the broker named by cfg.Backend.
func NewBroker(cfg config.EventsConfig, redisURL string) (Broker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBroker(), nil
	case "redis":
		return NewRedisBroker(redisURL)
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.Backend)
	}
}

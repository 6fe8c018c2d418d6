package session

import (
	"github.com/leafsii/post-api/internal/config"
	"github.com/leafsii/post-api/pkg/kv"
	_ "github.com/leafsii/post-api/pkg/kv/memory"
	_ "github.com/leafsii/post-api/pkg/kv/redis"
	"go.uber.org/zap"
)

// NewStore builds the kv.Store backing sessions. With failover enabled a
// redis outage moves sessions to memory until redis answers again.
func NewStore(cfg config.SessionConfig, logger *zap.SugaredLogger) (kv.Store, error) {
	return kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.Backend(cfg.Backend),
		RedisURL:        cfg.RedisURL,
		FailoverEnabled: cfg.Failover,
		Logger: func(msg string, fields ...any) {
			logger.Warnw(msg, fields...)
		},
	})
}

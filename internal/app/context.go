package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/cache"
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
)

// AppContext holds shared dependencies (DB, Redis, Notifier, Logger, Metrics)
type AppContext struct {
	DB       *gorm.DB
	Cache    *cache.RedisCache
	Notifier notify.Notifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, notifier notify.Notifier, logger *slog.Logger, m *metrics.Metrics) *AppContext {
	return &AppContext{
		DB:       db,
		Cache:    rdb,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  m,
	}
}

package main

import (
	"context"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/cache"
	"github.com/oggyb/matchd/internal/config"
	"github.com/oggyb/matchd/internal/db"
	"github.com/oggyb/matchd/internal/logger"
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/server"
	"github.com/oggyb/matchd/internal/service/account"
	"github.com/oggyb/matchd/internal/service/chat"
	"github.com/oggyb/matchd/internal/service/discovery"
	"github.com/oggyb/matchd/internal/service/match"
	"github.com/oggyb/matchd/internal/service/profile"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Push dispatch. No broker configured means pushes are dropped, which
	// is the intended local-development behavior.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Kafka.Broker != "" {
		notifier = notify.NewKafkaNotifier(cfg)
	}

	appCtx := app.New(database, redisCache, notifier, log, metrics.New())

	registrars := []server.Registrar{
		match.NewHandler(match.NewService(appCtx)),
		chat.NewHandler(chat.NewService(appCtx)),
		account.NewHandler(account.NewService(appCtx)),
		discovery.NewHandler(discovery.NewService(appCtx)),
		profile.NewHandler(profile.NewService(appCtx)),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	fapp := server.New(appCtx, registrars...)

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.Start(cfg, fapp); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}

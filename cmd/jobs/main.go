// Command jobs runs one maintenance routine and exits; the scheduler
// invokes it with the job name as the only argument.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/cache"
	"github.com/oggyb/matchd/internal/config"
	"github.com/oggyb/matchd/internal/db"
	"github.com/oggyb/matchd/internal/jobs"
	"github.com/oggyb/matchd/internal/logger"
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: jobs <rebuild-matches|fix-match-profiles|new-like-notifications|delete-unmatched> [userID]")
		os.Exit(2)
	}

	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Kafka.Broker != "" {
		notifier = notify.NewKafkaNotifier(cfg)
	}

	appCtx := app.New(database, redisCache, notifier, log, metrics.New())
	runner := jobs.New(appCtx)
	ctx := context.Background()

	switch os.Args[1] {
	case "rebuild-matches":
		if len(os.Args) > 2 {
			userID, perr := strconv.ParseUint(os.Args[2], 10, 64)
			if perr != nil {
				log.Error("invalid user id", "arg", os.Args[2])
				os.Exit(2)
			}
			_, err = runner.RebuildMatches(ctx, userID)
		} else {
			err = runner.RebuildAllMatches(ctx)
		}
	case "fix-match-profiles":
		err = runner.FixMutualMatchProfiles(ctx)
	case "new-like-notifications":
		err = runner.NewLikeNotifications(ctx)
	case "delete-unmatched":
		if len(os.Args) < 3 {
			log.Error("delete-unmatched requires a user id")
			os.Exit(2)
		}
		userID, perr := strconv.ParseUint(os.Args[2], 10, 64)
		if perr != nil {
			log.Error("invalid user id", "arg", os.Args[2])
			os.Exit(2)
		}
		err = runner.DeleteUnmatched(ctx, userID)
	default:
		log.Error("unknown job", "name", os.Args[1])
		os.Exit(2)
	}

	if err != nil {
		log.Error("job failed", "name", os.Args[1], "err", err)
		os.Exit(1)
	}
	log.Info("job completed", "name", os.Args[1])
}

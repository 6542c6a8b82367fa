package jobs_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/cache"
	"github.com/oggyb/matchd/internal/config"
	"github.com/oggyb/matchd/internal/db"
	"github.com/oggyb/matchd/internal/jobs"
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
)

type fixture struct {
	jobs     *jobs.Jobs
	db       *gorm.DB
	recorder *notify.Recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	recorder := notify.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(dbase, cache.NewRedisCache(cfg), recorder, logger, metrics.New())

	return &fixture{jobs: jobs.New(appCtx), db: dbase, recorder: recorder}
}

func seedUser(t *testing.T, dbase *gorm.DB, userID uint64, matches []uint64) {
	t.Helper()
	require.NoError(t, dbase.Create(&db.User{
		ID: userID, Username: fmt.Sprintf("user%d", userID),
		Email: fmt.Sprintf("u%d@test.com", userID), PasswordHash: "x",
		Status: db.StatusActive, Matches: matches,
	}).Error)
	require.NoError(t, dbase.Create(&db.Profile{
		UserID: userID, Name: fmt.Sprintf("User %d", userID), Gender: "F",
		Enabled: true, Photos: []string{},
	}).Error)
}

func TestRebuildMatchesRepairsDrift(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	m := &db.Match{
		UID1: 1, UID2: 2, U1Action: db.ActionLike, U2Action: db.ActionLike,
		State: db.StateMutual,
	}
	require.NoError(t, f.db.Create(m).Error)

	// User 1's list is missing the match; user 2 carries a stale id.
	seedUser(t, f.db, 1, []uint64{})
	seedUser(t, f.db, 2, []uint64{m.ID, 999})

	repaired, err := f.jobs.RebuildMatches(ctx, 1)
	require.NoError(t, err)
	assert.True(t, repaired)

	repaired, err = f.jobs.RebuildMatches(ctx, 2)
	require.NoError(t, err)
	assert.True(t, repaired)

	for _, uid := range []uint64{1, 2} {
		var u db.User
		require.NoError(t, f.db.First(&u, uid).Error)
		assert.Equal(t, []uint64{m.ID}, u.Matches)
	}

	// Second pass finds nothing to do.
	repaired, err = f.jobs.RebuildMatches(ctx, 1)
	require.NoError(t, err)
	assert.False(t, repaired)
}

func TestRebuildAllMatches(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	m := &db.Match{
		UID1: 1, UID2: 2, U1Action: db.ActionLike, U2Action: db.ActionLike,
		State: db.StateMutual,
	}
	require.NoError(t, f.db.Create(m).Error)
	seedUser(t, f.db, 1, []uint64{})
	seedUser(t, f.db, 2, []uint64{})

	require.NoError(t, f.jobs.RebuildAllMatches(ctx))

	for _, uid := range []uint64{1, 2} {
		var u db.User
		require.NoError(t, f.db.First(&u, uid).Error)
		assert.Equal(t, []uint64{m.ID}, u.Matches)
	}
}

func TestFixMutualMatchProfiles(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	seedUser(t, f.db, 1, []uint64{})
	seedUser(t, f.db, 2, []uint64{})

	m := &db.Match{
		UID1: 1, UID2: 2, U1Action: db.ActionLike, U2Action: db.ActionLike,
		State: db.StateMutual,
	}
	require.NoError(t, f.db.Create(m).Error)

	require.NoError(t, f.jobs.FixMutualMatchProfiles(ctx))

	var fixed db.Match
	require.NoError(t, f.db.First(&fixed, m.ID).Error)
	assert.NotZero(t, fixed.Profile1ID)
	assert.NotZero(t, fixed.Profile2ID)

	var p1 db.Profile
	require.NoError(t, f.db.First(&p1, fixed.Profile1ID).Error)
	assert.Equal(t, uint64(1), p1.UserID)
}

func TestNewLikeNotifications(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := midnight.Add(-12 * time.Hour)

	// 1 liked 2 yesterday; 2 has not swiped back.
	m := &db.Match{UID1: 1, UID2: 2, U1Action: db.ActionLike, State: db.StatePending}
	require.NoError(t, f.db.Create(m).Error)
	require.NoError(t, f.db.Model(&db.Match{}).Where("id = ?", m.ID).
		Update("created_at", yesterday).Error)

	// A pending like from today must not be in the digest yet.
	require.NoError(t, f.db.Create(&db.Match{
		UID1: 3, UID2: 4, U1Action: db.ActionLike, State: db.StatePending,
	}).Error)

	require.NoError(t, f.jobs.NewLikeNotifications(ctx))

	pushes := f.recorder.OfType(notify.TypeNewLikes)
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"user_2"}, pushes[0].Channels)
	require.NotNil(t, pushes[0].Payload.PushTime)
	assert.Equal(t, 20, pushes[0].Payload.PushTime.Hour())
}

func TestDeleteUnmatched(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	pending := &db.Match{UID1: 1, UID2: 2, U1Action: db.ActionLike, State: db.StatePending}
	mutual := &db.Match{
		UID1: 1, UID2: 3, U1Action: db.ActionLike, U2Action: db.ActionLike,
		State: db.StateMutual,
	}
	require.NoError(t, f.db.Create(pending).Error)
	require.NoError(t, f.db.Create(mutual).Error)
	require.NoError(t, f.db.Create(&db.ChatMessage{
		MatchID: pending.ID, Sender: 1, UserIDs: []uint64{1, 2}, Text: "hi",
	}).Error)

	require.NoError(t, f.jobs.DeleteUnmatched(ctx, 1))

	var count int64
	require.NoError(t, f.db.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, f.db.Model(&db.ChatMessage{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

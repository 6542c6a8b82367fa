package match_test

import (
	"context"
	"errors"
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
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/service/match"
)

//
// Test helpers
//

type fixture struct {
	svc      *match.Service
	appCtx   *app.AppContext
	db       *gorm.DB
	recorder *notify.Recorder
}

// setupService spins up an in-memory SQLite DB, a miniredis and a
// recording notifier, and wires everything into a match Service.
//
// Each test gets its own isolated DB + Redis.
func setupService(t *testing.T) *fixture {
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

	redisCache := cache.NewRedisCache(cfg)
	recorder := notify.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, recorder, logger, metrics.New())
	return &fixture{
		svc:      match.NewService(appCtx),
		appCtx:   appCtx,
		db:       dbase,
		recorder: recorder,
	}
}

// seedUser inserts a user and a profile with the given ids.
func seedUser(t *testing.T, dbase *gorm.DB, userID uint64, name string) *db.Profile {
	t.Helper()

	birthdate := time.Now().AddDate(-30, 0, 0)
	user := db.User{
		ID:       userID,
		Username: fmt.Sprintf("user%d", userID),
		Email:    fmt.Sprintf("u%d@test.com", userID),
		Status:   db.StatusActive, PasswordHash: "x",
		Matches: []uint64{},
	}
	require.NoError(t, dbase.Create(&user).Error)

	profile := db.Profile{
		UserID: userID, Name: name, Gender: "F",
		Birthdate: &birthdate, Enabled: true, Photos: []string{},
	}
	require.NoError(t, dbase.Create(&profile).Error)
	return &profile
}

func loadPair(t *testing.T, f *fixture, a, b uint64) *db.Match {
	t.Helper()
	var m db.Match
	uid1, uid2 := a, b
	if uid2 < uid1 {
		uid1, uid2 = uid2, uid1
	}
	require.NoError(t, f.db.Where("uid1 = ? AND uid2 = ?", uid1, uid2).First(&m).Error)
	return &m
}

//
// Tests
//

// A swipe from either side of a pair must resolve to the same canonical
// record: one row, lower id in the uid1 slot.
func TestSwipeCanonicalizesPair(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Match.UID1)
	assert.Equal(t, uint64(2), res.Match.UID2)
	assert.Equal(t, db.ActionLike, res.Match.U2Action)
	assert.Equal(t, db.StatePending, res.Match.State)
	assert.False(t, res.NewlyMutual)

	var count int64
	require.NoError(t, f.db.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMutualMatchFlow(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	p1 := seedUser(t, f.db, 1, "Alice")
	p2 := seedUser(t, f.db, 2, "Beth")

	_, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)

	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	assert.True(t, res.NewlyMutual)
	assert.Equal(t, db.StateMutual, res.Match.State)

	// Profile snapshots attached in canonical order.
	assert.Equal(t, p1.ID, res.Match.Profile1ID)
	assert.Equal(t, p2.ID, res.Match.Profile2ID)

	// Both users' match lists updated.
	for _, uid := range []uint64{1, 2} {
		var u db.User
		require.NoError(t, f.db.First(&u, uid).Error)
		assert.Contains(t, u.Matches, res.Match.ID)
	}

	// Exactly one match push, addressed to the user who did not trigger
	// the transition (user 1; user 2 swiped last).
	pushes := f.recorder.OfType(notify.TypeMatch)
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{"user_1"}, pushes[0].Channels)
	assert.Equal(t, res.Match.ID, pushes[0].Payload.MatchID)
}

func TestRejectEitherOrderEndsRejected(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name        string
		first, last uint64
		firstLikes  bool
	}{
		{"like then reject", 1, 2, true},
		{"reject then like", 1, 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupService(t)
			seedUser(t, f.db, 1, "Alice")
			seedUser(t, f.db, 2, "Beth")

			_, err := f.svc.ProcessSwipe(ctx, tc.first, tc.last, tc.firstLikes)
			require.NoError(t, err)
			res, err := f.svc.ProcessSwipe(ctx, tc.last, tc.first, !tc.firstLikes)
			require.NoError(t, err)

			assert.Equal(t, db.StateRejected, res.Match.State)
			assert.False(t, res.NewlyMutual)

			// A rejection never produces match side effects.
			assert.Empty(t, f.recorder.OfType(notify.TypeMatch))
			var u db.User
			require.NoError(t, f.db.First(&u, tc.first).Error)
			assert.Empty(t, u.Matches)
		})
	}
}

// The first action on a pair being a reject pre-sets the counterpart's
// slot with the other-reject sentinel, so the pair reads as decided from
// both sides.
func TestFirstRejectSetsSentinel(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	res, err := f.svc.ProcessSwipe(ctx, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, db.ActionReject, res.Match.U1Action)
	assert.Equal(t, db.ActionOtherReject, res.Match.U2Action)
	assert.Equal(t, db.StateRejected, res.Match.State)
}

// Replaying an identical swipe must not re-fire the mutual transition.
func TestReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	_, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)
	first, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	require.True(t, first.NewlyMutual)

	replay, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	assert.False(t, replay.NewlyMutual)
	assert.Equal(t, db.StateMutual, replay.Match.State)

	// Still exactly one push and one list entry per user.
	assert.Len(t, f.recorder.OfType(notify.TypeMatch), 1)
	var u db.User
	require.NoError(t, f.db.First(&u, 1).Error)
	assert.Len(t, u.Matches, 1)
}

func TestSwipeValidation(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")

	_, err := f.svc.ProcessSwipe(ctx, 1, 1, true)
	assert.Error(t, err)

	_, err = f.svc.ProcessSwipe(ctx, 0, 1, true)
	assert.Error(t, err)

	_, err = f.svc.ProcessSwipe(ctx, 1, 42, true)
	assert.Error(t, err)
}

func TestSwipeOnDeletedMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	require.NoError(t, f.db.Create(&db.Match{
		UID1: 1, UID2: 2, U1Action: db.ActionLike, U2Action: db.ActionLike,
		State: db.StateDeleted,
	}).Error)

	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, db.StateDeleted, res.Match.State)
	assert.False(t, res.NewlyMutual)
	assert.Empty(t, f.recorder.All())
}

// Losing a notification must never lose the match itself.
func TestMutualSurvivesPushFailure(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	f.recorder.FailWith(errors.New("broker down"))

	_, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)
	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)
	assert.True(t, res.NewlyMutual)

	m := loadPair(t, f, 1, 2)
	assert.Equal(t, db.StateMutual, m.State)
}

func TestMutualMatchesListing(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")
	seedUser(t, f.db, 3, "Cara")

	_, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)
	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)

	views, err := f.svc.MutualMatches(ctx, 1, []uint64{res.Match.ID})
	require.NoError(t, err)
	require.Len(t, views, 1)

	// User 1 sees user 2's profile only, scrubbed to an age.
	assert.Equal(t, "Beth", views[0].Profile.Name)
	assert.InDelta(t, 30, views[0].Profile.Age, 1)

	// A non-participant gets nothing back for the same id.
	views, err = f.svc.MutualMatches(ctx, 3, []uint64{res.Match.ID})
	require.NoError(t, err)
	assert.Len(t, views, 0)
}

func TestMatchProfileAuthorization(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")
	seedUser(t, f.db, 3, "Cara")

	_, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)
	res, err := f.svc.ProcessSwipe(ctx, 2, 1, true)
	require.NoError(t, err)

	view, err := f.svc.MatchProfile(ctx, 1, res.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beth", view.Name)

	_, err = f.svc.MatchProfile(ctx, 3, res.Match.ID)
	assert.Error(t, err)
}

func TestLikedByAndCount(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 9, "Nina")
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")
	seedUser(t, f.db, 3, "Cara")

	_, err := f.svc.ProcessSwipe(ctx, 1, 9, true)
	require.NoError(t, err)
	_, err = f.svc.ProcessSwipe(ctx, 2, 9, true)
	require.NoError(t, err)
	// 3 rejected 9: not a liker.
	_, err = f.svc.ProcessSwipe(ctx, 3, 9, false)
	require.NoError(t, err)

	profiles, next, err := f.svc.LikedBy(ctx, 9, nil, 10)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Nil(t, next)

	// First count hits the DB, second the cache; both agree.
	count, err := f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Swiping back moves the pair out of pending, off the listing and off
	// the cached count.
	_, err = f.svc.ProcessSwipe(ctx, 9, 1, true)
	require.NoError(t, err)
	profiles, _, err = f.svc.LikedBy(ctx, 9, nil, 10)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	count, err = f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// The cached counter moves only when a swipe changes a pending-liker set:
// swipes from non-likers and replays leave it alone, resolving a pending
// like drops it.
func TestLikedByCountTracksSetTransitions(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 3, "Cara")
	seedUser(t, f.db, 9, "Nina")

	_, err := f.svc.ProcessSwipe(ctx, 1, 9, true)
	require.NoError(t, err)

	// Prime the cache from the DB.
	count, err := f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// A reject from a user who never liked 9 leaves the set untouched.
	_, err = f.svc.ProcessSwipe(ctx, 3, 9, false)
	require.NoError(t, err)
	count, err = f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Replaying the pending like does not double count.
	_, err = f.svc.ProcessSwipe(ctx, 1, 9, true)
	require.NoError(t, err)
	count, err = f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Swiping back resolves the pending like and drops 9's own counter.
	_, err = f.svc.ProcessSwipe(ctx, 9, 1, true)
	require.NoError(t, err)
	count, err = f.svc.CountLikedBy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// A first-swipe that loses the unique-index race to a concurrent create
// must fall back onto the winner's row and merge both slots there.
func TestSwipeLosesCreateRace(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	seedUser(t, f.db, 1, "Alice")
	seedUser(t, f.db, 2, "Beth")

	// Insert the pair's row between the resolver's read and its create,
	// the way a concurrent first-swipe from the other side would.
	raced := false
	err := f.db.Callback().Create().Before("gorm:create").Register("concurrent_first_swipe", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*db.Match); !ok || raced {
			return
		}
		raced = true
		now := time.Now()
		require.NoError(t, f.db.Exec(
			`INSERT INTO matches
				(uid1, uid2, u1_action, u2_action, state, profile1_id, profile2_id, created_at, updated_at)
			VALUES (?, ?, '', ?, ?, 0, 0, ?, ?)`,
			1, 2, string(db.ActionLike), string(db.StatePending), now, now,
		).Error)
	})
	require.NoError(t, err)
	t.Cleanup(func() { f.db.Callback().Create().Remove("concurrent_first_swipe") })

	res, err := f.svc.ProcessSwipe(ctx, 1, 2, true)
	require.NoError(t, err)
	require.True(t, raced)

	// Both slots merged on the surviving row, which went mutual.
	assert.True(t, res.NewlyMutual)
	assert.Equal(t, db.ActionLike, res.Match.U1Action)
	assert.Equal(t, db.ActionLike, res.Match.U2Action)
	assert.Equal(t, db.StateMutual, res.Match.State)

	var count int64
	require.NoError(t, f.db.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

package discovery_test

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
	"github.com/oggyb/matchd/internal/metrics"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/service/discovery"
)

type seedProfile struct {
	userID   uint64
	name     string
	gender   string
	age      int
	lat, lng float64
	enabled  bool
}

func setupService(t *testing.T) (*discovery.Service, *gorm.DB) {
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(dbase, cache.NewRedisCache(cfg), notify.NewRecorder(), logger, metrics.New())
	return discovery.NewService(appCtx), dbase
}

// Central London as the reference point; ~1km and ~100km offsets.
const (
	londonLat = 51.5074
	londonLng = -0.1278
)

func seed(t *testing.T, dbase *gorm.DB, p seedProfile) {
	t.Helper()
	require.NoError(t, dbase.Create(&db.User{
		ID: p.userID, Username: p.name, Email: fmt.Sprintf("u%d@test.com", p.userID),
		PasswordHash: "x", Status: db.StatusActive, Matches: []uint64{},
	}).Error)

	birthdate := time.Now().AddDate(-p.age, 0, -30)
	require.NoError(t, dbase.Create(&db.Profile{
		UserID: p.userID, Name: p.name, Gender: p.gender, Birthdate: &birthdate,
		Lat: p.lat, Lng: p.lng, Enabled: p.enabled, Photos: []string{},
		Distance: 25, DistanceType: "km",
		Guys: p.gender == "F", Girls: p.gender == "M",
		AgeFrom: 18, AgeTo: 55,
	}).Error)
}

func TestCandidatesFilters(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	seed(t, dbase, seedProfile{userID: 1, name: "Seeker", gender: "M", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	// In range, right gender.
	seed(t, dbase, seedProfile{userID: 2, name: "Near", gender: "F", age: 28, lat: londonLat + 0.01, lng: londonLng, enabled: true})
	// Wrong gender.
	seed(t, dbase, seedProfile{userID: 3, name: "Guy", gender: "M", age: 28, lat: londonLat, lng: londonLng, enabled: true})
	// Disabled profile.
	seed(t, dbase, seedProfile{userID: 4, name: "Hidden", gender: "F", age: 28, lat: londonLat, lng: londonLng, enabled: false})
	// Out of radius (about 110km north).
	seed(t, dbase, seedProfile{userID: 5, name: "Far", gender: "F", age: 28, lat: londonLat + 1.0, lng: londonLng, enabled: true})

	candidates, err := svc.Candidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(2), candidates[0].UserID)
	assert.NotZero(t, candidates[0].Age)
}

func TestCandidatesAgeWindow(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	seed(t, dbase, seedProfile{userID: 1, name: "Seeker", gender: "M", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 2, name: "Young", gender: "F", age: 19, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 3, name: "Match", gender: "F", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 4, name: "Older", gender: "F", age: 45, lat: londonLat, lng: londonLng, enabled: true})

	// Narrow the seeker's preference to 25..35.
	require.NoError(t, dbase.Model(&db.Profile{}).
		Where("user_id = ?", 1).
		Updates(map[string]any{"age_from": 25, "age_to": 35}).Error)

	candidates, err := svc.Candidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(3), candidates[0].UserID)
}

// Age ceiling 55 means "55 and older": no upper bound applies.
func TestCandidatesOpenEndedAgeCeiling(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	seed(t, dbase, seedProfile{userID: 1, name: "Seeker", gender: "M", age: 60, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 2, name: "Senior", gender: "F", age: 70, lat: londonLat, lng: londonLng, enabled: true})

	candidates, err := svc.Candidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(2), candidates[0].UserID)
}

// A pair with any action recorded against the caller never resurfaces,
// including pairs decided only by the other-reject sentinel.
func TestCandidatesExcludeDecided(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	seed(t, dbase, seedProfile{userID: 1, name: "Seeker", gender: "M", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 2, name: "Liked", gender: "F", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 3, name: "RejectedBy", gender: "F", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 4, name: "Fresh", gender: "F", age: 30, lat: londonLat, lng: londonLng, enabled: true})

	// 1 liked 2.
	require.NoError(t, dbase.Create(&db.Match{
		UID1: 1, UID2: 2, U1Action: db.ActionLike, State: db.StatePending,
	}).Error)
	// 3 rejected 1 first: 1's slot carries the sentinel.
	require.NoError(t, dbase.Create(&db.Match{
		UID1: 1, UID2: 3, U1Action: db.ActionOtherReject, U2Action: db.ActionReject,
		State: db.StateRejected,
	}).Error)

	candidates, err := svc.Candidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(4), candidates[0].UserID)
}

func TestCandidatesNoGenderPreference(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	seed(t, dbase, seedProfile{userID: 1, name: "Seeker", gender: "M", age: 30, lat: londonLat, lng: londonLng, enabled: true})
	seed(t, dbase, seedProfile{userID: 2, name: "Other", gender: "F", age: 30, lat: londonLat, lng: londonLng, enabled: true})

	require.NoError(t, dbase.Model(&db.Profile{}).
		Where("user_id = ?", 1).
		Updates(map[string]any{"guys": false, "girls": false}).Error)

	candidates, err := svc.Candidates(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, candidates, 0)
}

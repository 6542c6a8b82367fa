// Package jobs holds the maintenance and reconciliation routines run on a
// schedule. Online swipe and teardown paths absorb failures in
// denormalized state and let these jobs repair it.
package jobs

import (
	"context"
	"slices"
	"time"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/repository"
)

type Jobs struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	users    *repository.UserRepository
	profiles *repository.ProfileRepository
	messages *repository.ChatRepository
}

func New(appCtx *app.AppContext) *Jobs {
	return &Jobs{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		messages: repository.NewChatRepository(appCtx.DB),
	}
}

// RebuildMatches recomputes one user's denormalized match list from the
// canonical Match table and persists it only when it differs. Returns
// whether a repair was made.
func (j *Jobs) RebuildMatches(ctx context.Context, userID uint64) (bool, error) {
	mutual, err := j.matches.MutualForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	want := make([]uint64, 0, len(mutual))
	for _, m := range mutual {
		want = append(want, m.ID)
	}
	slices.Sort(want)

	user, err := j.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	have := slices.Clone(user.Matches)
	slices.Sort(have)

	if slices.Equal(want, have) {
		return false, nil
	}

	if err := j.users.SetMatches(ctx, userID, want); err != nil {
		return false, err
	}
	j.appCtx.Metrics.Reconciliations.Inc()
	j.appCtx.Logger.Info("rebuilt match list",
		"user", userID, "had", len(have), "now", len(want))
	return true, nil
}

// RebuildAllMatches runs RebuildMatches over every user. Per-user
// failures are logged and do not stop the sweep.
func (j *Jobs) RebuildAllMatches(ctx context.Context) error {
	return j.users.EachID(ctx, func(userID uint64) error {
		if _, err := j.RebuildMatches(ctx, userID); err != nil {
			j.appCtx.Logger.Error("match list rebuild failed", "user", userID, "err", err)
		}
		return nil
	})
}

// FixMutualMatchProfiles finds mutual matches whose profile snapshots
// never materialized and fills them in.
func (j *Jobs) FixMutualMatchProfiles(ctx context.Context) error {
	broken, err := j.matches.MutualMissingProfiles(ctx)
	if err != nil {
		return err
	}

	for i := range broken {
		m := &broken[i]
		profiles, err := j.profiles.GetByUserIDs(ctx, []uint64{m.UID1, m.UID2})
		if err != nil {
			j.appCtx.Logger.Error("failed to load profiles for repair", "match", m.ID, "err", err)
			continue
		}
		if len(profiles) != 2 {
			j.appCtx.Logger.Error("mutual match is missing a participant profile",
				"match", m.ID, "found", len(profiles))
			continue
		}

		for k := range profiles {
			if profiles[k].UserID == m.UID1 {
				m.Profile1ID = profiles[k].ID
			} else {
				m.Profile2ID = profiles[k].ID
			}
		}
		if err := j.matches.Save(ctx, m); err != nil {
			j.appCtx.Logger.Error("failed to save repaired match", "match", m.ID, "err", err)
			continue
		}
		j.appCtx.Metrics.Reconciliations.Inc()
	}
	return nil
}

// NewLikeNotifications notifies every user who received at least one new
// like yesterday and has not swiped back yet. One digest push per user,
// scheduled for 8pm local server time.
func (j *Jobs) NewLikeNotifications(ctx context.Context) error {
	now := time.Now()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := to.AddDate(0, 0, -1)

	pending, err := j.matches.PendingCreatedBetween(ctx, from, to)
	if err != nil {
		return err
	}

	// The liked user is the side whose action slot is still unset.
	recipients := make(map[uint64]struct{})
	for _, m := range pending {
		if m.U1Action == db.ActionNone {
			recipients[m.UID1] = struct{}{}
		}
		if m.U2Action == db.ActionNone {
			recipients[m.UID2] = struct{}{}
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	pushTime := time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location())
	payload := notify.NewLikesPayload(pushTime)

	channels := make([]string, 0, len(recipients))
	for uid := range recipients {
		channels = append(channels, notify.Channel(uid))
	}

	if err := j.appCtx.Notifier.Send(ctx, channels, payload); err != nil {
		j.appCtx.Metrics.PushFailures.Inc()
		return svcErr.Delivery("failed to send new-likes digest", err)
	}
	j.appCtx.Metrics.PushesPublished.WithLabelValues(payload.Type).Inc()
	j.appCtx.Logger.Info("sent new-likes digest", "recipients", len(channels))
	return nil
}

// DeleteUnmatched destroys a user's non-mutual matches and their
// messages. Used by teardown sweeps for accounts stuck mid-deletion.
func (j *Jobs) DeleteUnmatched(ctx context.Context, userID uint64) error {
	matches, err := j.matches.NonMutualForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if err := j.messages.DeleteByMatch(ctx, ids); err != nil {
		return err
	}
	return j.matches.HardDelete(ctx, ids)
}

// Package match implements the mutual-match protocol: the swipe resolver,
// the mutual-match materializer and the match read paths.
package match

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/notify"
	"github.com/oggyb/matchd/internal/repository"
)

// likersPageSize is the default page for the "who liked me" listing.
const likersPageSize = 20

// Service contains the business logic on top of the repository, cache and
// notifier layers.
type Service struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	users    *repository.UserRepository
	profiles *repository.ProfileRepository
}

// NewService creates the match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// SwipeResult reports the outcome of one processed swipe.
type SwipeResult struct {
	Match *db.Match
	// NewlyMutual is edge-triggered: true only for the swipe that caused
	// the transition into mutual, never for reads or replays of an
	// already-mutual match.
	NewlyMutual bool
}

// ProcessSwipe applies one user's like/reject decision on another user.
//
// The pair is canonicalized (uid1 < uid2) so concurrent first-swipes from
// either side collide on the same row; the composite unique index is the
// only mutual exclusion used. A create that loses the race falls back to
// re-reading the winner's row and applying the action there.
//
// Replaying the same (actor, target, liked) triple is idempotent: the slot
// is overwritten with the same value and no mutual side effects re-fire.
func (s *Service) ProcessSwipe(ctx context.Context, actorID, targetID uint64, liked bool) (*SwipeResult, error) {
	if actorID == 0 {
		return nil, svcErr.Validation("actor user id was not provided")
	}
	if targetID == 0 {
		return nil, svcErr.Validation("target user id was not provided")
	}
	if actorID == targetID {
		return nil, svcErr.Validation("cannot swipe on yourself")
	}

	// Refuse swipes against accounts in teardown or banned.
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("target user does not exist")
		}
		return nil, err
	}
	if target.Status != db.StatusActive {
		return nil, svcErr.Authorization("target user is not active")
	}

	uid1, uid2, actorIsFirst := repository.CanonicalPair(actorID, targetID)

	// Two attempts: one clean pass plus one retry after losing a
	// concurrent-create race.
	for attempt := 0; attempt < 2; attempt++ {
		match, err := s.matches.GetByPair(ctx, uid1, uid2)
		if err != nil {
			return nil, err
		}

		created := false
		if match == nil {
			match = &db.Match{UID1: uid1, UID2: uid2, State: db.StatePending}
			if !liked {
				// First action on the pair is a reject: pre-set the other
				// party's slot to the other-reject sentinel so discovery's
				// "already decided" filter stays a simple presence test.
				if actorIsFirst {
					match.U2Action = db.ActionOtherReject
				} else {
					match.U1Action = db.ActionOtherReject
				}
			}
			created = true
		}

		// A torn-down match never transitions again.
		if match.State == db.StateDeleted {
			return &SwipeResult{Match: match}, nil
		}

		prev := swipeTransition{PrevState: match.State}
		if actorIsFirst {
			prev.PrevActor, prev.PrevOther = match.U1Action, match.U2Action
		} else {
			prev.PrevActor, prev.PrevOther = match.U2Action, match.U1Action
		}

		action := db.ActionReject
		if liked {
			action = db.ActionLike
		}
		if actorIsFirst {
			match.U1Action = action
		} else {
			match.U2Action = action
		}
		match.State = resolveState(match.U1Action, match.U2Action)

		newlyMutual := match.State == db.StateMutual && prev.PrevState != db.StateMutual
		if newlyMutual {
			// Attach profile snapshots before the state write so a mutual
			// match is never observed without them except on integrity
			// failure, which the fix job repairs.
			if err := s.materialize(ctx, match); err != nil {
				s.appCtx.Logger.Error("mutual match materialization failed",
					"match_uid1", match.UID1, "match_uid2", match.UID2, "err", err)
			}
		}

		if created {
			err = s.matches.Create(ctx, match)
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the first-swipe race; the other side's create won.
				continue
			}
		} else {
			err = s.matches.UpdateSwipe(ctx, match, actorIsFirst)
		}
		if err != nil {
			return nil, err
		}

		s.afterSwipe(ctx, match, actorID, targetID, liked, newlyMutual, prev)

		return &SwipeResult{Match: match, NewlyMutual: newlyMutual}, nil
	}

	return nil, svcErr.Conflict("could not resolve concurrent swipes for pair")
}

// resolveState is the transition table: state is a pure function of the
// two action slots.
func resolveState(u1, u2 db.Action) db.MatchState {
	switch {
	case u1 == db.ActionReject || u2 == db.ActionReject:
		return db.StateRejected
	case u1 == db.ActionLike && u2 == db.ActionLike:
		return db.StateMutual
	default:
		return db.StatePending
	}
}

// materialize loads both participants' profiles and attaches the
// snapshots in canonical order: profile1 always belongs to uid1.
// Fewer than two profiles is a data-integrity error; the match keeps its
// protocol state and jobs.FixMutualMatchProfiles retries later.
func (s *Service) materialize(ctx context.Context, match *db.Match) error {
	profiles, err := s.profiles.GetByUserIDs(ctx, []uint64{match.UID1, match.UID2})
	if err != nil {
		return svcErr.Integrity("failed to load profiles for mutual match", err)
	}
	if len(profiles) != 2 {
		return svcErr.Integrity("expected 2 profiles for mutual match", nil)
	}

	if profiles[0].UserID == match.UID1 {
		match.Profile1ID = profiles[0].ID
		match.Profile2ID = profiles[1].ID
	} else {
		match.Profile1ID = profiles[1].ID
		match.Profile2ID = profiles[0].ID
	}
	return nil
}

// swipeTransition is the pair's state before one swipe was applied, seen
// from the acting user's side. The cached counters are adjusted from it.
type swipeTransition struct {
	PrevState db.MatchState
	PrevActor db.Action
	PrevOther db.Action
}

// afterSwipe runs the denormalized and best-effort side effects of a
// persisted swipe. Nothing here may fail the swipe: the canonical state
// is already written and maintenance jobs can rebuild the rest.
func (s *Service) afterSwipe(ctx context.Context, match *db.Match, actorID, targetID uint64, liked, newlyMutual bool, prev swipeTransition) {
	// Bump cached pending-likers counts only when the swipe changed a
	// counted set. A fresh like that leaves the pair pending adds the
	// actor to the target's set; resolving a pending like from the other
	// side (mutual or reject) removes the target from the actor's set.
	if liked && prev.PrevActor != db.ActionLike && match.State == db.StatePending {
		s.bumpLikedBy(ctx, targetID, 1)
	}
	if !liked && prev.PrevActor == db.ActionLike && prev.PrevState == db.StatePending {
		s.bumpLikedBy(ctx, targetID, -1)
	}
	if prev.PrevOther == db.ActionLike && prev.PrevState == db.StatePending && match.State != db.StatePending {
		s.bumpLikedBy(ctx, actorID, -1)
	}

	outcome := "pending"
	switch {
	case newlyMutual:
		outcome = "mutual"
	case match.State == db.StateRejected:
		outcome = "rejected"
	case match.State == db.StateMutual:
		outcome = "replay"
	}
	s.appCtx.Metrics.SwipesProcessed.WithLabelValues(outcome).Inc()

	if !newlyMutual {
		return
	}
	s.appCtx.Metrics.MutualMatches.Inc()

	// Add the match id to both users' denormalized lists. Failures are
	// logged; jobs.RebuildMatches reconciles.
	for _, uid := range []uint64{match.UID1, match.UID2} {
		if err := s.users.AddMatch(ctx, uid, match.ID); err != nil {
			s.appCtx.Logger.Error("failed to add match to user list",
				"user", uid, "match", match.ID, "err", err)
		}
	}

	// One notify-match push per mutual transition, addressed to the side
	// that did not trigger it. Fire-and-forget.
	payload := notify.NewMatchPayload(match.ID)
	if err := s.appCtx.Notifier.Send(ctx, notify.Channels(targetID), payload); err != nil {
		s.appCtx.Metrics.PushFailures.Inc()
		s.appCtx.Logger.Error("failed to send match notification",
			"match", match.ID, "recipient", targetID, "err", err)
	} else {
		s.appCtx.Metrics.PushesPublished.WithLabelValues(payload.Type).Inc()
	}
}

func (s *Service) bumpLikedBy(ctx context.Context, userID uint64, delta int64) {
	if err := s.appCtx.Cache.BumpLikedByCount(ctx, userID, delta); err != nil {
		s.appCtx.Logger.Warn("failed to bump liked-by counter", "user", userID, "err", err)
	}
}

// MutualMatches loads the caller's mutual matches for the given ids, with
// the counterpart's scrubbed profile attached and the caller's own
// profile omitted.
func (s *Service) MutualMatches(ctx context.Context, userID uint64, matchIDs []uint64) ([]MatchView, error) {
	if len(matchIDs) == 0 {
		return nil, svcErr.Validation("match ids were not provided")
	}

	matches, err := s.matches.MutualByIDs(ctx, matchIDs)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		if _, ok := m.OtherUser(userID); !ok {
			s.appCtx.Logger.Error("attempted to load match not belonging to user",
				"match", m.ID, "user", userID)
			continue
		}

		profileID := m.Profile1ID
		if m.UID1 == userID {
			profileID = m.Profile2ID
		}
		if profileID == 0 {
			// Materialization is still outstanding for this match.
			continue
		}
		profile, err := s.profiles.GetByID(ctx, profileID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		views = append(views, MatchView{
			ID:        m.ID,
			State:     string(m.State),
			Profile:   scrubProfile(profile),
			CreatedAt: m.CreatedAt.UnixMilli(),
			UpdatedAt: m.UpdatedAt.UnixMilli(),
		})
	}
	return views, nil
}

// MatchProfile returns the counterpart's scrubbed profile for one mutual
// match the caller belongs to.
func (s *Service) MatchProfile(ctx context.Context, userID, matchID uint64) (*ProfileView, error) {
	if matchID == 0 {
		return nil, svcErr.Validation("match id was not provided")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !contains(user.Matches, matchID) {
		return nil, svcErr.Authorization("match is not a mutual match for this user")
	}

	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("match does not exist")
		}
		return nil, err
	}
	if m.State != db.StateMutual {
		return nil, svcErr.Authorization("match is not mutual")
	}

	var profileID uint64
	switch userID {
	case m.UID1:
		profileID = m.Profile2ID
	case m.UID2:
		profileID = m.Profile1ID
	default:
		return nil, svcErr.Authorization("user does not belong to match")
	}
	if profileID == 0 {
		return nil, svcErr.Integrity("mutual match has no profile snapshot", nil)
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return scrubProfile(profile), nil
}

// LikedBy pages through the profiles of users who liked the caller on
// still-pending matches.
func (s *Service) LikedBy(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]ProfileView, *string, error) {
	if limit <= 0 {
		limit = likersPageSize
	}

	matches, nextToken, err := s.matches.PendingLikers(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, err
	}

	likerIDs := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if other, ok := m.OtherUser(userID); ok {
			likerIDs = append(likerIDs, other)
		}
	}
	if len(likerIDs) == 0 {
		return []ProfileView{}, nil, nil
	}

	profiles, err := s.profiles.GetByUserIDs(ctx, likerIDs)
	if err != nil {
		return nil, nil, err
	}

	byUser := make(map[uint64]*db.Profile, len(profiles))
	for i := range profiles {
		byUser[profiles[i].UserID] = &profiles[i]
	}

	// Preserve the match ordering from the page.
	views := make([]ProfileView, 0, len(likerIDs))
	for _, uid := range likerIDs {
		if p, ok := byUser[uid]; ok {
			views = append(views, *scrubProfile(p))
		}
	}
	return views, nextToken, nil
}

// CountLikedBy returns how many users have liked the caller and are still
// waiting on a swipe back.
//
// Cache-first: Redis counter with TTL, database as the fallback, cache
// repopulated on a miss.
func (s *Service) CountLikedBy(ctx context.Context, userID uint64) (int64, error) {
	if n, found, err := s.appCtx.Cache.GetLikedByCount(ctx, userID); err == nil && found {
		return n, nil
	}

	count, err := s.matches.CountPendingLikers(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := s.appCtx.Cache.SetLikedByCount(ctx, userID, count); err != nil {
		s.appCtx.Logger.Warn("failed to cache liked-by count", "user", userID, "err", err)
	}
	return count, nil
}

// MatchView is a mutual match as returned to its participant: the
// counterpart's profile only.
type MatchView struct {
	ID        uint64       `json:"id"`
	State     string       `json:"state"`
	Profile   *ProfileView `json:"profile"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
}

// ProfileView is a profile as shown to other users: birthdate collapsed
// to an age, preferences and notification settings stripped.
type ProfileView struct {
	ID     uint64   `json:"id"`
	UserID uint64   `json:"userId"`
	Name   string   `json:"name"`
	Age    int      `json:"age,omitempty"`
	Gender string   `json:"gender"`
	About  string   `json:"about,omitempty"`
	Photos []string `json:"photos"`
}

func scrubProfile(p *db.Profile) *ProfileView {
	view := &ProfileView{
		ID:     p.ID,
		UserID: p.UserID,
		Name:   p.Name,
		Gender: p.Gender,
		About:  p.About,
		Photos: p.Photos,
	}
	if view.Photos == nil {
		view.Photos = []string{}
	}
	if p.Birthdate != nil {
		view.Age = ageInYears(*p.Birthdate)
	}
	return view
}

func ageInYears(birthdate time.Time) int {
	years := time.Now().Year() - birthdate.Year()
	if time.Now().YearDay() < birthdate.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

func contains(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

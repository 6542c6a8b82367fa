package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
	"github.com/oggyb/matchd/internal/utils/pagination"
)

// maxPage is the hard cap on unpaged protocol queries. Callers must treat
// it as a page size, never as "everything".
const maxPage = 1000

// CanonicalPair orders two user ids so every unordered pair has exactly
// one storage key. The second return value is true when a is the lower,
// i.e. the acting user owns the U1Action slot.
func CanonicalPair(a, b uint64) (uint64, uint64, bool) {
	if a < b {
		return a, b, true
	}
	return b, a, false
}

// MatchRepository provides data access for the Match model. It
// encapsulates every query of the swipe protocol and the teardown paths.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// GetByPair loads the single match for a canonical pair, or nil when the
// pair has never interacted. The composite unique index on (uid1, uid2)
// guarantees at most one row.
func (r *MatchRepository) GetByPair(ctx context.Context, uid1, uid2 uint64) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("uid1 = ? AND uid2 = ?", uid1, uid2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// Create inserts a new match row. A concurrent first-swipe on the same
// pair surfaces as gorm.ErrDuplicatedKey; the resolver retries by
// re-reading the winner's row.
func (r *MatchRepository) Create(ctx context.Context, match *db.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// Save persists the full match record.
func (r *MatchRepository) Save(ctx context.Context, match *db.Match) error {
	return r.db.WithContext(ctx).Save(match).Error
}

// UpdateSwipe persists one swipe's writes on an existing row, scoped to
// the acting user's own action slot plus the derived columns. Scoping
// keeps two concurrent second-swipes from erasing each other's slot.
func (r *MatchRepository) UpdateSwipe(ctx context.Context, match *db.Match, actorIsFirst bool) error {
	cols := map[string]interface{}{
		"state":       match.State,
		"profile1_id": match.Profile1ID,
		"profile2_id": match.Profile2ID,
	}
	if actorIsFirst {
		cols["u1_action"] = match.U1Action
	} else {
		cols["u2_action"] = match.U2Action
	}
	return r.db.WithContext(ctx).Model(match).Updates(cols).Error
}

// GetByID loads one match.
func (r *MatchRepository) GetByID(ctx context.Context, id uint64) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, id).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

// MutualByIDs loads the mutual matches among the given ids.
func (r *MatchRepository) MutualByIDs(ctx context.Context, ids []uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("state = ?", db.StateMutual).
		Where("id IN ?", ids).
		Limit(maxPage).
		Find(&matches).Error
	return matches, err
}

// MutualForUser returns the user's mutual matches, either side of the pair.
func (r *MatchRepository) MutualForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("state = ?", db.StateMutual).
		Where("uid1 = ? OR uid2 = ?", userID, userID).
		Limit(maxPage).
		Find(&matches).Error
	return matches, err
}

// NonMutualForUser returns the user's pending and rejected matches. These
// are the rows the other side never learned about, so teardown may
// hard-delete them without notification.
func (r *MatchRepository) NonMutualForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("state IN ?", []db.MatchState{db.StatePending, db.StateRejected}).
		Where("uid1 = ? OR uid2 = ?", userID, userID).
		Limit(maxPage).
		Find(&matches).Error
	return matches, err
}

// HardDelete removes match rows permanently. Normal operation only
// soft-deletes (state D); this is for teardown and admin cleanup, and the
// caller is responsible for cascading to chat messages and match lists.
func (r *MatchRepository) HardDelete(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&db.Match{}, ids).Error
}

// PendingLikers pages through pending matches where the other side has
// liked userID but userID has not swiped yet.
//
// Ordered by created_at DESC, id DESC with cursor-based pagination.
func (r *MatchRepository) PendingLikers(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	var matches []db.Match

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("state = ?", db.StatePending).
		Where(
			"(uid1 = ? AND u2_action = ?) OR (uid2 = ? AND u1_action = ?)",
			userID, db.ActionLike, userID, db.ActionLike,
		).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor.LastID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.LastID,
		)
	}

	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			LastID:      last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// CountPendingLikers counts the pending matches where the other side has
// liked userID. Used with the Redis cache (DB is the fallback).
func (r *MatchRepository) CountPendingLikers(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("state = ?", db.StatePending).
		Where(
			"(uid1 = ? AND u2_action = ?) OR (uid2 = ? AND u1_action = ?)",
			userID, db.ActionLike, userID, db.ActionLike,
		).
		Count(&count).Error
	return count, err
}

// DecidedUserIDs returns the ids of every user already decided with
// respect to userID: pairs where userID's own slot is set (liked or
// rejected) or where the sentinel other-reject is set against them.
// Discovery excludes these from candidate search.
func (r *MatchRepository) DecidedUserIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Select("uid1", "uid2").
		Where(
			"(uid1 = ? AND u1_action <> '') OR (uid2 = ? AND u2_action <> '')",
			userID, userID,
		).
		Limit(maxPage).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if other, ok := m.OtherUser(userID); ok {
			ids = append(ids, other)
		}
	}
	return ids, nil
}

// MutualMissingProfiles finds mutual matches whose profile snapshots were
// never attached (a failed materialization). The fix job re-runs
// materialization over these.
func (r *MatchRepository) MutualMissingProfiles(ctx context.Context) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("state = ?", db.StateMutual).
		Where("profile1_id = 0 OR profile2_id = 0").
		Limit(maxPage).
		Find(&matches).Error
	return matches, err
}

// PendingCreatedBetween returns pending matches created in [from, to).
// Used by the daily new-likes digest.
func (r *MatchRepository) PendingCreatedBetween(ctx context.Context, from, to time.Time) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("state = ?", db.StatePending).
		Where("created_at >= ? AND created_at < ?", from, to).
		Limit(maxPage).
		Find(&matches).Error
	return matches, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

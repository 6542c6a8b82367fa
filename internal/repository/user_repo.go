package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
)

// UserRepository provides data access for User records, including the
// denormalized match-list mutations that only server-trusted paths may
// perform.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) Create(ctx context.Context, user *db.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Limit(maxPage).Find(&users).Error
	return users, err
}

func (r *UserRepository) Save(ctx context.Context, user *db.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// SetStatus flips the user's lifecycle status. Teardown marks the user
// before any destructive step so swipes and messages against a
// mid-teardown account are refused.
func (r *UserRepository) SetStatus(ctx context.Context, userID uint64, status db.UserStatus) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("status", status).Error
}

// AddMatch appends matchID to the user's denormalized match list.
// Idempotent: adding an already-present id is a no-op.
func (r *UserRepository) AddMatch(ctx context.Context, userID, matchID uint64) error {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if slices.Contains(user.Matches, matchID) {
		return nil
	}
	user.Matches = append(user.Matches, matchID)
	return r.Save(ctx, user)
}

// RemoveMatch drops matchID from the user's denormalized match list.
// Removing an absent id is a no-op.
func (r *UserRepository) RemoveMatch(ctx context.Context, userID, matchID uint64) error {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	idx := slices.Index(user.Matches, matchID)
	if idx < 0 {
		return nil
	}
	user.Matches = slices.Delete(user.Matches, idx, idx+1)
	return r.Save(ctx, user)
}

// SetMatches replaces the denormalized list wholesale. Used by the
// rebuild job and the ban cascade.
func (r *UserRepository) SetMatches(ctx context.Context, userID uint64, matches []uint64) error {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Matches = matches
	return r.Save(ctx, user)
}

// HardDelete removes the user row permanently. Only the account-deletion
// procedure calls this, after archiving.
func (r *UserRepository) HardDelete(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Delete(&db.User{}, userID).Error
}

// Archive stores the serialized user+profile snapshot tombstone.
func (r *UserRepository) Archive(ctx context.Context, record *db.DeletedUser) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// EachID streams all user ids in batches, for whole-population jobs.
func (r *UserRepository) EachID(ctx context.Context, fn func(userID uint64) error) error {
	var lastID uint64
	for {
		var users []db.User
		err := r.db.WithContext(ctx).
			Select("id").
			Where("id > ?", lastID).
			Order("id").
			Limit(maxPage).
			Find(&users).Error
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		for _, u := range users {
			if err := fn(u.ID); err != nil {
				return err
			}
			lastID = u.ID
		}
	}
}

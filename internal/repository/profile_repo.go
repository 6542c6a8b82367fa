package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
)

// ProfileRepository provides data access for Profile records and the
// discovery candidate query.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *db.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *ProfileRepository) Save(ctx context.Context, profile *db.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uint64) (*db.Profile, error) {
	var profile db.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUserID loads the single profile owned by a user, nil when absent.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uint64) (*db.Profile, error) {
	var profile db.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUserIDs loads profiles for a set of owners. The materializer
// treats fewer rows than requested ids as an integrity failure.
func (r *ProfileRepository) GetByUserIDs(ctx context.Context, userIDs []uint64) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Limit(maxPage).Find(&profiles).Error
	return profiles, err
}

// GetByIDs loads profiles by primary key.
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []uint64) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Limit(maxPage).Find(&profiles).Error
	return profiles, err
}

// DeleteByUserID removes the profile row for a user.
func (r *ProfileRepository) DeleteByUserID(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Profile{}).Error
}

// SetEnabled flips discoverability.
func (r *ProfileRepository) SetEnabled(ctx context.Context, userID uint64, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Update("enabled", enabled).Error
}

// CandidateFilter narrows the discovery query. Geo distance is filtered
// in Go by the caller (no geo index in MySQL here); the query only
// applies the cheap indexable predicates and the hard page cap.
type CandidateFilter struct {
	Genders        []string
	BirthdateFrom  *time.Time // oldest allowed, exclusive
	BirthdateTo    *time.Time // youngest allowed, exclusive
	ExcludeUserIDs []uint64
}

// Candidates returns enabled profiles matching the filter, most recently
// active first, capped at maxPage rows.
func (r *ProfileRepository) Candidates(ctx context.Context, f CandidateFilter) ([]db.Profile, error) {
	query := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("gender IN ?", f.Genders)

	if f.BirthdateTo != nil {
		query = query.Where("birthdate < ?", *f.BirthdateTo)
	}
	if f.BirthdateFrom != nil {
		query = query.Where("birthdate > ?", *f.BirthdateFrom)
	}
	if len(f.ExcludeUserIDs) > 0 {
		query = query.Where("user_id NOT IN ?", f.ExcludeUserIDs)
	}

	var profiles []db.Profile
	err := query.Order("updated_at DESC").Limit(maxPage).Find(&profiles).Error
	return profiles, err
}

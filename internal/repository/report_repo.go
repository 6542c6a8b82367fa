package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
)

// ReportRepository provides data access for moderation Report records.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, report *db.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, id uint64) (*db.Report, error) {
	var report db.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) Save(ctx context.Context, report *db.Report) error {
	return r.db.WithContext(ctx).Save(report).Error
}

// Open returns reports with no action taken yet, newest first.
func (r *ReportRepository) Open(ctx context.Context) ([]db.Report, error) {
	var reports []db.Report
	err := r.db.WithContext(ctx).
		Where("action_taken = ''").
		Order("created_at DESC").
		Limit(maxPage).
		Find(&reports).Error
	return reports, err
}

// AgainstUser returns every report filed against a user.
func (r *ReportRepository) AgainstUser(ctx context.Context, userID uint64) ([]db.Report, error) {
	var reports []db.Report
	err := r.db.WithContext(ctx).
		Where("reported_user = ?", userID).
		Order("updated_at DESC").
		Limit(maxPage).
		Find(&reports).Error
	return reports, err
}

// CloseAllAgainst stamps every open report against a user with the given
// action. Used by the ban cascade.
func (r *ReportRepository) CloseAllAgainst(ctx context.Context, userID uint64, action string, actionUser uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Report{}).
		Where("reported_user = ? AND action_taken = ''", userID).
		Updates(map[string]interface{}{
			"action_taken": action,
			"action_user":  actionUser,
		}).Error
}

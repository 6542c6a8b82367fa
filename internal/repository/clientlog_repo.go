package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
)

// ClientLogRepository stores diagnostics records uploaded by clients.
type ClientLogRepository struct {
	db *gorm.DB
}

func NewClientLogRepository(database *gorm.DB) *ClientLogRepository {
	return &ClientLogRepository{db: database}
}

func (r *ClientLogRepository) Create(ctx context.Context, entry *db.ClientLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Recent returns a user's latest uploaded log lines.
func (r *ClientLogRepository) Recent(ctx context.Context, userID uint64, limit int) ([]db.ClientLog, error) {
	var entries []db.ClientLog
	err := r.db.WithContext(ctx).
		Where("uid = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

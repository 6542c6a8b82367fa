package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/db"
)

// ChatRepository provides data access for ChatMessage records.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(database *gorm.DB) *ChatRepository {
	return &ChatRepository{db: database}
}

func (r *ChatRepository) Create(ctx context.Context, msg *db.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// Save re-persists an existing message. Trusted maintenance paths only;
// the service layer guarantees no re-notification on this path.
func (r *ChatRepository) Save(ctx context.Context, msg *db.ChatMessage) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

func (r *ChatRepository) GetByID(ctx context.Context, id uint64) (*db.ChatMessage, error) {
	var msg db.ChatMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByMatch returns a match's messages newest first. beforeID=0 means
// from the latest.
func (r *ChatRepository) ListByMatch(ctx context.Context, matchID, beforeID uint64, limit int) ([]db.ChatMessage, error) {
	query := r.db.WithContext(ctx).Where("match_id = ?", matchID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	var msgs []db.ChatMessage
	err := query.Order("id DESC").Limit(limit).Find(&msgs).Error
	return msgs, err
}

// RecentBySender returns a user's latest messages, for moderation review.
func (r *ChatRepository) RecentBySender(ctx context.Context, senderID uint64, limit int) ([]db.ChatMessage, error) {
	var msgs []db.ChatMessage
	err := r.db.WithContext(ctx).
		Where("sender = ?", senderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// DeleteByMatch cascades a hard match deletion to its messages.
func (r *ChatRepository) DeleteByMatch(ctx context.Context, matchIDs []uint64) error {
	if len(matchIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("match_id IN ?", matchIDs).Delete(&db.ChatMessage{}).Error
}

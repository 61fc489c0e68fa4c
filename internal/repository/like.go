package repository

import (
	"context"
	"fmt"

	"github.com/feed-system/warbler/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Create 插入点赞，已存在时不做任何事；返回是否新插入
func (r *LikeRepository) Create(ctx context.Context, userID, messageID uint) (bool, error) {
	like := &models.Like{
		UserID:    userID,
		MessageID: messageID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create like: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete 删除点赞；返回是否确实删除了一行
func (r *LikeRepository) Delete(ctx context.Context, userID, messageID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Like{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete like: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *LikeRepository) DeleteByMessage(ctx context.Context, messageID uint) error {
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes of message: %w", err)
	}
	return nil
}

// DeleteByUser 删除用户点过的赞，以及别人对该用户消息的赞
func (r *LikeRepository) DeleteByUser(ctx context.Context, userID uint) error {
	authored := r.db.Model(&models.Message{}).
		Select("id").
		Where("user_id = ?", userID)

	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR message_id IN (?)", userID, authored).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes of user: %w", err)
	}
	return nil
}

func (r *LikeRepository) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check like status: %w", err)
	}
	return count > 0, nil
}

func (r *LikeRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes by user: %w", err)
	}
	return count, nil
}

func (r *LikeRepository) CountByMessage(ctx context.Context, messageID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("message_id = ?", messageID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// LikedMessages 返回用户点过赞的消息，最近点赞的在前
func (r *LikeRepository) LikedMessages(ctx context.Context, userID uint) ([]*models.Message, error) {
	var messages []*models.Message
	if err := r.db.WithContext(ctx).
		Preload("User").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC, messages.id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked messages: %w", err)
	}
	return messages, nil
}

// LikedAmong 返回 messageIDs 中用户已点赞的消息 ID
func (r *LikeRepository) LikedAmong(ctx context.Context, userID uint, messageIDs []uint) ([]uint, error) {
	ids := make([]uint, 0)
	if len(messageIDs) == 0 {
		return ids, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Order("message_id ASC").
		Pluck("message_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked message ids: %w", err)
	}
	return ids, nil
}

package services

import (
	"context"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/metrics"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LikeState 点赞切换后的状态
type LikeState string

const (
	Liked   LikeState = "liked"
	Unliked LikeState = "unliked"
)

type LikeService struct {
	db          *gorm.DB
	likeRepo    *repository.LikeRepository
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
	producer    queue.Publisher
	logger      *logger.Logger
}

func NewLikeService(db *gorm.DB, likeRepo *repository.LikeRepository, messageRepo *repository.MessageRepository, userRepo *repository.UserRepository, producer queue.Publisher, logger *logger.Logger) *LikeService {
	return &LikeService{
		db:          db,
		likeRepo:    likeRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		producer:    producer,
		logger:      logger,
	}
}

// ToggleLike 已点赞则取消，否则点赞。检查与写入在同一事务中完成
func (s *LikeService) ToggleLike(ctx context.Context, userID, messageID uint) (LikeState, error) {
	var state LikeState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message, err := s.messageRepo.WithTx(tx).GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if message == nil {
			return apperror.NotFound("message", messageID)
		}
		if message.UserID == userID {
			return apperror.SelfAction("cannot like your own message")
		}

		user, err := s.userRepo.WithTx(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperror.NotFound("user", userID)
		}

		likes := s.likeRepo.WithTx(tx)
		removed, err := likes.Delete(ctx, userID, messageID)
		if err != nil {
			return err
		}
		if removed {
			state = Unliked
			return nil
		}

		// 并发插入时 DO NOTHING，结果仍为已点赞
		if _, err := likes.Create(ctx, userID, messageID); err != nil {
			return err
		}
		state = Liked
		return nil
	})
	if err != nil {
		return "", err
	}

	event := queue.Event{
		Type:    queue.EventLikeCreated,
		ActorID: userID,
		Data:    queue.LikeEventData{UserID: userID, MessageID: messageID},
	}
	action := metrics.ActionLike
	if state == Unliked {
		event.Type = queue.EventLikeDeleted
		action = metrics.ActionUnlike
	}
	publishEvent(ctx, s.producer, s.logger, event)
	metrics.RecordAction(action)

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"message_id": messageID,
		"state":      state,
	}).Info("Like toggled")
	return state, nil
}

func (s *LikeService) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	return s.likeRepo.IsLiked(ctx, userID, messageID)
}

// CountLikesBy 用户点赞过的消息数
func (s *LikeService) CountLikesBy(ctx context.Context, userID uint) (int64, error) {
	return s.likeRepo.CountByUser(ctx, userID)
}

// CountLikesOn 消息收到的点赞数
func (s *LikeService) CountLikesOn(ctx context.Context, messageID uint) (int64, error) {
	return s.likeRepo.CountByMessage(ctx, messageID)
}

// LikedAmong 返回 messageIDs 中 userID 已点赞的部分
func (s *LikeService) LikedAmong(ctx context.Context, userID uint, messageIDs []uint) ([]uint, error) {
	return s.likeRepo.LikedAmong(ctx, userID, messageIDs)
}

func (s *LikeService) LikedMessages(ctx context.Context, userID uint) ([]*models.Message, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return s.likeRepo.LikedMessages(ctx, userID)
}

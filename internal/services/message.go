package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/metrics"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MessageService struct {
	db          *gorm.DB
	messageRepo *repository.MessageRepository
	likeRepo    *repository.LikeRepository
	userRepo    *repository.UserRepository
	producer    queue.Publisher
	logger      *logger.Logger
	now         func() time.Time
}

func NewMessageService(db *gorm.DB, messageRepo *repository.MessageRepository, likeRepo *repository.LikeRepository, userRepo *repository.UserRepository, producer queue.Publisher, logger *logger.Logger) *MessageService {
	return &MessageService{
		db:          db,
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
		userRepo:    userRepo,
		producer:    producer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock 替换时间来源，用于测试
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.now = now
	return s
}

type PostMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *MessageService) Post(ctx context.Context, authorID uint, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation("text", "text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return nil, apperror.Validation("text", "text must be at most 140 characters")
	}

	author, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, apperror.NotFound("user", authorID)
	}

	message := &models.Message{
		Text:      text,
		Timestamp: s.now(),
		UserID:    authorID,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	message.User = author

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventMessageCreated,
		ActorID: authorID,
		Data: queue.MessageEventData{
			MessageID: message.ID,
			UserID:    authorID,
			Text:      message.Text,
			Timestamp: message.Timestamp,
		},
	})
	metrics.RecordAction(metrics.ActionPost)

	s.logger.WithFields(logrus.Fields{
		"message_id": message.ID,
		"user_id":    authorID,
	}).Info("Message posted")
	return message, nil
}

func (s *MessageService) Get(ctx context.Context, messageID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, apperror.NotFound("message", messageID)
	}
	return message, nil
}

// ListByUser 返回用户的消息，最新的在前
func (s *MessageService) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	return s.messageRepo.GetByUserID(ctx, userID, limit)
}

// Delete 只有作者本人可以删除消息，消息上的点赞一并删除
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID uint) error {
	var message *models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		message, err = s.messageRepo.WithTx(tx).GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if message == nil {
			return apperror.NotFound("message", messageID)
		}
		if message.UserID != requesterID {
			return apperror.Unauthorized("cannot delete another user's message")
		}

		if err := s.likeRepo.WithTx(tx).DeleteByMessage(ctx, messageID); err != nil {
			return err
		}
		return s.messageRepo.WithTx(tx).Delete(ctx, messageID)
	})
	if err != nil {
		return err
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventMessageDeleted,
		ActorID: requesterID,
		Data: queue.MessageEventData{
			MessageID: messageID,
			UserID:    message.UserID,
			Timestamp: message.Timestamp,
		},
	})
	metrics.RecordAction(metrics.ActionMessageDelete)

	s.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"user_id":    requesterID,
	}).Info("Message deleted")
	return nil
}

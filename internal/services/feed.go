package services

import (
	"context"

	"github.com/feed-system/warbler/internal/config"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/sirupsen/logrus"
)

// MaxFeedLimit 首页最多返回的消息数
const MaxFeedLimit = 100

type FeedService struct {
	messageRepo *repository.MessageRepository
	limit       int
	logger      *logger.Logger
}

func NewFeedService(messageRepo *repository.MessageRepository, config *config.FeedConfig, logger *logger.Logger) *FeedService {
	limit := MaxFeedLimit
	if config != nil && config.Limit > 0 && config.Limit < MaxFeedLimit {
		limit = config.Limit
	}
	return &FeedService{
		messageRepo: messageRepo,
		limit:       limit,
		logger:      logger,
	}
}

// GetFeed 返回用户自己及其关注的用户发布的消息，按时间倒序，相同时间按 id 升序
func (s *FeedService) GetFeed(ctx context.Context, userID uint, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	messages, err := s.messageRepo.Feed(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(messages),
	}).Debug("Feed assembled")
	return messages, nil
}

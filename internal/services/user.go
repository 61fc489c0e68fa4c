package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/metrics"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	followRepo  *repository.FollowRepository
	messageRepo *repository.MessageRepository
	likeRepo    *repository.LikeRepository
	producer    queue.Publisher
	logger      *logger.Logger
}

func NewUserService(db *gorm.DB, userRepo *repository.UserRepository, followRepo *repository.FollowRepository, messageRepo *repository.MessageRepository, likeRepo *repository.LikeRepository, producer queue.Publisher, logger *logger.Logger) *UserService {
	return &UserService{
		db:          db,
		userRepo:    userRepo,
		followRepo:  followRepo,
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
		producer:    producer,
		logger:      logger,
	}
}

type UpdateProfileRequest struct {
	Username        string  `json:"username" validate:"required,max=50"`
	Email           string  `json:"email" validate:"required,email,max=254"`
	ImageURL        string  `json:"image_url" validate:"max=2048"`
	HeaderImageURL  string  `json:"header_image_url" validate:"max=2048"`
	Bio             *string `json:"bio" validate:"omitempty,max=500"`
	Location        *string `json:"location" validate:"omitempty,max=100"`
	CurrentPassword string  `json:"password" validate:"required"`
}

// Profile 用户主页数据
type Profile struct {
	User           *models.User `json:"user"`
	MessageCount   int64        `json:"message_count"`
	FollowingCount int64        `json:"following_count"`
	FollowerCount  int64        `json:"follower_count"`
	LikeCount      int64        `json:"like_count"`
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return user, nil
}

// List 按用户名子串搜索，query 为空时返回全部用户
func (s *UserService) List(ctx context.Context, query string) ([]*models.User, error) {
	return s.userRepo.Search(ctx, strings.TrimSpace(query))
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{User: user}
	if profile.MessageCount, err = s.messageRepo.CountByUser(ctx, userID); err != nil {
		return nil, err
	}
	if profile.FollowingCount, err = s.followRepo.CountFollowing(ctx, userID); err != nil {
		return nil, err
	}
	if profile.FollowerCount, err = s.followRepo.CountFollowers(ctx, userID); err != nil {
		return nil, err
	}
	if profile.LikeCount, err = s.likeRepo.CountByUser(ctx, userID); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile 修改资料前需要重新校验当前密码
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.HeaderImageURL = strings.TrimSpace(req.HeaderImageURL)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)

		current, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("user", userID)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(current.Password), []byte(req.CurrentPassword)); err != nil {
			return apperror.Unauthorized("incorrect password")
		}

		// 用户名、邮箱变更时检查冲突
		if req.Username != current.Username {
			other, err := users.GetByUsername(ctx, req.Username)
			if err != nil {
				return err
			}
			if other != nil {
				return apperror.Duplicate("user", "username")
			}
		}
		if req.Email != current.Email {
			other, err := users.GetByEmail(ctx, req.Email)
			if err != nil {
				return err
			}
			if other != nil {
				return apperror.Duplicate("user", "email")
			}
		}

		current.Username = req.Username
		current.Email = req.Email
		current.ImageURL = req.ImageURL
		current.HeaderImageURL = req.HeaderImageURL
		current.Bio = req.Bio
		current.Location = req.Location

		if err := users.Update(ctx, current); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Duplicate("user", "")
			}
			return err
		}
		user = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventUserUpdated,
		ActorID: user.ID,
		Data:    queue.UserEventData{UserID: user.ID, Username: user.Username},
	})
	metrics.RecordAction(metrics.ActionProfileUpdate)

	s.logger.WithField("user_id", user.ID).Info("User profile updated")
	return user, nil
}

// IsFollowing 判断 userID 是否关注了 otherID
func (s *UserService) IsFollowing(ctx context.Context, userID, otherID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, userID, otherID)
}

// IsFollowedBy 判断 userID 是否被 otherID 关注
func (s *UserService) IsFollowedBy(ctx context.Context, userID, otherID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, otherID, userID)
}

func (s *UserService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return apperror.SelfAction("cannot follow yourself")
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)

		// 检查双方是否存在
		for _, id := range []uint{followerID, targetID} {
			user, err := users.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if user == nil {
				return apperror.NotFound("user", id)
			}
		}

		var err error
		inserted, err = s.followRepo.WithTx(tx).Create(ctx, followerID, targetID)
		return err
	})
	if err != nil {
		return err
	}

	// 重复关注不产生事件
	if !inserted {
		return nil
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventFollowCreated,
		ActorID: followerID,
		Data:    queue.FollowEventData{FollowerID: followerID, FollowedID: targetID},
	})
	metrics.RecordAction(metrics.ActionFollow)

	s.logger.WithFields(logrus.Fields{
		"follower_id": followerID,
		"followed_id": targetID,
	}).Info("User followed")
	return nil
}

// Unfollow 关系不存在时直接返回
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	removed, err := s.followRepo.Delete(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventFollowDeleted,
		ActorID: followerID,
		Data:    queue.FollowEventData{FollowerID: followerID, FollowedID: targetID},
	})
	metrics.RecordAction(metrics.ActionUnfollow)

	s.logger.WithFields(logrus.Fields{
		"follower_id": followerID,
		"followed_id": targetID,
	}).Info("User unfollowed")
	return nil
}

func (s *UserService) ListFollowing(ctx context.Context, userID uint) ([]*models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowing(ctx, userID)
}

func (s *UserService) ListFollowers(ctx context.Context, userID uint) ([]*models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowers(ctx, userID)
}

// Delete 删除用户及其消息、关注关系和点赞
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	var username string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.WithTx(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperror.NotFound("user", userID)
		}
		username = user.Username

		if err := s.likeRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.followRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.messageRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).Delete(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventUserDeleted,
		ActorID: userID,
		Data:    queue.UserEventData{UserID: userID, Username: username},
	})
	metrics.RecordAction(metrics.ActionUserDelete)

	s.logger.WithField("user_id", userID).Info("User deleted")
	return nil
}

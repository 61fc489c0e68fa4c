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

type AuthService struct {
	userRepo   *repository.UserRepository
	producer   queue.Publisher
	logger     *logger.Logger
	bcryptCost int
}

func NewAuthService(userRepo *repository.UserRepository, producer queue.Publisher, logger *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		producer:   producer,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithBcryptCost 调整哈希成本，测试中使用 bcrypt.MinCost
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

const maxPasswordBytes = 72

type SignupRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	ImageURL string `json:"image_url" validate:"max=2048"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.ImageURL = strings.TrimSpace(req.ImageURL)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	// bcrypt 按字节限制长度
	if len(req.Password) > maxPasswordBytes {
		return nil, apperror.Validation("password", fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	// 检查用户名是否已存在
	existingUser, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existingUser != nil {
		return nil, apperror.Duplicate("user", "username")
	}

	// 检查邮箱是否已存在
	existingUser, err = s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existingUser != nil {
		return nil, apperror.Duplicate("user", "email")
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		ImageURL: req.ImageURL,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 并发注册在预检查之后撞上唯一索引
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Duplicate("user", "")
		}
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, queue.Event{
		Type:    queue.EventUserCreated,
		ActorID: user.ID,
		Data:    queue.UserEventData{UserID: user.ID, Username: user.Username},
	})
	metrics.RecordAction(metrics.ActionSignup)

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User signed up")
	return user, nil
}

// Authenticate 校验用户名和密码。用户不存在或密码错误均返回 (nil, nil)
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User authenticated")
	return user, nil
}

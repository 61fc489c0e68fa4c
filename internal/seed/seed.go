// Package seed 为开发环境生成用户、关注、消息和点赞数据，全部经由 services 写入
package seed

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/sirupsen/logrus"
)

// DefaultPassword 所有种子账户的密码
const DefaultPassword = "password"

type Options struct {
	Users           int
	MessagesPerUser int
	FollowsPerUser  int
	LikesPerUser    int
	Seed            int64
}

type Summary struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

type Seeder struct {
	auth     *services.AuthService
	users    *services.UserService
	messages *services.MessageService
	likes    *services.LikeService
	logger   *logger.Logger
}

func NewSeeder(auth *services.AuthService, users *services.UserService, messages *services.MessageService, likes *services.LikeService, logger *logger.Logger) *Seeder {
	return &Seeder{
		auth:     auth,
		users:    users,
		messages: messages,
		likes:    likes,
		logger:   logger,
	}
}

func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Users <= 0 {
		return nil, errors.New("users must be positive")
	}

	faker := gofakeit.New(opts.Seed)
	summary := &Summary{}

	// 用户
	created := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user, err := s.auth.Signup(ctx, services.SignupRequest{
			Username: fmt.Sprintf("%s%d", faker.Username(), i),
			Email:    fmt.Sprintf("user%d.%s", i, faker.Email()),
			Password: DefaultPassword,
			ImageURL: faker.ImageURL(200, 200),
		})
		if err != nil {
			return summary, fmt.Errorf("failed to seed user %d: %w", i, err)
		}
		created = append(created, user)
		summary.Users++
	}

	// 消息
	messageIDs := make([]uint, 0, opts.Users*opts.MessagesPerUser)
	for _, user := range created {
		for j := 0; j < opts.MessagesPerUser; j++ {
			msg, err := s.messages.Post(ctx, user.ID, truncate(faker.Sentence(faker.Number(3, 20)), models.MaxMessageLength))
			if err != nil {
				return summary, fmt.Errorf("failed to seed message for user %d: %w", user.ID, err)
			}
			messageIDs = append(messageIDs, msg.ID)
			summary.Messages++
		}
	}

	// 关注关系，跳过自己
	for _, user := range created {
		for _, idx := range pick(faker, len(created), opts.FollowsPerUser) {
			target := created[idx]
			if target.ID == user.ID {
				continue
			}
			if err := s.users.Follow(ctx, user.ID, target.ID); err != nil {
				return summary, fmt.Errorf("failed to seed follow %d->%d: %w", user.ID, target.ID, err)
			}
			summary.Follows++
		}
	}

	// 点赞，跳过自己的消息
	for _, user := range created {
		for _, idx := range pick(faker, len(messageIDs), opts.LikesPerUser) {
			state, err := s.likes.ToggleLike(ctx, user.ID, messageIDs[idx])
			if errors.Is(err, apperror.ErrSelfAction) {
				continue
			}
			if err != nil {
				return summary, fmt.Errorf("failed to seed like for user %d: %w", user.ID, err)
			}
			if state == services.Liked {
				summary.Likes++
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"users":    summary.Users,
		"messages": summary.Messages,
		"follows":  summary.Follows,
		"likes":    summary.Likes,
	}).Info("Database seeded")
	return summary, nil
}

// pick 从 [0, n) 中随机选出最多 k 个不重复的下标
func pick(faker *gofakeit.Faker, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	perm := faker.Rand.Perm(n)
	return perm[:k]
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

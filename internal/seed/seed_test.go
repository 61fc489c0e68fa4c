package seed

import (
	"context"
	"testing"

	"github.com/feed-system/warbler/internal/config"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupSeeder(t *testing.T) (*Seeder, *services.UserService, *services.AuthService) {
	t.Helper()
	db, err := repository.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewDiscardLogger()
	publisher := queue.NopPublisher{}
	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)

	auth := services.NewAuthService(userRepo, publisher, log).WithBcryptCost(bcrypt.MinCost)
	users := services.NewUserService(db.DB, userRepo, followRepo, messageRepo, likeRepo, publisher, log)
	messages := services.NewMessageService(db.DB, messageRepo, likeRepo, userRepo, publisher, log)
	likes := services.NewLikeService(db.DB, likeRepo, messageRepo, userRepo, publisher, log)

	return NewSeeder(auth, users, messages, likes, log), users, auth
}

func TestSeeder_Run(t *testing.T) {
	seeder, users, auth := setupSeeder(t)
	ctx := context.Background()

	summary, err := seeder.Run(ctx, Options{
		Users:           5,
		MessagesPerUser: 3,
		FollowsPerUser:  2,
		LikesPerUser:    4,
		Seed:            42,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Users)
	assert.Equal(t, 15, summary.Messages)
	assert.LessOrEqual(t, summary.Follows, 10)
	assert.LessOrEqual(t, summary.Likes, 20)

	all, err := users.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 5)

	// 种子账户可以用默认密码登录
	user, err := auth.Authenticate(ctx, all[0].Username, DefaultPassword)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestSeeder_RejectsEmpty(t *testing.T) {
	seeder, _, _ := setupSeeder(t)
	_, err := seeder.Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "éé", truncate("ééé", 2))
}

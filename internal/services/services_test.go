package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/config"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	db        *repository.Database
	publisher *queue.MemoryPublisher
	auth      *AuthService
	users     *UserService
	messages  *MessageService
	likes     *LikeService
	feed      *FeedService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupEnvAt(t, ":memory:")
}

// setupEnvAt 在指定 sqlite 路径上构建服务，并发测试使用文件库
func setupEnvAt(t *testing.T, path string) *testEnv {
	t.Helper()

	db, err := repository.NewDatabase(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     path,
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewDiscardLogger()
	publisher := queue.NewMemoryPublisher()

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)

	return &testEnv{
		db:        db,
		publisher: publisher,
		auth:      NewAuthService(userRepo, publisher, log).WithBcryptCost(bcrypt.MinCost),
		users:     NewUserService(db.DB, userRepo, followRepo, messageRepo, likeRepo, publisher, log),
		messages:  NewMessageService(db.DB, messageRepo, likeRepo, userRepo, publisher, log),
		likes:     NewLikeService(db.DB, likeRepo, messageRepo, userRepo, publisher, log),
		feed:      NewFeedService(messageRepo, &config.FeedConfig{Limit: 100}, log),
	}
}

func (e *testEnv) signup(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.auth.Signup(context.Background(), SignupRequest{
		Username: username,
		Email:    username + "@x.com",
		Password: "password",
	})
	require.NoError(t, err)
	return user
}

func TestSignup_DefaultsAndDuplicates(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	alice, err := env.auth.Signup(ctx, SignupRequest{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProfileImage, alice.ImageURL)
	assert.NotEqual(t, "secret1", alice.Password)

	_, err = env.auth.Signup(ctx, SignupRequest{Username: "alice", Email: "other@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
	assert.Equal(t, "username", apperror.FieldOf(err))

	_, err = env.auth.Signup(ctx, SignupRequest{Username: "alice2", Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
	assert.Equal(t, "email", apperror.FieldOf(err))

	assert.Equal(t, []queue.EventType{queue.EventUserCreated}, env.publisher.Types())
}

func TestSignup_Validation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   SignupRequest
		field string
	}{
		{"missing username", SignupRequest{Email: "a@x.com", Password: "secret1"}, "username"},
		{"bad email", SignupRequest{Username: "a", Email: "nope", Password: "secret1"}, "email"},
		{"short password", SignupRequest{Username: "a", Email: "a@x.com", Password: "12345"}, "password"},
		{"multibyte password over 72 bytes", SignupRequest{Username: "a", Email: "a@x.com", Password: strings.Repeat("é", 40)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Signup(ctx, tt.req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, apperror.FieldOf(err))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	user, err := env.auth.Authenticate(ctx, "alice", "password")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, alice.ID, user.ID)

	user, err = env.auth.Authenticate(ctx, "alice", "wrong-password")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = env.auth.Authenticate(ctx, "nobody", "password")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticate_TrimsUsername(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice, err := env.auth.Signup(ctx, SignupRequest{Username: " alice ", Email: "a@x.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Username)

	for _, name := range []string{"alice", " alice", "alice\t"} {
		user, err := env.auth.Authenticate(ctx, name, "password")
		require.NoError(t, err)
		require.NotNil(t, user, name)
		assert.Equal(t, alice.ID, user.ID)
	}
}

func TestSignup_PasswordAtByteLimit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// 36 个 "é" 恰好 72 字节
	password := strings.Repeat("é", 36)
	_, err := env.auth.Signup(ctx, SignupRequest{Username: "alice", Email: "a@x.com", Password: password})
	require.NoError(t, err)

	user, err := env.auth.Authenticate(ctx, "alice", password)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestConcurrentFollowAndToggleLike(t *testing.T) {
	env := setupEnvAt(t, filepath.Join(t.TempDir(), "warbler.db"))
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	msg, err := env.messages.Post(ctx, bob.ID, "hello")
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- env.users.Follow(ctx, alice.ID, bob.ID)
		}()
		go func() {
			defer wg.Done()
			_, err := env.likes.ToggleLike(ctx, alice.ID, msg.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	followers, err := env.users.ListFollowers(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	// 偶数次切换后回到未点赞
	count, err := env.likes.CountLikesOn(ctx, msg.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	liked, err := env.likes.IsLiked(ctx, alice.ID, msg.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestFollow_RoundTrip(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	require.NoError(t, env.users.Follow(ctx, alice.ID, bob.ID))
	// 重复关注等价于关注一次
	require.NoError(t, env.users.Follow(ctx, alice.ID, bob.ID))

	following, err := env.users.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	followedBy, err := env.users.IsFollowedBy(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, followedBy)

	followers, err := env.users.ListFollowers(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 1)

	require.NoError(t, env.users.Unfollow(ctx, alice.ID, bob.ID))
	require.NoError(t, env.users.Unfollow(ctx, alice.ID, bob.ID))

	following, err = env.users.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)

	followedBy, err = env.users.IsFollowedBy(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, followedBy)

	assert.Equal(t, []queue.EventType{
		queue.EventUserCreated,
		queue.EventUserCreated,
		queue.EventFollowCreated,
		queue.EventFollowDeleted,
	}, env.publisher.Types())
}

func TestFollow_Rejections(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	err := env.users.Follow(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperror.ErrSelfAction)

	err = env.users.Follow(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.users.ListFollowing(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestToggleLike(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	msg, err := env.messages.Post(ctx, alice.ID, "hello")
	require.NoError(t, err)

	state, err := env.likes.ToggleLike(ctx, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, Liked, state)

	liked, err := env.likes.IsLiked(ctx, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	count, err := env.likes.CountLikesBy(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	state, err = env.likes.ToggleLike(ctx, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, Unliked, state)

	liked, err = env.likes.IsLiked(ctx, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestToggleLike_OwnMessage(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	msg, err := env.messages.Post(ctx, alice.ID, "hello")
	require.NoError(t, err)

	_, err = env.likes.ToggleLike(ctx, alice.ID, msg.ID)
	assert.ErrorIs(t, err, apperror.ErrSelfAction)

	count, err := env.likes.CountLikesBy(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = env.likes.CountLikesOn(ctx, msg.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = env.likes.ToggleLike(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPost_Validation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	_, err := env.messages.Post(ctx, alice.ID, "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.messages.Post(ctx, alice.ID, strings.Repeat("a", 141))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	msg, err := env.messages.Post(ctx, alice.ID, strings.Repeat("é", 140))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, msg.UserID)
	assert.False(t, msg.Timestamp.IsZero())

	_, err = env.messages.Post(ctx, 999, "hello")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMessageDelete_Ownership(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	msg, err := env.messages.Post(ctx, alice.ID, "hello")
	require.NoError(t, err)
	_, err = env.likes.ToggleLike(ctx, bob.ID, msg.ID)
	require.NoError(t, err)

	err = env.messages.Delete(ctx, msg.ID, bob.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	require.NoError(t, env.messages.Delete(ctx, msg.ID, alice.ID))

	_, err = env.messages.Get(ctx, msg.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	count, err := env.likes.CountLikesBy(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = env.messages.Delete(ctx, msg.ID, alice.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestFeed_FollowScope(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	_, err := env.messages.Post(ctx, alice.ID, "hello")
	require.NoError(t, err)

	feed, err := env.feed.GetFeed(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	require.NoError(t, env.users.Follow(ctx, bob.ID, alice.ID))

	feed, err = env.feed.GetFeed(ctx, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "hello", feed[0].Text)
	assert.Equal(t, "alice", feed[0].User.Username)
}

func TestFeed_OrderingAndLimit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	env.messages.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for i := 0; i < 105; i++ {
		_, err := env.messages.Post(ctx, alice.ID, "m")
		require.NoError(t, err)
	}

	feed, err := env.feed.GetFeed(ctx, alice.ID, 500)
	require.NoError(t, err)
	require.Len(t, feed, MaxFeedLimit)
	for i := 1; i < len(feed); i++ {
		assert.True(t, feed[i-1].Timestamp.After(feed[i].Timestamp))
	}

	feed, err = env.feed.GetFeed(ctx, alice.ID, 3)
	require.NoError(t, err)
	assert.Len(t, feed, 3)
}

func TestDeleteUser_Cascade(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	aliceMsg, err := env.messages.Post(ctx, alice.ID, "from alice")
	require.NoError(t, err)
	bobMsg, err := env.messages.Post(ctx, bob.ID, "from bob")
	require.NoError(t, err)

	require.NoError(t, env.users.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, env.users.Follow(ctx, bob.ID, alice.ID))
	_, err = env.likes.ToggleLike(ctx, alice.ID, bobMsg.ID)
	require.NoError(t, err)
	_, err = env.likes.ToggleLike(ctx, bob.ID, aliceMsg.ID)
	require.NoError(t, err)

	require.NoError(t, env.users.Delete(ctx, alice.ID))

	_, err = env.users.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = env.messages.Get(ctx, aliceMsg.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	profile, err := env.users.GetProfile(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.FollowerCount)
	assert.Zero(t, profile.FollowingCount)
	assert.Zero(t, profile.LikeCount)
	assert.Equal(t, int64(1), profile.MessageCount)

	count, err := env.likes.CountLikesOn(ctx, bobMsg.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = env.users.Delete(ctx, alice.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	env.signup(t, "bob")

	bio := "hi there"
	req := UpdateProfileRequest{
		Username:        "alice2",
		Email:           "alice2@x.com",
		Bio:             &bio,
		CurrentPassword: "password",
	}

	updated, err := env.users.UpdateProfile(ctx, alice.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, models.DefaultProfileImage, updated.ImageURL)
	assert.Equal(t, models.DefaultHeaderImage, updated.HeaderImageURL)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "hi there", *updated.Bio)

	req.CurrentPassword = "wrong-password"
	_, err = env.users.UpdateProfile(ctx, alice.ID, req)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	req.CurrentPassword = "password"
	req.Username = "bob"
	_, err = env.users.UpdateProfile(ctx, alice.ID, req)
	assert.ErrorIs(t, err, apperror.ErrDuplicate)
	assert.Equal(t, "username", apperror.FieldOf(err))
}

func TestListUsersAndLikedMessages(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	users, err := env.users.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = env.users.List(ctx, "bo")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)

	msg, err := env.messages.Post(ctx, alice.ID, "hello")
	require.NoError(t, err)
	_, err = env.likes.ToggleLike(ctx, bob.ID, msg.ID)
	require.NoError(t, err)

	liked, err := env.likes.LikedMessages(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, msg.ID, liked[0].ID)

	_, err = env.likes.LikedMessages(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

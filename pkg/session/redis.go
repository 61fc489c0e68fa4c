package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

func NewRedisClient(addr, password string, db, poolSize, minIdleConns int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	})
}

// Store 记录登录会话：session:<id> -> 用户 ID，user_sessions:<uid> 保存该用户的全部会话
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create 为用户新建会话并返回会话 ID
func (s *Store) Create(ctx context.Context, userID uint) (string, error) {
	id := uuid.NewString()
	userKey := userSessionsKey(userID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(id), userID, s.ttl)
	pipe.SAdd(ctx, userKey, id)
	pipe.Expire(ctx, userKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Lookup 返回会话所属用户；会话不存在或已过期时 ok 为 false
func (s *Store) Lookup(ctx context.Context, id string) (userID uint, ok bool, err error) {
	val, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to lookup session: %w", err)
	}

	parsed, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return uint(parsed), true, nil
}

// Revoke 删除单个会话，会话不存在时不报错
func (s *Store) Revoke(ctx context.Context, id string) error {
	userID, ok, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if ok {
		pipe.SRem(ctx, userSessionsKey(userID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeUser 删除用户的全部会话
func (s *Store) RevokeUser(ctx context.Context, userID uint) error {
	userKey := userSessionsKey(userID)

	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userSessionsKey(userID uint) string {
	return fmt.Sprintf("%s%d", userSessionKeyPrefix, userID)
}

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/feed-system/warbler/internal/apperror"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const requestContextKey = "warbler.request_context"

type JWTConfig struct {
	Secret     string
	ExpireTime time.Duration
	CookieName string
}

// Claims sub 为用户 ID，jti 为会话 ID
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionLookup 查询会话是否仍然有效
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (userID uint, ok bool, err error)
}

// UserLoader 按 ID 加载当前用户
type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// RequestContext 当前请求的登录状态，匿名请求时不存在
type RequestContext struct {
	User      *models.User
	SessionID string
}

func GenerateToken(userID uint, username, sessionID, secret string, expire time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("invalid token: missing session id")
	}
	return claims, nil
}

// UserID 解析 sub 中的用户 ID
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

type authenticator struct {
	config   *JWTConfig
	sessions SessionLookup
	users    UserLoader
	logger   *logger.Logger
}

// NewJWTAuth 要求请求携带有效会话，否则返回 401
func NewJWTAuth(config *JWTConfig, sessions SessionLookup, users UserLoader, logger *logger.Logger) gin.HandlerFunc {
	a := &authenticator{config: config, sessions: sessions, users: users, logger: logger}
	return func(c *gin.Context) {
		rc, err := a.resolve(c)
		if err != nil {
			a.logger.WithError(err).Error("Failed to resolve session")
			abortJSON(c, http.StatusInternalServerError, "internal", "internal server error")
			return
		}
		if rc == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		c.Set(requestContextKey, rc)
		c.Next()
	}
}

// OptionalAuth 解析会话但允许匿名访问
func OptionalAuth(config *JWTConfig, sessions SessionLookup, users UserLoader, logger *logger.Logger) gin.HandlerFunc {
	a := &authenticator{config: config, sessions: sessions, users: users, logger: logger}
	return func(c *gin.Context) {
		rc, err := a.resolve(c)
		if err != nil {
			a.logger.WithError(err).Error("Failed to resolve session")
			abortJSON(c, http.StatusInternalServerError, "internal", "internal server error")
			return
		}
		if rc != nil {
			c.Set(requestContextKey, rc)
		}
		c.Next()
	}
}

// resolve 令牌缺失、无效、会话已注销或用户已删除时返回 (nil, nil)
func (a *authenticator) resolve(c *gin.Context) (*RequestContext, error) {
	tokenString := TokenFromRequest(c, a.config.CookieName)
	if tokenString == "" {
		return nil, nil
	}

	claims, err := ParseToken(tokenString, a.config.Secret)
	if err != nil {
		return nil, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil
	}

	ctx := c.Request.Context()
	sessionUserID, ok, err := a.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !ok || sessionUserID != userID {
		return nil, nil
	}

	user, err := a.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &RequestContext{User: user, SessionID: claims.ID}, nil
}

// TokenFromRequest 优先读取 Cookie，其次 Authorization: Bearer
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
			return cookie
		}
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func GetRequestContext(c *gin.Context) (*RequestContext, bool) {
	val, exists := c.Get(requestContextKey)
	if !exists {
		return nil, false
	}
	rc, ok := val.(*RequestContext)
	return rc, ok && rc != nil
}

// CurrentUser 返回当前登录用户，匿名请求返回 nil
func CurrentUser(c *gin.Context) *models.User {
	if rc, ok := GetRequestContext(c); ok {
		return rc.User
	}
	return nil
}

// GetUserID 返回当前登录用户 ID，匿名请求返回 0
func GetUserID(c *gin.Context) uint {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SessionManager 会话的创建与注销
type SessionManager interface {
	Create(ctx context.Context, userID uint) (string, error)
	Revoke(ctx context.Context, id string) error
	RevokeUser(ctx context.Context, userID uint) error
}

type AuthHandler struct {
	authService *services.AuthService
	sessions    SessionManager
	jwtConfig   *middleware.JWTConfig
	secure      bool
	logger      *logger.Logger
}

func NewAuthHandler(authService *services.AuthService, sessions SessionManager, jwtConfig *middleware.JWTConfig, secure bool, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		jwtConfig:   jwtConfig,
		secure:      secure,
		logger:      logger,
	}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, ok := h.startSession(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user,
		"token": token,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if user == nil {
		abortWithError(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", "")
		return
	}

	token, ok := h.startSession(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user,
		"token": token,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	rc, _ := middleware.GetRequestContext(c)
	if err := h.sessions.Revoke(c.Request.Context(), rc.SessionID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	clearSessionCookie(c, h.jwtConfig.CookieName, h.secure)
	h.logger.WithField("user_id", rc.User.ID).Info("User logged out")
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// startSession 创建会话、签发令牌并写入 Cookie
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) (string, bool) {
	sessionID, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return "", false
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, sessionID, h.jwtConfig.Secret, h.jwtConfig.ExpireTime)
	if err != nil {
		respondError(c, h.logger, err)
		return "", false
	}

	setSessionCookie(c, h.jwtConfig.CookieName, token, int(h.jwtConfig.ExpireTime.Seconds()), h.secure)
	return token, true
}

func setSessionCookie(c *gin.Context, name, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", secure, true)
}

func clearSessionCookie(c *gin.Context, name string, secure bool) {
	setSessionCookie(c, name, "", -1, secure)
}

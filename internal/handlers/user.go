package handlers

import (
	"net/http"

	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService    *services.UserService
	messageService *services.MessageService
	likeService    *services.LikeService
	sessions       SessionManager
	cookieName     string
	secure         bool
	logger         *logger.Logger
}

func NewUserHandler(userService *services.UserService, messageService *services.MessageService, likeService *services.LikeService, sessions SessionManager, cookieName string, secure bool, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService:    userService,
		messageService: messageService,
		likeService:    likeService,
		sessions:       sessions,
		cookieName:     cookieName,
		secure:         secure,
		logger:         logger,
	}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Show 用户主页：资料、计数和最近的消息
func (h *UserHandler) Show(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	messages, err := h.messageService.ListByUser(ctx, userID, services.MaxFeedLimit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{
		"profile":  profile,
		"messages": messages,
	}

	if currentID := middleware.GetUserID(c); currentID != 0 && currentID != userID {
		following, err := h.userService.IsFollowing(ctx, currentID, userID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		resp["is_following"] = following
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Following(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	users, err := h.userService.ListFollowing(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "users": users})
}

func (h *UserHandler) Followers(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	users, err := h.userService.ListFollowers(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "users": users})
}

func (h *UserHandler) LikedMessages(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.likeService.LikedMessages(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "messages": messages})
}

func (h *UserHandler) Follow(c *gin.Context) {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.userService.Follow(c.Request.Context(), middleware.GetUserID(c), targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followed_id": targetID, "following": true})
}

func (h *UserHandler) StopFollowing(c *gin.Context) {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.userService.Unfollow(c.Request.Context(), middleware.GetUserID(c), targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followed_id": targetID, "following": false})
}

// Profile 当前用户的资料
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.userService.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Delete 删除当前用户并注销其全部会话
func (h *UserHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	if err := h.userService.Delete(ctx, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.sessions.RevokeUser(ctx, userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to revoke sessions of deleted user")
	}

	clearSessionCookie(c, h.cookieName, h.secure)
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

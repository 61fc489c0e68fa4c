package handlers

import (
	"net/http"

	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService *services.MessageService
	likeService    *services.LikeService
	logger         *logger.Logger
}

func NewMessageHandler(messageService *services.MessageService, likeService *services.LikeService, logger *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		likeService:    likeService,
		logger:         logger,
	}
}

func (h *MessageHandler) Create(c *gin.Context) {
	var req services.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	message, err := h.messageService.Post(c.Request.Context(), middleware.GetUserID(c), req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": message})
}

func (h *MessageHandler) Show(c *gin.Context) {
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	message, err := h.messageService.Get(ctx, messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	likeCount, err := h.likeService.CountLikesOn(ctx, messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := gin.H{
		"message":    message,
		"like_count": likeCount,
	}
	if userID := middleware.GetUserID(c); userID != 0 {
		liked, err := h.likeService.IsLiked(ctx, userID, messageID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		resp["liked"] = liked
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), messageID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "deleted": true})
}

func (h *MessageHandler) ToggleLike(c *gin.Context) {
	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	state, err := h.likeService.ToggleLike(ctx, middleware.GetUserID(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	likeCount, err := h.likeService.CountLikesOn(ctx, messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message_id": messageID,
		"state":      state,
		"like_count": likeCount,
	})
}

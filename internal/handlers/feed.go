package handlers

import (
	"net/http"
	"strconv"

	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/models"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

type FeedHandler struct {
	feedService *services.FeedService
	likeService *services.LikeService
	logger      *logger.Logger
}

func NewFeedHandler(feedService *services.FeedService, likeService *services.LikeService, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		likeService: likeService,
		logger:      logger,
	}
}

// Home 登录用户返回首页 feed，匿名用户返回空列表
func (h *FeedHandler) Home(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusOK, gin.H{
			"messages":          []*models.Message{},
			"liked_message_ids": []uint{},
		})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "validation_error", "invalid limit", "limit")
			return
		}
		limit = parsed
	}

	ctx := c.Request.Context()
	messages, err := h.feedService.GetFeed(ctx, userID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// 标记当前用户已点赞的消息
	messageIDs := make([]uint, len(messages))
	for i, m := range messages {
		messageIDs[i] = m.ID
	}
	likedIDs, err := h.likeService.LikedAmong(ctx, userID, messageIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":          messages,
		"liked_message_ids": likedIDs,
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/feed-system/warbler/internal/metrics"
	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	AuthService    *services.AuthService
	UserService    *services.UserService
	MessageService *services.MessageService
	LikeService    *services.LikeService
	FeedService    *services.FeedService
	Sessions       interface {
		SessionManager
		middleware.SessionLookup
	}
	JWT          *middleware.JWTConfig
	SecureCookie bool
	Logger       *logger.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.JWT, deps.SecureCookie, deps.Logger)
	userHandler := NewUserHandler(deps.UserService, deps.MessageService, deps.LikeService, deps.Sessions, deps.JWT.CookieName, deps.SecureCookie, deps.Logger)
	messageHandler := NewMessageHandler(deps.MessageService, deps.LikeService, deps.Logger)
	feedHandler := NewFeedHandler(deps.FeedService, deps.LikeService, deps.Logger)

	requireAuth := middleware.NewJWTAuth(deps.JWT, deps.Sessions, deps.UserService, deps.Logger)
	optionalAuth := middleware.OptionalAuth(deps.JWT, deps.Sessions, deps.UserService, deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(metrics.Middleware())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/", optionalAuth, feedHandler.Home)

	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)
	router.POST("/logout", requireAuth, authHandler.Logout)

	users := router.Group("/users")
	{
		users.GET("", userHandler.List)
		users.GET("/:id", optionalAuth, userHandler.Show)

		protected := users.Group("")
		protected.Use(requireAuth)
		{
			protected.GET("/:id/following", userHandler.Following)
			protected.GET("/:id/followers", userHandler.Followers)
			protected.GET("/:id/liked_messages", userHandler.LikedMessages)
			protected.POST("/follow/:id", userHandler.Follow)
			protected.POST("/stop-following/:id", userHandler.StopFollowing)
			protected.GET("/profile", userHandler.Profile)
			protected.POST("/profile", userHandler.UpdateProfile)
			protected.POST("/delete", userHandler.Delete)
		}
	}

	messages := router.Group("/messages")
	{
		messages.GET("/:id", optionalAuth, messageHandler.Show)

		protected := messages.Group("")
		protected.Use(requireAuth)
		{
			protected.POST("/new", messageHandler.Create)
			protected.POST("/:id/delete", messageHandler.Delete)
			protected.POST("/:id/togglelike", messageHandler.ToggleLike)
		}
	}

	return router
}

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/handler"
	"github.com/gymsmart/gymsmart-backend/internal/middleware"
	"github.com/gymsmart/gymsmart-backend/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

// Rate limits per user and minute
const (
	sendRateLimit = 60
	aiRateLimit   = 10
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	messageHandler *handler.MessageHandler,
	badgeHandler *handler.BadgeHandler,
	storageHandler *handler.StorageHandler,
	mealHandler *handler.MealHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
) {
	auth := middleware.JWTAuth(jwtManager)

	api := router.Group("/api/v1", auth)

	// Messages
	api.GET("/messages", messageHandler.ListMessages)
	api.POST("/messages",
		middleware.RateLimitPerUser(redisClient, middleware.RateLimitConfig{Scope: "send", RequestsPerMinute: sendRateLimit}),
		messageHandler.SendMessage)
	api.GET("/messages/unread", badgeHandler.GetUnread)

	conversations := api.Group("/conversations/:peer_id")
	{
		conversations.GET("/messages", messageHandler.GetConversation)
		conversations.POST("/read", messageHandler.MarkRead)
		conversations.DELETE("", messageHandler.ClearConversation)
	}

	// Remote procedures
	rpc := api.Group("/rpc")
	{
		rpc.POST("/edit_message", messageHandler.EditMessage)
		rpc.POST("/delete_message_for_everyone", messageHandler.DeleteForEveryone)
		rpc.POST("/delete_message_for_me", messageHandler.DeleteForMe)
	}

	// Badges
	api.GET("/badge", badgeHandler.GetBadge)
	api.GET("/coach/athletes/unread",
		middleware.RequireRole(domain.RoleCoach, domain.RoleAdmin),
		badgeHandler.GetAthleteUnread)

	// Object storage
	api.POST("/storage/:bucket", storageHandler.Upload)

	// AI
	ai := api.Group("", middleware.RateLimitPerUser(redisClient, middleware.RateLimitConfig{Scope: "ai", RequestsPerMinute: aiRateLimit}))
	{
		ai.POST("/meals/analyze", mealHandler.AnalyzeMeal)
		ai.POST("/coach/reply", mealHandler.CoachReply)
	}

	// Realtime
	router.GET("/ws/messages", auth, wsHandler.Connect)
}

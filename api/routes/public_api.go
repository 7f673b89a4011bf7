package routes

import (
	"wall/api/handlers"
	"wall/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", handlers.Register)
		publicEndpoints.POST("auth/login", handlers.Login)

		// Одобренная лента доступна без токена, но с токеном зритель
		// видит свои pending комментарии
		publicEndpoints.GET("posts/approved", middleware.OptionalAuthMiddleware(), handlers.GetApprovedWall)
	}

	authorized := router.Group("/api/v1/")
	authorized.Use(middleware.AuthMiddleware())
	{
		authorized.POST("auth/logout", handlers.Logout)

		// Стена
		authorized.POST("posts", handlers.CreatePost)
		authorized.GET("posts/mine", handlers.GetOwnPosts)
		authorized.POST("posts/:post_id/comments", handlers.AddComment)
		authorized.POST("posts/:post_id/reactions", handlers.AddReaction)

		// Модерация
		authorized.PUT("posts/:post_id/status", handlers.SetPostStatus)
		authorized.PUT("posts/comments/:comment_id/status", handlers.SetCommentStatus)
		authorized.GET("moderation/queue", handlers.GetModerationQueue)

		// Реальное время
		authorized.GET("ws/wall", handlers.WSWallHandler)
	}

	return publicEndpoints
}

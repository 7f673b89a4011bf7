package middleware

import (
	"net/http"
	"strings"

	"wall/services"

	"github.com/gin-gonic/gin"
)

var userService = services.NewUserService()

// AuthMiddleware проверяет bearer токен по базе и кладет пользователя
// в контекст запроса
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide Authorization Bearer token"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		user, err := userService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user", *user)
		c.Set("user_id", user.ID)
		c.Set("token", token)
		c.Next()
	}
}

// OptionalAuthMiddleware кладет пользователя в контекст, если токен есть
// и валиден; без токена запрос идет анонимно
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if user, err := userService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set("user", *user)
				c.Set("user_id", user.ID)
			}
		}
		c.Next()
	}
}

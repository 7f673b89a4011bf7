package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"wall/api/middleware"
	"wall/models"
	"wall/services"

	"github.com/gin-gonic/gin"
)

var wallService = services.NewWallService()

const serviceName = "wall-api"

// currentUser достает пользователя, положенного auth middleware
func currentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return models.User{}, false
	}
	user, ok := v.(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return models.User{}, false
	}
	return user, true
}

func wallError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAuth):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// CreatePost создает новый пост стены в статусе pending
func CreatePost(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
		Image   string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	post, err := wallService.CreatePost(c.Request.Context(), user, req.Content, req.Image)
	if err != nil {
		middleware.RecordWallMutation("post", "error", serviceName)
		wallError(c, err, "Failed to create post")
		return
	}

	middleware.RecordWallMutation("post", "ok", serviceName)
	c.JSON(http.StatusCreated, post)
}

// GetApprovedWall возвращает страницу одобренных постов
func GetApprovedWall(c *gin.Context) {
	var viewer models.User
	if v, exists := c.Get("user"); exists {
		viewer, _ = v.(models.User)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	wallResp, err := wallService.GetApprovedWall(c.Request.Context(), viewer, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wall"})
		return
	}
	c.JSON(http.StatusOK, wallResp)
}

// GetOwnPosts возвращает посты автора, включая pending
func GetOwnPosts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	posts, err := wallService.GetOwnPosts(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// AddComment добавляет pending комментарий к посту
func AddComment(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	comment, err := wallService.AddComment(c.Request.Context(), user, postID, req.Content)
	if err != nil {
		middleware.RecordWallMutation("comment", "error", serviceName)
		wallError(c, err, "Failed to add comment")
		return
	}

	middleware.RecordWallMutation("comment", "ok", serviceName)
	c.JSON(http.StatusCreated, comment)
}

// AddReaction регистрирует реакцию и возвращает авторитетный снимок
// счетчиков поста
func AddReaction(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	counts, err := wallService.AddReaction(c.Request.Context(), user, postID, req.Type)
	if err != nil {
		middleware.RecordWallMutation("reaction", "error", serviceName)
		wallError(c, err, "Failed to add reaction")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	middleware.RecordWallMutation("reaction", "ok", serviceName)
	c.JSON(http.StatusOK, gin.H{
		"reaction_counts": counts,
		"total_reactions": total,
	})
}

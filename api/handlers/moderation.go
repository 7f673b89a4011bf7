package handlers

import (
	"net/http"
	"strconv"

	"wall/models"
	"wall/services"

	"github.com/gin-gonic/gin"
)

var moderationService = services.NewModerationService(wallService)

type setStatusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// SetPostStatus переводит пост из pending в approved/rejected.
// Только для модераторов.
func SetPostStatus(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	post, err := moderationService.SetPostStatus(c.Request.Context(), user, postID, req.Status)
	if err != nil {
		wallError(c, err, "Failed to update post status")
		return
	}
	c.JSON(http.StatusOK, post)
}

// SetCommentStatus переводит комментарий из pending в approved/rejected
func SetCommentStatus(c *gin.Context) {
	commentID, err := strconv.ParseInt(c.Param("comment_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	comment, err := moderationService.SetCommentStatus(c.Request.Context(), user, commentID, req.Status)
	if err != nil {
		wallError(c, err, "Failed to update comment status")
		return
	}
	c.JSON(http.StatusOK, comment)
}

// GetModerationQueue возвращает pending и rejected сущности
func GetModerationQueue(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	queue, err := moderationService.GetQueue(c.Request.Context(), user)
	if err != nil {
		wallError(c, err, "Failed to load moderation queue")
		return
	}
	c.JSON(http.StatusOK, queue)
}

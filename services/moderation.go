package services

import (
	"context"
	"errors"
	"fmt"

	"wall/db"
	"wall/models"

	"gorm.io/gorm"
)

// IsVisible решает, виден ли пост/комментарий данному зрителю.
//
//	статус    | автор | модератор | остальные
//	pending   |  да   |    да     |   нет
//	approved  |  да   |    да     |   да
//	rejected  |  нет  |    да     |   нет
//
// Модераторам pending/rejected показываются в очереди модерации,
// автору pending помечается как "awaiting moderation" на рендере.
func IsVisible(status models.Status, authorID int64, viewer models.User) bool {
	if viewer.Role.IsModerator() {
		return true
	}
	switch status {
	case models.STATUS_APPROVED:
		return true
	case models.STATUS_PENDING:
		return authorID == viewer.ID
	default:
		return false
	}
}

// ValidateTransition проверяет переход статуса модерации. Разрешены
// только pending -> approved и pending -> rejected, терминальные статусы
// не откатываются.
func ValidateTransition(from, to models.Status) error {
	if from == models.STATUS_PENDING &&
		(to == models.STATUS_APPROVED || to == models.STATUS_REJECTED) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

type ModerationService struct {
	wall *WallService
}

func NewModerationService(wall *WallService) *ModerationService {
	return &ModerationService{wall: wall}
}

// SetPostStatus переводит пост в новый статус. Только для модераторов.
// При одобрении пост уходит в кеш одобренной ленты и рассылается в комнату.
func (ms *ModerationService) SetPostStatus(ctx context.Context, moderator models.User, postID int64, status models.Status) (*models.Post, error) {
	if !moderator.Role.IsModerator() {
		return nil, fmt.Errorf("%w: role %s cannot moderate", ErrForbidden, moderator.Role)
	}

	var post models.Post
	err := db.GetWriteDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	if err := ValidateTransition(post.Status, status); err != nil {
		return nil, err
	}

	post.Status = status
	if err := db.GetWriteDB(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update post status: %w", err)
	}

	if status == models.STATUS_APPROVED && ms.wall != nil {
		wallPost, err := ms.wall.LoadWallPost(ctx, post.ID)
		if err == nil {
			ms.wall.broadcastPostCreated(ctx, wallPost)
			ms.wall.enqueueApprovedFeedUpdate(ctx, wallPost, "add")
		}
	}

	return &post, nil
}

// SetCommentStatus переводит комментарий в новый статус. Модерация
// комментария независима от статуса его поста - не каскадируем.
func (ms *ModerationService) SetCommentStatus(ctx context.Context, moderator models.User, commentID int64, status models.Status) (*models.Comment, error) {
	if !moderator.Role.IsModerator() {
		return nil, fmt.Errorf("%w: role %s cannot moderate", ErrForbidden, moderator.Role)
	}

	var comment models.Comment
	err := db.GetWriteDB(ctx).First(&comment, commentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: comment %d", ErrNotFound, commentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}

	if err := ValidateTransition(comment.Status, status); err != nil {
		return nil, err
	}

	comment.Status = status
	if err := db.GetWriteDB(ctx).Model(&models.Comment{}).Where("id = ?", comment.ID).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update comment status: %w", err)
	}

	if status == models.STATUS_APPROVED && ms.wall != nil {
		wc, err := ms.wall.toWallComment(ctx, &comment)
		if err == nil {
			ms.wall.broadcastCommentAdded(ctx, comment.PostID, wc)
		}
	}

	return &comment, nil
}

// ModerationQueue - pending и rejected сущности для очереди модерации
type ModerationQueue struct {
	Posts    []models.Post    `json:"posts"`
	Comments []models.Comment `json:"comments"`
}

// GetQueue возвращает очередь модерации
func (ms *ModerationService) GetQueue(ctx context.Context, moderator models.User) (*ModerationQueue, error) {
	if !moderator.Role.IsModerator() {
		return nil, fmt.Errorf("%w: role %s cannot moderate", ErrForbidden, moderator.Role)
	}

	queue := &ModerationQueue{}
	err := db.GetReadOnlyDB(ctx).
		Where("status IN ?", []models.Status{models.STATUS_PENDING, models.STATUS_REJECTED}).
		Order("created_at DESC").
		Find(&queue.Posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load posts queue: %w", err)
	}

	err = db.GetReadOnlyDB(ctx).
		Where("status IN ?", []models.Status{models.STATUS_PENDING, models.STATUS_REJECTED}).
		Order("created_at DESC").
		Find(&queue.Comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comments queue: %w", err)
	}

	return queue, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"wall/db"
	"wall/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// CommunityWallRoom - единственная общая комната стены
const CommunityWallRoom = "community-wall"

// WallService - серверная сторона стены сообщества: персистентность
// постов/комментариев/реакций, кеш счетчиков и рассылка событий в комнату.
type WallService struct{}

func NewWallService() *WallService {
	return &WallService{}
}

// CreatePost сохраняет новый пост в статусе pending
func (ws *WallService) CreatePost(ctx context.Context, author models.User, content, image string) (*models.WallPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty post content", ErrValidation)
	}

	post := &models.Post{
		UserID:    author.ID,
		Content:   content,
		Image:     image,
		Status:    models.STATUS_PENDING,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.GetWriteDB(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return &models.WallPost{
		ID:             post.ID,
		AuthorID:       author.ID,
		AuthorName:     author.FirstName + " " + author.LastName,
		AuthorRole:     author.Role,
		Content:        post.Content,
		Image:          post.Image,
		Status:         post.Status,
		ReactionCounts: map[string]int{},
		Comments:       []models.WallComment{},
		CreatedAt:      post.CreatedAt,
	}, nil
}

// AddComment сохраняет pending комментарий к существующему посту
func (ws *WallService) AddComment(ctx context.Context, author models.User, postID int64, content string) (*models.WallComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty comment content", ErrValidation)
	}

	var post models.Post
	err := db.GetReadOnlyDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	comment := &models.Comment{
		PostID:    postID,
		UserID:    author.ID,
		Content:   content,
		Status:    models.STATUS_PENDING,
		CreatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return &models.WallComment{
		ID:         comment.ID,
		PostID:     postID,
		AuthorID:   author.ID,
		AuthorName: author.FirstName + " " + author.LastName,
		AuthorRole: author.Role,
		Content:    comment.Content,
		Status:     comment.Status,
		CreatedAt:  comment.CreatedAt,
	}, nil
}

// AddReaction регистрирует реакцию и возвращает авторитетный снимок
// счетчиков. Каждое действие пользователя - плюс один, без дедупликации.
// Реакции живут независимо от статуса поста.
func (ws *WallService) AddReaction(ctx context.Context, actor models.User, postID int64, reactionType string) (map[string]int, error) {
	reactionType = strings.TrimSpace(reactionType)
	if reactionType == "" {
		return nil, fmt.Errorf("%w: empty reaction type", ErrValidation)
	}

	var post models.Post
	err := db.GetReadOnlyDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	reaction := &models.Reaction{
		PostID:    postID,
		UserID:    actor.ID,
		Type:      reactionType,
		CreatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(reaction).Error; err != nil {
		return nil, fmt.Errorf("failed to create reaction: %w", err)
	}

	if err := IncrReactionCount(ctx, postID, reactionType); err != nil {
		// Кеш недоступен - снимок соберем из БД
		log.Printf("DEBUG: reaction cache increment failed for post %d: %v", postID, err)
	}

	counts, err := ws.GetReactionCounts(ctx, postID)
	if err != nil {
		return nil, err
	}

	ws.broadcastReactionAdded(ctx, postID, counts)
	return counts, nil
}

// GetReactionCounts возвращает снимок счетчиков реакций поста:
// сначала кеш, при промахе перестраиваем из БД
func (ws *WallService) GetReactionCounts(ctx context.Context, postID int64) (map[string]int, error) {
	counts, err := GetCachedReactionCounts(ctx, postID)
	if err == nil {
		return counts, nil
	}
	if err != redis.Nil {
		log.Printf("DEBUG: reaction cache read failed for post %d: %v", postID, err)
	}

	counts, err = ws.reactionCountsFromDB(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		if cacheErr := SetCachedReactionCounts(ctx, postID, counts); cacheErr != nil {
			log.Printf("DEBUG: reaction cache rebuild failed for post %d: %v", postID, cacheErr)
		}
	}
	return counts, nil
}

func (ws *WallService) reactionCountsFromDB(ctx context.Context, postID int64) (map[string]int, error) {
	type row struct {
		Type  string
		Count int
	}
	var rows []row
	err := db.GetReadOnlyDB(ctx).
		Model(&models.Reaction{}).
		Select("type, count(*) as count").
		Where("post_id = ?", postID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reactions: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}

// GetApprovedWall возвращает страницу одобренных постов, новые сверху.
// Сначала пробуем кеш ленты, при промахе идем в БД.
func (ws *WallService) GetApprovedWall(ctx context.Context, viewer models.User, page, limit int) (*models.WallResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var posts []models.Post

	ids, err := GetApprovedFeedPage(ctx, page, limit)
	if err == nil && len(ids) > 0 {
		err = db.GetReadOnlyDB(ctx).
			Where("id IN ? AND status = ?", ids, models.STATUS_APPROVED).
			Order("created_at DESC, id DESC").
			Find(&posts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load cached feed posts: %w", err)
		}
	}

	if len(posts) == 0 {
		err = db.GetReadOnlyDB(ctx).
			Where("status = ?", models.STATUS_APPROVED).
			Order("created_at DESC, id DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&posts).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load feed posts: %w", err)
		}
	}

	wallPosts := make([]models.WallPost, 0, len(posts))
	for i := range posts {
		wp, err := ws.assembleWallPost(ctx, &posts[i], viewer)
		if err != nil {
			log.Printf("ERROR: failed to assemble post %d: %v", posts[i].ID, err)
			continue
		}
		wallPosts = append(wallPosts, *wp)
	}

	return &models.WallResponse{
		Posts:   wallPosts,
		Page:    page,
		Limit:   limit,
		HasMore: len(wallPosts) == limit,
	}, nil
}

// GetOwnPosts возвращает посты автора, включая pending
// ("awaiting moderation"). Отклоненные автору не показываем.
func (ws *WallService) GetOwnPosts(ctx context.Context, author models.User) ([]models.WallPost, error) {
	var posts []models.Post
	err := db.GetReadOnlyDB(ctx).
		Where("user_id = ? AND status IN ?", author.ID,
			[]models.Status{models.STATUS_PENDING, models.STATUS_APPROVED}).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load own posts: %w", err)
	}

	wallPosts := make([]models.WallPost, 0, len(posts))
	for i := range posts {
		wp, err := ws.assembleWallPost(ctx, &posts[i], author)
		if err != nil {
			continue
		}
		wallPosts = append(wallPosts, *wp)
	}
	return wallPosts, nil
}

// LoadWallPost собирает WallPost по id независимо от зрителя
// (комментарии - только одобренные)
func (ws *WallService) LoadWallPost(ctx context.Context, postID int64) (*models.WallPost, error) {
	var post models.Post
	err := db.GetReadOnlyDB(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	return ws.assembleWallPost(ctx, &post, models.User{})
}

// assembleWallPost собирает пост с автором, счетчиками и видимыми
// зрителю комментариями
func (ws *WallService) assembleWallPost(ctx context.Context, post *models.Post, viewer models.User) (*models.WallPost, error) {
	var author models.User
	if err := db.GetReadOnlyDB(ctx).First(&author, post.UserID).Error; err != nil {
		return nil, fmt.Errorf("failed to load author: %w", err)
	}

	counts, err := ws.GetReactionCounts(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	err = db.GetReadOnlyDB(ctx).
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	wallComments := make([]models.WallComment, 0, len(comments))
	for i := range comments {
		if !IsVisible(comments[i].Status, comments[i].UserID, viewer) {
			continue
		}
		wc, err := ws.toWallComment(ctx, &comments[i])
		if err != nil {
			continue
		}
		wallComments = append(wallComments, *wc)
	}

	return &models.WallPost{
		ID:             post.ID,
		AuthorID:       author.ID,
		AuthorName:     author.FirstName + " " + author.LastName,
		AuthorRole:     author.Role,
		Content:        post.Content,
		Image:          post.Image,
		Status:         post.Status,
		ReactionCounts: counts,
		Comments:       wallComments,
		CreatedAt:      post.CreatedAt,
	}, nil
}

func (ws *WallService) toWallComment(ctx context.Context, comment *models.Comment) (*models.WallComment, error) {
	var author models.User
	if err := db.GetReadOnlyDB(ctx).First(&author, comment.UserID).Error; err != nil {
		return nil, fmt.Errorf("failed to load comment author: %w", err)
	}
	return &models.WallComment{
		ID:         comment.ID,
		PostID:     comment.PostID,
		AuthorID:   author.ID,
		AuthorName: author.FirstName + " " + author.LastName,
		AuthorRole: author.Role,
		Content:    comment.Content,
		Status:     comment.Status,
		CreatedAt:  comment.CreatedAt,
	}, nil
}

// broadcastPostCreated рассылает одобренный пост в комнату.
// Fallback: если RabbitMQ недоступен, шлем напрямую через WebSocket.
func (ws *WallService) broadcastPostCreated(ctx context.Context, post *models.WallPost) {
	if err := PublishWallEvent(ctx, models.EventPostCreated, post); err != nil {
		log.Printf("DEBUG: RabbitMQ error, using direct WS fallback: %v", err)
		if data, err := models.EncodeWallEvent(models.EventPostCreated, post); err == nil {
			GlobalWSRoomManager.Broadcast(CommunityWallRoom, data)
		}
	}
}

func (ws *WallService) broadcastCommentAdded(ctx context.Context, postID int64, comment *models.WallComment) {
	payload := models.CommentAddedPayload{PostID: postID, Comment: *comment}
	if err := PublishWallEvent(ctx, models.EventCommentAdded, payload); err != nil {
		log.Printf("DEBUG: RabbitMQ error, using direct WS fallback: %v", err)
		if data, err := models.EncodeWallEvent(models.EventCommentAdded, payload); err == nil {
			GlobalWSRoomManager.Broadcast(CommunityWallRoom, data)
		}
	}
}

// broadcastReactionAdded рассылает полный снимок счетчиков, не дельту:
// получатели перезаписывают свое состояние целиком
func (ws *WallService) broadcastReactionAdded(ctx context.Context, postID int64, counts map[string]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	payload := models.ReactionAddedPayload{
		PostID:         postID,
		ReactionCounts: counts,
		TotalReactions: total,
	}
	if err := PublishWallEvent(ctx, models.EventReactionAdded, payload); err != nil {
		log.Printf("DEBUG: RabbitMQ error, using direct WS fallback: %v", err)
		if data, err := models.EncodeWallEvent(models.EventReactionAdded, payload); err == nil {
			GlobalWSRoomManager.Broadcast(CommunityWallRoom, data)
		}
	}
}

// enqueueApprovedFeedUpdate кидает задачу обновления кеша ленты в очередь,
// при недоступной очереди обновляет кеш синхронно
func (ws *WallService) enqueueApprovedFeedUpdate(ctx context.Context, post *models.WallPost, action string) {
	if QueueServiceInstance != nil && RedisClient != nil {
		go QueueServiceInstance.EnqueueFeedUpdate(context.Background(), *post, action)
		return
	}
	switch action {
	case "add":
		_ = AddToApprovedFeedCache(ctx, post.ID, post.CreatedAt)
	case "remove":
		_ = RemoveFromApprovedFeedCache(ctx, post.ID)
	}
}

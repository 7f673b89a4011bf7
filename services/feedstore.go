package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"wall/models"
)

// FeedStore - единственный источник правды о постах стены на стороне
// клиента. Хранит посты в порядке "новые сверху", применяет локальные
// (оптимистичные) и удаленные (подтвержденные) мутации.
//
// Все мутации проходят через один мьютекс: контроллер синхронизации и
// обработчики событий канала не пересекаются внутри стора.
type FeedStore struct {
	mu     sync.Mutex
	posts  []*models.WallPost
	index  map[int64]*models.WallPost
	viewer models.User

	// Оптимистичные сущности получают отрицательные id, пока сервер
	// не присвоит настоящие
	nextLocalID int64
}

func NewFeedStore(viewer models.User) *FeedStore {
	return &FeedStore{
		index:       make(map[int64]*models.WallPost),
		viewer:      viewer,
		nextLocalID: -1,
	}
}

// CreatePost создает pending пост с нулевыми счетчиками и пустыми
// комментариями и ставит его в начало ленты. Пустой контент (после trim)
// отклоняется до мутации.
func (fs *FeedStore) CreatePost(content, image string) (models.WallPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.WallPost{}, fmt.Errorf("%w: empty post content", ErrValidation)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	post := &models.WallPost{
		ID:             fs.nextLocalID,
		AuthorID:       fs.viewer.ID,
		AuthorName:     fs.viewer.FirstName + " " + fs.viewer.LastName,
		AuthorRole:     fs.viewer.Role,
		Content:        content,
		Image:          image,
		Status:         models.STATUS_PENDING,
		ReactionCounts: map[string]int{},
		Comments:       []models.WallComment{},
		CreatedAt:      time.Now(),
	}
	fs.nextLocalID--

	fs.posts = append([]*models.WallPost{post}, fs.posts...)
	fs.index[post.ID] = post

	return clonePost(post), nil
}

// ReconcilePost заменяет оптимистичный пост подтвержденными сервером
// значениями. Локальный id меняется на серверный.
func (fs *FeedStore) ReconcilePost(localID int64, confirmed models.WallPost) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[localID]
	if !ok {
		return
	}
	delete(fs.index, localID)

	*post = confirmed
	if post.ReactionCounts == nil {
		post.ReactionCounts = map[string]int{}
	}
	if post.Comments == nil {
		post.Comments = []models.WallComment{}
	}
	fs.index[post.ID] = post
}

// RemovePost убирает пост из ленты (откат оптимистичной мутации)
func (fs *FeedStore) RemovePost(id int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.index[id]; !ok {
		return
	}
	delete(fs.index, id)
	for i, p := range fs.posts {
		if p.ID == id {
			fs.posts = append(fs.posts[:i], fs.posts[i+1:]...)
			break
		}
	}
}

// ApplyRemotePost вставляет пост, пришедший по каналу от другого клиента
// или от сервера. Неодобренные посты игнорируются: чужой pending/rejected
// контент не рендерим. Идемпотентно: существующий пост с тем же id
// заменяется, а не дублируется.
func (fs *FeedStore) ApplyRemotePost(post models.WallPost) {
	if post.Status != models.STATUS_APPROVED {
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if existing, ok := fs.index[post.ID]; ok {
		counts := post.ReactionCounts
		if counts == nil {
			counts = map[string]int{}
		}
		comments := post.Comments
		if comments == nil {
			comments = existing.Comments
		}
		*existing = post
		existing.ReactionCounts = counts
		existing.Comments = comments
		return
	}

	p := clonePost(&post)
	stored := &p
	fs.posts = append([]*models.WallPost{stored}, fs.posts...)
	fs.index[stored.ID] = stored
}

// AddComment оптимистично добавляет pending комментарий в конец
// последовательности комментариев поста
func (fs *FeedStore) AddComment(postID int64, content string) (models.WallComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.WallComment{}, fmt.Errorf("%w: empty comment content", ErrValidation)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return models.WallComment{}, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}

	comment := models.WallComment{
		ID:         fs.nextLocalID,
		PostID:     postID,
		AuthorID:   fs.viewer.ID,
		AuthorName: fs.viewer.FirstName + " " + fs.viewer.LastName,
		AuthorRole: fs.viewer.Role,
		Content:    content,
		Status:     models.STATUS_PENDING,
		CreatedAt:  time.Now(),
	}
	fs.nextLocalID--

	post.Comments = append(post.Comments, comment)
	return comment, nil
}

// ReconcileComment заменяет оптимистичный комментарий подтвержденным
func (fs *FeedStore) ReconcileComment(postID, localID int64, confirmed models.WallComment) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return
	}
	for i := range post.Comments {
		if post.Comments[i].ID == localID {
			post.Comments[i] = confirmed
			return
		}
	}
}

// RemoveComment убирает комментарий (откат оптимистичной мутации)
func (fs *FeedStore) RemoveComment(postID, commentID int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return
	}
	for i := range post.Comments {
		if post.Comments[i].ID == commentID {
			post.Comments = append(post.Comments[:i], post.Comments[i+1:]...)
			return
		}
	}
}

// ApplyRemoteComment добавляет одобренный комментарий другого клиента.
// Если пост еще не загружен локально - тихий no-op, это не ошибка: пост
// может быть не одобрен или не попал в текущую страницу. Дедупликация
// по comment.id.
func (fs *FeedStore) ApplyRemoteComment(postID int64, comment models.WallComment) {
	if comment.Status != models.STATUS_APPROVED {
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return
	}
	for i := range post.Comments {
		if post.Comments[i].ID == comment.ID {
			post.Comments[i] = comment
			return
		}
	}
	post.Comments = append(post.Comments, comment)
}

// AddReaction оптимистично увеличивает локальный счетчик на 1 и
// возвращает снимок счетчиков для перерисовки
func (fs *FeedStore) AddReaction(postID int64, reactionType string) (map[string]int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}

	post.ReactionCounts[reactionType]++
	return cloneCounts(post.ReactionCounts), nil
}

// DecrementReaction откатывает оптимистичный инкремент. Счетчик не
// уходит ниже нуля, нулевые записи удаляются.
func (fs *FeedStore) DecrementReaction(postID int64, reactionType string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return
	}
	if post.ReactionCounts[reactionType] > 0 {
		post.ReactionCounts[reactionType]--
	}
	if post.ReactionCounts[reactionType] == 0 {
		delete(post.ReactionCounts, reactionType)
	}
}

// ReconcileReaction заменяет локальные оптимистичные счетчики
// авторитетными серверными. Сервер всегда выигрывает у локальной догадки.
func (fs *FeedStore) ReconcileReaction(postID int64, serverCounts map[string]int) {
	fs.applyCountsSnapshot(postID, serverCounts)
}

// ApplyRemoteReaction применяет снимок счетчиков, пришедший от другого
// клиента. Перезапись целиком, никогда не сложение: конкурентные
// инкременты с нескольких клиентов нельзя суммировать без двойного счета.
func (fs *FeedStore) ApplyRemoteReaction(postID int64, counts map[string]int) {
	fs.applyCountsSnapshot(postID, counts)
}

func (fs *FeedStore) applyCountsSnapshot(postID int64, counts map[string]int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[postID]
	if !ok {
		return
	}
	post.ReactionCounts = cloneCounts(counts)
}

// Get возвращает копию поста по id
func (fs *FeedStore) Get(id int64) (models.WallPost, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	post, ok := fs.index[id]
	if !ok {
		return models.WallPost{}, false
	}
	return clonePost(post), true
}

// Posts возвращает снимок ленты, видимой текущему пользователю,
// по правилам модерации
func (fs *FeedStore) Posts() []models.WallPost {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	visible := make([]models.WallPost, 0, len(fs.posts))
	for _, post := range fs.posts {
		if !IsVisible(post.Status, post.AuthorID, fs.viewer) {
			continue
		}
		p := clonePost(post)
		filtered := p.Comments[:0]
		for _, c := range p.Comments {
			if IsVisible(c.Status, c.AuthorID, fs.viewer) {
				filtered = append(filtered, c)
			}
		}
		p.Comments = filtered
		visible = append(visible, p)
	}
	return visible
}

// Len - количество постов в сторе без учета видимости
func (fs *FeedStore) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.posts)
}

func clonePost(p *models.WallPost) models.WallPost {
	out := *p
	out.ReactionCounts = cloneCounts(p.ReactionCounts)
	out.Comments = append([]models.WallComment{}, p.Comments...)
	return out
}

func cloneCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

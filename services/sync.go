package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"wall/models"
)

// Session - явное состояние сессии процесса вместо чтения токена из
// окружения по месту. Login выставляет, Logout очищает.
type Session struct {
	mu    sync.RWMutex
	token string
	user  models.User
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Login(token string, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = models.User{}
}

// Token возвращает bearer токен или ErrAuth, если сессии нет
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", fmt.Errorf("%w: no active session", ErrAuth)
	}
	return s.token, nil
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ConfirmClient - граница REST API, которой контроллер подтверждает
// оптимистичные мутации
type ConfirmClient interface {
	ConfirmPost(ctx context.Context, token, content, image string) (*models.WallPost, error)
	ConfirmComment(ctx context.Context, token string, postID int64, content string) (*models.WallComment, error)
	ConfirmReaction(ctx context.Context, token string, postID int64, reactionType string) (map[string]int, error)
}

// Состояния жизненного цикла одной мутации
type MutationState int

const (
	StateInitiated MutationState = iota
	StateOptimisticallyApplied
	StateAwaitingConfirm
	StateConfirmed
	StateBroadcast
	StateDone
	StateConfirmFailed
	StateRolledBack
)

func (s MutationState) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateOptimisticallyApplied:
		return "optimistic"
	case StateAwaitingConfirm:
		return "awaiting_confirm"
	case StateConfirmed:
		return "confirmed"
	case StateBroadcast:
		return "broadcast"
	case StateDone:
		return "done"
	case StateConfirmFailed:
		return "confirm_failed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// SyncController ведет цикл optimistic -> confirm -> broadcast ->
// reconcile для трех видов мутаций стены. При ошибке подтверждения
// оптимистичная мутация откатывается и никогда не рассылается.
type SyncController struct {
	store   *FeedStore
	api     ConfirmClient
	channel RealtimeChannel
	session *Session

	mu sync.Mutex
	// Номера последовательности подтверждений по постам: поздний ответ
	// для той же сущности проигрывает более новому (last-confirmed-wins)
	reactionSeq map[int64]uint64
}

func NewSyncController(store *FeedStore, api ConfirmClient, channel RealtimeChannel, session *Session) *SyncController {
	return &SyncController{
		store:       store,
		api:         api,
		channel:     channel,
		session:     session,
		reactionSeq: make(map[int64]uint64),
	}
}

// Start подписывает контроллер на события комнаты. Обработчики пишут
// только в Feed Store, никакого общего состояния в замыканиях.
func (sc *SyncController) Start() error {
	if err := sc.channel.Join(CommunityWallRoom); err != nil {
		return err
	}

	sc.channel.Subscribe(models.EventPostCreated, func(event string, payload interface{}) {
		post, ok := payload.(*models.WallPost)
		if !ok {
			return
		}
		sc.store.ApplyRemotePost(*post)
	})

	sc.channel.Subscribe(models.EventCommentAdded, func(event string, payload interface{}) {
		p, ok := payload.(*models.CommentAddedPayload)
		if !ok {
			return
		}
		sc.store.ApplyRemoteComment(p.PostID, p.Comment)
	})

	sc.channel.Subscribe(models.EventReactionAdded, func(event string, payload interface{}) {
		p, ok := payload.(*models.ReactionAddedPayload)
		if !ok {
			return
		}
		sc.store.ApplyRemoteReaction(p.PostID, p.ReactionCounts)
	})

	return nil
}

// CreatePost: оптимистичный pending пост -> подтверждение сервером ->
// рассылка подтвержденного значения. При ошибке сети пост убирается
// из ленты, ошибка видна только инициатору.
func (sc *SyncController) CreatePost(ctx context.Context, content, image string) (models.WallPost, error) {
	token, err := sc.session.Token()
	if err != nil {
		return models.WallPost{}, err
	}

	local, err := sc.store.CreatePost(content, image)
	if err != nil {
		// ValidationError: отклонено до мутации, откатывать нечего
		return models.WallPost{}, err
	}

	confirmed, err := sc.api.ConfirmPost(ctx, token, local.Content, local.Image)
	if err != nil {
		sc.store.RemovePost(local.ID)
		log.Printf("DEBUG: post confirm failed, state=%s: %v", StateRolledBack, err)
		return models.WallPost{}, err
	}

	sc.store.ReconcilePost(local.ID, *confirmed)
	sc.channel.Publish(models.EventPostCreated, confirmed)
	return *confirmed, nil
}

// AddComment: тот же цикл для комментария
func (sc *SyncController) AddComment(ctx context.Context, postID int64, content string) (models.WallComment, error) {
	token, err := sc.session.Token()
	if err != nil {
		return models.WallComment{}, err
	}

	local, err := sc.store.AddComment(postID, content)
	if err != nil {
		return models.WallComment{}, err
	}

	confirmed, err := sc.api.ConfirmComment(ctx, token, postID, local.Content)
	if err != nil {
		sc.store.RemoveComment(postID, local.ID)
		log.Printf("DEBUG: comment confirm failed, state=%s: %v", StateRolledBack, err)
		return models.WallComment{}, err
	}

	sc.store.ReconcileComment(postID, local.ID, *confirmed)
	sc.channel.Publish(models.EventCommentAdded, &models.CommentAddedPayload{
		PostID:  postID,
		Comment: *confirmed,
	})
	return *confirmed, nil
}

// AddReaction: локальный инкремент -> серверный снимок. Если до прихода
// ответа инициирована более новая мутация той же сущности, устаревший
// ответ отбрасывается.
func (sc *SyncController) AddReaction(ctx context.Context, postID int64, reactionType string) (map[string]int, error) {
	token, err := sc.session.Token()
	if err != nil {
		return nil, err
	}

	counts, err := sc.store.AddReaction(postID, reactionType)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	sc.reactionSeq[postID]++
	mySeq := sc.reactionSeq[postID]
	sc.mu.Unlock()

	serverCounts, err := sc.api.ConfirmReaction(ctx, token, postID, reactionType)
	if err != nil {
		sc.store.DecrementReaction(postID, reactionType)
		log.Printf("DEBUG: reaction confirm failed, state=%s: %v", StateRolledBack, err)
		return nil, err
	}

	sc.mu.Lock()
	stale := sc.reactionSeq[postID] != mySeq
	sc.mu.Unlock()
	if stale {
		// Более новое подтверждение уже в пути, этот снимок устарел
		return counts, nil
	}

	sc.store.ReconcileReaction(postID, serverCounts)

	total := 0
	for _, n := range serverCounts {
		total += n
	}
	sc.channel.Publish(models.EventReactionAdded, &models.ReactionAddedPayload{
		PostID:         postID,
		ReactionCounts: serverCounts,
		TotalReactions: total,
	})
	return serverCounts, nil
}

// Store - доступ к локальному Feed Store (рендеринг)
func (sc *SyncController) Store() *FeedStore {
	return sc.store
}

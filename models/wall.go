package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WallComment - комментарий в том виде, в котором он уходит клиенту
type WallComment struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	AuthorRole Role      `json:"author_role"`
	Content    string    `json:"content"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// WallPost - пост с агрегатами для ленты: имя автора, счетчики реакций,
// комментарии. Это единица состояния Feed Store на клиенте.
type WallPost struct {
	ID             int64          `json:"id"`
	AuthorID       int64          `json:"author_id"`
	AuthorName     string         `json:"author_name,omitempty"`
	AuthorRole     Role           `json:"author_role"`
	Content        string         `json:"content"`
	Image          string         `json:"image,omitempty"`
	Status         Status         `json:"status"`
	ReactionCounts map[string]int `json:"reaction_counts"`
	Comments       []WallComment  `json:"comments"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TotalReactions - всегда считаем сумму по карте, кешированного поля нет,
// чтобы итог не мог разъехаться со счетчиками
func (p *WallPost) TotalReactions() int {
	total := 0
	for _, n := range p.ReactionCounts {
		total += n
	}
	return total
}

// WallResponse - ответ API для одобренной ленты с пагинацией
type WallResponse struct {
	Posts   []WallPost `json:"posts"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
	HasMore bool       `json:"has_more"`
}

// Виды событий реального времени стены
const (
	EventPostCreated   = "post-created"
	EventCommentAdded  = "comment-added"
	EventReactionAdded = "reaction-added"
)

// WallEvent - конверт для событий реального времени. Payload валидируется
// на границе: неизвестные виды событий отбрасываются, не доходя до стора.
type WallEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// CommentAddedPayload - payload события comment-added
type CommentAddedPayload struct {
	PostID  int64       `json:"post_id"`
	Comment WallComment `json:"comment"`
}

// ReactionAddedPayload - payload события reaction-added: всегда полный
// снимок счетчиков, не дельта
type ReactionAddedPayload struct {
	PostID         int64          `json:"post_id"`
	ReactionCounts map[string]int `json:"reaction_counts"`
	TotalReactions int            `json:"total_reactions"`
}

// DecodeWallEvent разбирает конверт и возвращает типизированный payload.
// Возвращает ошибку для неизвестного вида события или битого payload.
func DecodeWallEvent(data []byte) (*WallEvent, interface{}, error) {
	var evt WallEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal wall event: %w", err)
	}

	switch evt.Event {
	case EventPostCreated:
		var post WallPost
		if err := json.Unmarshal(evt.Payload, &post); err != nil {
			return nil, nil, fmt.Errorf("bad post-created payload: %w", err)
		}
		return &evt, &post, nil
	case EventCommentAdded:
		var payload CommentAddedPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, nil, fmt.Errorf("bad comment-added payload: %w", err)
		}
		return &evt, &payload, nil
	case EventReactionAdded:
		var payload ReactionAddedPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return nil, nil, fmt.Errorf("bad reaction-added payload: %w", err)
		}
		return &evt, &payload, nil
	default:
		return &evt, nil, fmt.Errorf("unknown wall event: %s", evt.Event)
	}
}

// EncodeWallEvent собирает конверт события
func EncodeWallEvent(event string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(WallEvent{Event: event, Payload: body})
}

package models

import "time"

type Status string

const (
	STATUS_PENDING  Status = "pending"
	STATUS_APPROVED Status = "approved"
	STATUS_REJECTED Status = "rejected"
)

// Post - модель поста на стене сообщества
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Content   string    `gorm:"type:text" json:"content"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	Status    Status    `gorm:"type:wall_status;index" json:"status"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// Comment - комментарий к посту, модерируется независимо от поста
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"index" json:"post_id"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Content   string    `gorm:"type:text" json:"content"`
	Status    Status    `gorm:"type:wall_status;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}

// Reaction - событие реакции. Храним каждое нажатие отдельной строкой,
// без дедупликации по пользователю: счетчик растет на 1 за каждое действие.
type Reaction struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"index" json:"post_id"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Type      string    `gorm:"size:30" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

package models

import (
	"time"
)

type Role string

const (
	ROLE_STUDENT   Role = "student"
	ROLE_TEACHER   Role = "teacher"
	ROLE_ASSISTANT Role = "assistant"
	ROLE_ADMIN     Role = "admin"
)

// IsModerator - роли, которым доступна модерация стены
func (r Role) IsModerator() bool {
	return r == ROLE_TEACHER || r == ROLE_ASSISTANT || r == ROLE_ADMIN
}

type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname  string    `gorm:"size:60;uniqueIndex" json:"nickname"`
	FirstName string    `gorm:"size:255" json:"first_name"`
	LastName  string    `gorm:"size:255" json:"last_name"`
	Password  string    `gorm:"size:255" json:"-"`
	Role      Role      `gorm:"type:wall_role" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type UserTokens struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64  `gorm:"index:user_token_idx,unique" json:"user_id"`
	Token  string `gorm:"size:255;index:user_token_idx,unique" json:"token"`
}

func (UserTokens) TableName() string {
	return "user_tokens"
}

type Migration struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:60;uniqueIndex" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

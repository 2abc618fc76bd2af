package model

import "time"

// DefaultChatName 新建会话的默认名称
const DefaultChatName = "Новый чат"

type User struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username       string    `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email          string    `json:"email" gorm:"size:255"`
	FullName       string    `json:"full_name,omitempty" gorm:"size:255"`
	HashedPassword string    `json:"-" gorm:"not null"`
	Disabled       bool      `json:"disabled" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

type Chat struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

// ChatEntry 会话中的一轮问答
type ChatEntry struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          int64     `json:"user_id" gorm:"index;not null"`
	ChatID          int64     `json:"chat_id" gorm:"index;not null"`
	Message         string    `json:"message" gorm:"type:text"`
	Response        string    `json:"response" gorm:"type:text"`
	Recommendations string    `json:"recommendations,omitempty" gorm:"type:text"`
	PiperflowText   string    `json:"piperflow_text,omitempty" gorm:"type:text"`
	Image           string    `json:"image,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (ChatEntry) TableName() string { return "chat_history" }

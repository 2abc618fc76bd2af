package storage

import (
	"context"

	"bpmn-backend/internal/model"
)

// DefaultEntryLimit 历史记录默认分页大小
const DefaultEntryLimit = 100

// EntryFilter ChatID 为 0 时返回用户的全部历史
type EntryFilter struct {
	UserID int64
	ChatID int64
	Skip   int
	Limit  int
}

func (f EntryFilter) normalize() EntryFilter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultEntryLimit
	}
	return f
}

type Storage interface {
	// 用户管理
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	// 会话管理
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, id int64) (*model.Chat, error)
	UpdateChat(ctx context.Context, chat *model.Chat) error
	DeleteChat(ctx context.Context, id int64) error
	ListChats(ctx context.Context, userID int64) ([]*model.Chat, error)

	// 历史记录，按创建时间倒序
	AddEntry(ctx context.Context, entry *model.ChatEntry) error
	GetEntry(ctx context.Context, id int64) (*model.ChatEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*model.ChatEntry, error)

	// 存储管理
	Init() error
	Close() error
}

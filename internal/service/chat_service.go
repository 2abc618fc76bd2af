package service

import (
	"context"
	"strings"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/storage"
)

// ChatService 会话与历史记录，所有操作都限定在当前用户名下
type ChatService struct {
	storage storage.Storage
}

func NewChatService(store storage.Storage) *ChatService {
	return &ChatService{storage: store}
}

func (s *ChatService) CreateChat(ctx context.Context, user *model.User, req model.CreateChatRequest) (*model.Chat, error) {
	if req.UserID != 0 && req.UserID != user.ID {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = model.DefaultChatName
	}

	chat := &model.Chat{UserID: user.ID, Name: name}
	if err := s.storage.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) ListChats(ctx context.Context, user *model.User) ([]*model.Chat, error) {
	return s.storage.ListChats(ctx, user.ID)
}

// ownChat 会话不存在返回 storage.ErrChatNotFound，不属于 user 返回 ErrForbidden
func (s *ChatService) ownChat(ctx context.Context, user *model.User, chatID int64) (*model.Chat, error) {
	chat, err := s.storage.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != user.ID {
		return nil, ErrForbidden
	}
	return chat, nil
}

func (s *ChatService) RenameChat(ctx context.Context, user *model.User, chatID int64, name string) (*model.Chat, error) {
	chat, err := s.ownChat(ctx, user, chatID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, storage.ErrInvalidData
	}
	chat.Name = name
	if err := s.storage.UpdateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, user *model.User, chatID int64) error {
	if _, err := s.ownChat(ctx, user, chatID); err != nil {
		return err
	}
	return s.storage.DeleteChat(ctx, chatID)
}

func (s *ChatService) AddEntry(ctx context.Context, user *model.User, req model.CreateEntryRequest) (*model.ChatEntry, error) {
	if req.UserID != 0 && req.UserID != user.ID {
		return nil, ErrForbidden
	}
	if _, err := s.ownChat(ctx, user, req.ChatID); err != nil {
		return nil, err
	}

	entry := &model.ChatEntry{
		UserID:          user.ID,
		ChatID:          req.ChatID,
		Message:         req.Message,
		Response:        req.Response,
		Recommendations: req.Recommendations,
		PiperflowText:   req.PiperflowText,
		Image:           req.Image,
	}
	if err := s.storage.AddEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries chatID 为 0 时返回用户全部历史
func (s *ChatService) ListEntries(ctx context.Context, user *model.User, chatID int64, skip, limit int) ([]*model.ChatEntry, error) {
	if chatID != 0 {
		if _, err := s.ownChat(ctx, user, chatID); err != nil {
			return nil, err
		}
	}
	return s.storage.ListEntries(ctx, storage.EntryFilter{
		UserID: user.ID,
		ChatID: chatID,
		Skip:   skip,
		Limit:  limit,
	})
}

func (s *ChatService) GetEntry(ctx context.Context, user *model.User, entryID int64) (*model.ChatEntry, error) {
	entry, err := s.storage.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != user.ID {
		return nil, ErrForbidden
	}
	return entry, nil
}

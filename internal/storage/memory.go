package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"bpmn-backend/internal/model"
)

type MemoryStorage struct {
	users   map[int64]*model.User
	chats   map[int64]*model.Chat
	entries map[int64]*model.ChatEntry
	nextID  int64
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:   make(map[int64]*model.User),
		chats:   make(map[int64]*model.Chat),
		entries: make(map[int64]*model.ChatEntry),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStorage) CreateUser(ctx context.Context, user *model.User) error {
	if user == nil || user.Username == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrUserExists
		}
	}

	user.ID = m.id()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStorage) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, exists := m.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryStorage) CreateChat(ctx context.Context, chat *model.Chat) error {
	if chat == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	chat.ID = m.id()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	stored := *chat
	m.chats[chat.ID] = &stored
	return nil
}

func (m *MemoryStorage) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, exists := m.chats[id]
	if !exists {
		return nil, ErrChatNotFound
	}
	out := *chat
	return &out, nil
}

func (m *MemoryStorage) UpdateChat(ctx context.Context, chat *model.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.chats[chat.ID]
	if !exists {
		return ErrChatNotFound
	}

	existing.Name = chat.Name
	existing.UpdatedAt = time.Now()
	*chat = *existing
	return nil
}

func (m *MemoryStorage) DeleteChat(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.chats[id]; !exists {
		return ErrChatNotFound
	}

	delete(m.chats, id)
	for entryID, e := range m.entries {
		if e.ChatID == id {
			delete(m.entries, entryID)
		}
	}
	return nil
}

func (m *MemoryStorage) ListChats(ctx context.Context, userID int64) ([]*model.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := make([]*model.Chat, 0)
	for _, c := range m.chats {
		if c.UserID == userID {
			out := *c
			chats = append(chats, &out)
		}
	}

	sort.Slice(chats, func(i, j int) bool {
		if chats[i].UpdatedAt.Equal(chats[j].UpdatedAt) {
			return chats[i].ID > chats[j].ID
		}
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (m *MemoryStorage) AddEntry(ctx context.Context, entry *model.ChatEntry) error {
	if entry == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chat, exists := m.chats[entry.ChatID]
	if !exists {
		return ErrChatNotFound
	}

	now := time.Now()
	entry.ID = m.id()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	stored := *entry
	m.entries[entry.ID] = &stored
	chat.UpdatedAt = now
	return nil
}

func (m *MemoryStorage) GetEntry(ctx context.Context, id int64) (*model.ChatEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.entries[id]
	if !exists {
		return nil, ErrEntryNotFound
	}
	out := *e
	return &out, nil
}

func (m *MemoryStorage) ListEntries(ctx context.Context, filter EntryFilter) ([]*model.ChatEntry, error) {
	filter = filter.normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*model.ChatEntry, 0)
	for _, e := range m.entries {
		if e.UserID != filter.UserID {
			continue
		}
		if filter.ChatID != 0 && e.ChatID != filter.ChatID {
			continue
		}
		out := *e
		entries = append(entries, &out)
	}

	// 最新的在前，ID 作为同一时刻的次序
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if filter.Skip >= len(entries) {
		return []*model.ChatEntry{}, nil
	}
	entries = entries[filter.Skip:]
	if len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

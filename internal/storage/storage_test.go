package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bpmn-backend/internal/config"
	"bpmn-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) Storage {
	t.Helper()
	s := NewSQLiteStorage(":memory:")
	require.NoError(t, s.Init())
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(t *testing.T) Storage {
	t.Helper()
	s := NewMemoryStorage()
	require.NoError(t, s.Init())
	return s
}

var backends = map[string]func(t *testing.T) Storage{
	"memory": newMemory,
	"sqlite": newSQLite,
}

func createUser(t *testing.T, s Storage, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", HashedPassword: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestStorage_Users(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			u := createUser(t, s, "alice")
			assert.NotZero(t, u.ID)
			assert.False(t, u.CreatedAt.IsZero())

			err := s.CreateUser(ctx, &model.User{Username: "alice", HashedPassword: "other"})
			assert.ErrorIs(t, err, ErrUserExists)

			byName, err := s.GetUserByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, u.ID, byName.ID)
			assert.Equal(t, "hash", byName.HashedPassword)
			assert.Equal(t, "alice@example.com", byName.Email)

			byID, err := s.GetUserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "alice", byID.Username)

			_, err = s.GetUserByUsername(ctx, "bob")
			assert.ErrorIs(t, err, ErrUserNotFound)
			_, err = s.GetUserByID(ctx, 9999)
			assert.ErrorIs(t, err, ErrUserNotFound)

			assert.ErrorIs(t, s.CreateUser(ctx, &model.User{}), ErrInvalidData)
		})
	}
}

func TestStorage_Chats(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			u := createUser(t, s, "alice")
			other := createUser(t, s, "bob")

			first := &model.Chat{UserID: u.ID, Name: "first"}
			require.NoError(t, s.CreateChat(ctx, first))
			time.Sleep(2 * time.Millisecond)
			second := &model.Chat{UserID: u.ID, Name: "second"}
			require.NoError(t, s.CreateChat(ctx, second))
			require.NoError(t, s.CreateChat(ctx, &model.Chat{UserID: other.ID, Name: "foreign"}))

			chats, err := s.ListChats(ctx, u.ID)
			require.NoError(t, err)
			require.Len(t, chats, 2)
			assert.Equal(t, "second", chats[0].Name)
			assert.Equal(t, "first", chats[1].Name)

			// 新增记录会把会话顶到最前
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, s.AddEntry(ctx, &model.ChatEntry{UserID: u.ID, ChatID: first.ID, Message: "hi"}))
			chats, err = s.ListChats(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "first", chats[0].Name)

			first.Name = "renamed"
			require.NoError(t, s.UpdateChat(ctx, first))
			got, err := s.GetChat(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", got.Name)
			assert.Equal(t, u.ID, got.UserID)

			assert.ErrorIs(t, s.UpdateChat(ctx, &model.Chat{ID: 9999, Name: "x"}), ErrChatNotFound)
			_, err = s.GetChat(ctx, 9999)
			assert.ErrorIs(t, err, ErrChatNotFound)

			empty, err := s.ListChats(ctx, 9999)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStorage_DeleteChatRemovesEntries(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			u := createUser(t, s, "alice")

			chat := &model.Chat{UserID: u.ID, Name: "c"}
			require.NoError(t, s.CreateChat(ctx, chat))
			entry := &model.ChatEntry{UserID: u.ID, ChatID: chat.ID, Message: "m"}
			require.NoError(t, s.AddEntry(ctx, entry))

			require.NoError(t, s.DeleteChat(ctx, chat.ID))
			assert.ErrorIs(t, s.DeleteChat(ctx, chat.ID), ErrChatNotFound)

			_, err := s.GetEntry(ctx, entry.ID)
			assert.ErrorIs(t, err, ErrEntryNotFound)
			entries, err := s.ListEntries(ctx, EntryFilter{UserID: u.ID})
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestStorage_Entries(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			u := createUser(t, s, "alice")

			a := &model.Chat{UserID: u.ID, Name: "a"}
			b := &model.Chat{UserID: u.ID, Name: "b"}
			require.NoError(t, s.CreateChat(ctx, a))
			require.NoError(t, s.CreateChat(ctx, b))

			for i := 0; i < 3; i++ {
				require.NoError(t, s.AddEntry(ctx, &model.ChatEntry{
					UserID:        u.ID,
					ChatID:        a.ID,
					Message:       "msg" + string(rune('0'+i)),
					PiperflowText: "title: x",
				}))
			}
			require.NoError(t, s.AddEntry(ctx, &model.ChatEntry{UserID: u.ID, ChatID: b.ID, Message: "other"}))

			err := s.AddEntry(ctx, &model.ChatEntry{UserID: u.ID, ChatID: 9999})
			assert.ErrorIs(t, err, ErrChatNotFound)

			all, err := s.ListEntries(ctx, EntryFilter{UserID: u.ID})
			require.NoError(t, err)
			assert.Len(t, all, 4)

			inA, err := s.ListEntries(ctx, EntryFilter{UserID: u.ID, ChatID: a.ID})
			require.NoError(t, err)
			require.Len(t, inA, 3)
			assert.Equal(t, "msg2", inA[0].Message)
			assert.Equal(t, "msg0", inA[2].Message)
			assert.Equal(t, "title: x", inA[0].PiperflowText)

			page, err := s.ListEntries(ctx, EntryFilter{UserID: u.ID, ChatID: a.ID, Skip: 1, Limit: 1})
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, "msg1", page[0].Message)

			beyond, err := s.ListEntries(ctx, EntryFilter{UserID: u.ID, Skip: 10})
			require.NoError(t, err)
			assert.Empty(t, beyond)

			got, err := s.GetEntry(ctx, inA[0].ID)
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ChatID)
		})
	}
}

func TestEntryFilter_Normalize(t *testing.T) {
	f := EntryFilter{Skip: -3}.normalize()
	assert.Equal(t, 0, f.Skip)
	assert.Equal(t, DefaultEntryLimit, f.Limit)
}

func TestSQLiteStorage_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bpmn.db")
	ctx := context.Background()

	s := NewSQLiteStorage(path)
	require.NoError(t, s.Init())
	createUser(t, s, "alice")
	require.NoError(t, s.Close())

	reopened := NewSQLiteStorage(path)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	u, err := reopened.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestNew(t *testing.T) {
	s, err := New(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(config.StorageConfig{Type: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)

	s, err = New(config.StorageConfig{Type: "postgres"})
	require.NoError(t, err)
	assert.IsType(t, &PostgresStorage{}, s)

	_, err = New(config.StorageConfig{Type: "mongo"})
	assert.Error(t, err)
}

func TestDiagramDisk_SaveDiagram(t *testing.T) {
	d := NewDiagramDisk(t.TempDir())
	require.NoError(t, d.Init())

	path, err := d.SaveDiagram(context.Background(), "title: Demo", []byte("PNG"), ".PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".png"))
	assert.Equal(t, d.Dir(), filepath.Dir(path))

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(image))

	text, err := os.ReadFile(strings.TrimSuffix(path, ".png") + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "title: Demo", string(text))

	leftovers, err := filepath.Glob(filepath.Join(d.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDiagramDisk_RejectsEmptyImage(t *testing.T) {
	d := NewDiagramDisk(t.TempDir())
	require.NoError(t, d.Init())

	_, err := d.SaveDiagram(context.Background(), "title: x", nil, "png")
	assert.ErrorIs(t, err, ErrInvalidData)
}

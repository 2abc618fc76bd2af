package service

import (
	"context"
	"testing"
	"time"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/storage"
	"bpmn-backend/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) (*AuthService, storage.Storage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	jwt := utils.NewJWTManager("secret", "bpmn-backend", time.Minute)
	return NewAuthService(store, jwt).WithCost(bcrypt.MinCost), store
}

func register(t *testing.T, s *AuthService, username string) *model.User {
	t.Helper()
	u, err := s.Register(context.Background(), model.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "p@ss",
	})
	require.NoError(t, err)
	return u
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newAuth(t)

	u := register(t, s, "alice")
	assert.NotEqual(t, "p@ss", u.HashedPassword)

	_, err := s.Register(ctx, model.RegisterRequest{Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	token, err := s.Authenticate(ctx, "alice", "p@ss")
	require.NoError(t, err)

	current, err := s.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, current.ID)
}

func TestAuthService_AuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	s, _ := newAuth(t)
	register(t, s, "alice")

	_, err := s.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody", "p@ss")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	s, store := newAuth(t)

	_, err := s.CurrentUser(ctx, "garbage")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)

	// 令牌合法但用户不存在
	token, err := s.jwt.GenerateToken("ghost")
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, token)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)

	require.NoError(t, store.CreateUser(ctx, &model.User{Username: "off", HashedPassword: "h", Disabled: true}))
	token, err = s.jwt.GenerateToken("off")
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, token)
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	s, _ := newAuth(t)
	_, err := s.Register(context.Background(), model.RegisterRequest{Username: "  ", Password: "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidData)
}

func chatFixture(t *testing.T) (*ChatService, *model.User, *model.User) {
	t.Helper()
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	alice := &model.User{Username: "alice", HashedPassword: "h"}
	bob := &model.User{Username: "bob", HashedPassword: "h"}
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))
	return NewChatService(store), alice, bob
}

func TestChatService_CreateChat(t *testing.T) {
	ctx := context.Background()
	s, alice, bob := chatFixture(t)

	chat, err := s.CreateChat(ctx, alice, model.CreateChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultChatName, chat.Name)
	assert.Equal(t, alice.ID, chat.UserID)

	_, err = s.CreateChat(ctx, alice, model.CreateChatRequest{UserID: bob.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	chats, err := s.ListChats(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestChatService_Ownership(t *testing.T) {
	ctx := context.Background()
	s, alice, bob := chatFixture(t)

	chat, err := s.CreateChat(ctx, alice, model.CreateChatRequest{Name: "mine"})
	require.NoError(t, err)

	_, err = s.RenameChat(ctx, bob, chat.ID, "stolen")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, s.DeleteChat(ctx, bob, chat.ID), ErrForbidden)
	_, err = s.AddEntry(ctx, bob, model.CreateEntryRequest{ChatID: chat.ID, Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = s.ListEntries(ctx, bob, chat.ID, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)

	entry, err := s.AddEntry(ctx, alice, model.CreateEntryRequest{ChatID: chat.ID, Message: "hi", PiperflowText: "title: x"})
	require.NoError(t, err)
	_, err = s.GetEntry(ctx, bob, entry.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := s.GetEntry(ctx, alice, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "title: x", got.PiperflowText)

	_, err = s.RenameChat(ctx, alice, 9999, "x")
	assert.ErrorIs(t, err, storage.ErrChatNotFound)
	_, err = s.GetEntry(ctx, alice, 9999)
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func TestChatService_RenameAndDelete(t *testing.T) {
	ctx := context.Background()
	s, alice, _ := chatFixture(t)

	chat, err := s.CreateChat(ctx, alice, model.CreateChatRequest{Name: "old"})
	require.NoError(t, err)

	renamed, err := s.RenameChat(ctx, alice, chat.ID, " new ")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)

	_, err = s.RenameChat(ctx, alice, chat.ID, " ")
	assert.ErrorIs(t, err, storage.ErrInvalidData)

	_, err = s.AddEntry(ctx, alice, model.CreateEntryRequest{ChatID: chat.ID, Message: "m"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChat(ctx, alice, chat.ID))
	entries, err := s.ListEntries(ctx, alice, 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChatService_ListEntriesPaging(t *testing.T) {
	ctx := context.Background()
	s, alice, _ := chatFixture(t)

	chat, err := s.CreateChat(ctx, alice, model.CreateChatRequest{})
	require.NoError(t, err)
	for _, msg := range []string{"a", "b", "c"} {
		_, err := s.AddEntry(ctx, alice, model.CreateEntryRequest{ChatID: chat.ID, Message: msg})
		require.NoError(t, err)
	}

	entries, err := s.ListEntries(ctx, alice, chat.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Message)

	entries, err = s.ListEntries(ctx, alice, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Message)
}

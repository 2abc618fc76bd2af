package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bpmn-backend/internal/model"
	"bpmn-backend/pkg/logger"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStorage 本地运行与测试使用的存储，path 可以是 ":memory:"
type SQLiteStorage struct {
	path string
	db   *sql.DB
}

func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		hashed_password TEXT NOT NULL,
		disabled INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_user_id ON chats(user_id)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		recommendations TEXT NOT NULL DEFAULT '',
		piperflow_text TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_user_chat ON chat_history(user_id, chat_id)`,
}

func (s *SQLiteStorage) Init() error {
	if s.path != ":memory:" {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrStorageInit, err)
			}
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("%w: open database: %v", ErrStorageInit, err)
	}
	// 单连接：":memory:" 每个连接是独立的库，文件库也只有一个写者
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("%w: enable WAL mode: %v", ErrStorageInit, err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("%w: create schema: %v", ErrStorageInit, err)
		}
	}

	s.db = db
	logger.Infof("SQLite storage initialized at %s", s.path)
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowNano() int64 {
	return time.Now().UnixNano()
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if user == nil || user.Username == "" {
		return ErrInvalidData
	}

	created := nowNano()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, full_name, hashed_password, disabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Username, user.Email, user.FullName, user.HashedPassword, user.Disabled, created)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	user.CreatedAt = fromNano(created)
	return nil
}

const userColumns = `id, username, email, full_name, hashed_password, disabled, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.HashedPassword, &u.Disabled, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = fromNano(created)
	return &u, nil
}

func (s *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStorage) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStorage) CreateChat(ctx context.Context, chat *model.Chat) error {
	if chat == nil {
		return ErrInvalidData
	}

	now := nowNano()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (user_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, chat.UserID, chat.Name, now, now)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	chat.ID = id
	chat.CreatedAt = fromNano(now)
	chat.UpdatedAt = chat.CreatedAt
	return nil
}

func (s *SQLiteStorage) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	var c model.Chat
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at FROM chats WHERE id = ?
	`, id).Scan(&c.ID, &c.UserID, &c.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	c.CreatedAt = fromNano(created)
	c.UpdatedAt = fromNano(updated)
	return &c, nil
}

func (s *SQLiteStorage) UpdateChat(ctx context.Context, chat *model.Chat) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET name = ?, updated_at = ? WHERE id = ?`, chat.Name, nowNano(), chat.ID)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}

	updated, err := s.GetChat(ctx, chat.ID)
	if err != nil {
		return err
	}
	*chat = *updated
	return nil
}

func (s *SQLiteStorage) DeleteChat(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_history WHERE chat_id = ?`, id); err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListChats(ctx context.Context, userID int64) ([]*model.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM chats
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]*model.Chat, 0)
	for rows.Next() {
		var c model.Chat
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.CreatedAt = fromNano(created)
		c.UpdatedAt = fromNano(updated)
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

func (s *SQLiteStorage) AddEntry(ctx context.Context, entry *model.ChatEntry) error {
	if entry == nil {
		return ErrInvalidData
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	defer tx.Rollback()

	now := nowNano()
	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, now, entry.ChatID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO chat_history (user_id, chat_id, message, response, recommendations, piperflow_text, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.UserID, entry.ChatID, entry.Message, entry.Response, entry.Recommendations, entry.PiperflowText, entry.Image, now, now)
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add entry: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = fromNano(now)
	entry.UpdatedAt = entry.CreatedAt
	return nil
}

const entryColumns = `id, user_id, chat_id, message, response, recommendations, piperflow_text, image, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.ChatEntry, error) {
	var e model.ChatEntry
	var created, updated int64
	if err := row.Scan(&e.ID, &e.UserID, &e.ChatID, &e.Message, &e.Response, &e.Recommendations, &e.PiperflowText, &e.Image, &created, &updated); err != nil {
		return nil, err
	}
	e.CreatedAt = fromNano(created)
	e.UpdatedAt = fromNano(updated)
	return &e, nil
}

func (s *SQLiteStorage) GetEntry(ctx context.Context, id int64) (*model.ChatEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM chat_history WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStorage) ListEntries(ctx context.Context, filter EntryFilter) ([]*model.ChatEntry, error) {
	filter = filter.normalize()

	query := `SELECT ` + entryColumns + ` FROM chat_history WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.ChatID != 0 {
		query += ` AND chat_id = ?`
		args = append(args, filter.ChatID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.ChatEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

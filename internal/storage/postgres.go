package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bpmn-backend/internal/config"
	"bpmn-backend/internal/model"
	"bpmn-backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var pgTracer = otel.Tracer("postgres")

// gormWriter 把 GORM 日志转发到 logrus
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// PostgresStorage 生产环境使用的存储
type PostgresStorage struct {
	cfg config.PostgresConfig
	db  *gorm.DB
}

func NewPostgresStorage(cfg config.PostgresConfig) *PostgresStorage {
	return &PostgresStorage{cfg: cfg}
}

func (p *PostgresStorage) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.cfg.Host, p.cfg.Port, p.cfg.User, p.cfg.Password, p.cfg.Database, p.cfg.SSLMode,
	)
}

func (p *PostgresStorage) Init() error {
	gormLog := gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(p.dsn()), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("%w: open database: %v", ErrStorageInit, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: get sql.DB: %v", ErrStorageInit, err)
	}
	if p.cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.cfg.MaxOpenConns)
	}
	if p.cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("%w: ping database: %v", ErrStorageInit, err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Chat{}, &model.ChatEntry{}); err != nil {
		sqlDB.Close()
		return fmt.Errorf("%w: migrate: %v", ErrStorageInit, err)
	}

	p.db = db
	logger.Infof("Postgres storage initialized (%s:%d/%s)", p.cfg.Host, p.cfg.Port, p.cfg.Database)
	return nil
}

func (p *PostgresStorage) Close() error {
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user *model.User) error {
	ctx, span := pgTracer.Start(ctx, "postgres.CreateUser")
	defer span.End()

	if user == nil || user.Username == "" {
		return ErrInvalidData
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		span.RecordError(err)
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (p *PostgresStorage) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	if err := p.db.WithContext(ctx).First(&user, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (p *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.GetUserByUsername")
	defer span.End()
	return p.getUser(ctx, "username = ?", username)
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.GetUserByID")
	defer span.End()
	return p.getUser(ctx, "id = ?", id)
}

func (p *PostgresStorage) CreateChat(ctx context.Context, chat *model.Chat) error {
	ctx, span := pgTracer.Start(ctx, "postgres.CreateChat")
	defer span.End()

	if chat == nil {
		return ErrInvalidData
	}
	if err := p.db.WithContext(ctx).Create(chat).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (p *PostgresStorage) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.GetChat")
	defer span.End()

	var chat model.Chat
	if err := p.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &chat, nil
}

func (p *PostgresStorage) UpdateChat(ctx context.Context, chat *model.Chat) error {
	ctx, span := pgTracer.Start(ctx, "postgres.UpdateChat")
	defer span.End()

	res := p.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", chat.ID).
		Updates(map[string]interface{}{"name": chat.Name, "updated_at": time.Now()})
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("update chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrChatNotFound
	}

	updated, err := p.GetChat(ctx, chat.ID)
	if err != nil {
		return err
	}
	*chat = *updated
	return nil
}

func (p *PostgresStorage) DeleteChat(ctx context.Context, id int64) error {
	ctx, span := pgTracer.Start(ctx, "postgres.DeleteChat")
	defer span.End()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Chat{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return tx.Delete(&model.ChatEntry{}, "chat_id = ?", id).Error
	})
	if err != nil && !errors.Is(err, ErrChatNotFound) {
		span.RecordError(err)
		return fmt.Errorf("delete chat: %w", err)
	}
	return err
}

func (p *PostgresStorage) ListChats(ctx context.Context, userID int64) ([]*model.Chat, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.ListChats")
	defer span.End()

	chats := make([]*model.Chat, 0)
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&chats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (p *PostgresStorage) AddEntry(ctx context.Context, entry *model.ChatEntry) error {
	ctx, span := pgTracer.Start(ctx, "postgres.AddEntry")
	defer span.End()

	if entry == nil {
		return ErrInvalidData
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Chat{}).Where("id = ?", entry.ChatID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return tx.Create(entry).Error
	})
	if err != nil && !errors.Is(err, ErrChatNotFound) {
		span.RecordError(err)
		return fmt.Errorf("add entry: %w", err)
	}
	return err
}

func (p *PostgresStorage) GetEntry(ctx context.Context, id int64) (*model.ChatEntry, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.GetEntry")
	defer span.End()

	var entry model.ChatEntry
	if err := p.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

func (p *PostgresStorage) ListEntries(ctx context.Context, filter EntryFilter) ([]*model.ChatEntry, error) {
	ctx, span := pgTracer.Start(ctx, "postgres.ListEntries")
	defer span.End()

	filter = filter.normalize()
	q := p.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.ChatID != 0 {
		q = q.Where("chat_id = ?", filter.ChatID)
	}

	entries := make([]*model.ChatEntry, 0)
	err := q.Order("created_at DESC, id DESC").Offset(filter.Skip).Limit(filter.Limit).Find(&entries).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

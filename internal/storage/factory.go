package storage

import (
	"fmt"

	"bpmn-backend/internal/config"
)

// New 按配置创建存储，返回前不调用 Init
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "":
		return NewSQLiteStorage(cfg.SQLitePath), nil
	case "postgres":
		return NewPostgresStorage(cfg.Postgres), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

package storage

import (
	"fmt"

	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

// NewDatabase builds the configured backend. "none" returns nil.
func NewDatabase(cfg models.MStorageConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.DBType {
	case "none":
		return nil, nil
	case "postgres":
		db, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite", "":
		db, err := NewAsyncSQLiteDB(cfg, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.DBType)
	}
}

package db

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/curalab/fedbench/internal/core/models"
)

// DBManager provides centralized database connection management
type DBManager struct {
	db   *gorm.DB
	lock sync.RWMutex
}

// NewDBManager creates a new DBManager instance
func NewDBManager() *DBManager {
	return &DBManager{}
}

// Connect establishes a database connection and migrates the evaluation
// schema.
func (m *DBManager) Connect(ctx context.Context, dbURL string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.EvaluationRun{}, &models.FoldResult{}); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}

	m.db = db
	return nil
}

// GetDB returns the database connection
func (m *DBManager) GetDB() *gorm.DB {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.db
}

// Close closes the database connection
func (m *DBManager) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("error getting SQL DB: %w", err)
	}

	return sqlDB.Close()
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RepositoryManager combines all repositories behind one handle.
type RepositoryManager interface {
	VoiceCall() VoiceCallRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM.
type GormRepositoryManager struct {
	db            *gorm.DB
	voiceCallRepo *GormVoiceCallRepository
}

// NewGormRepositoryManager creates a repository manager on an open connection.
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:            db,
		voiceCallRepo: NewGormVoiceCallRepository(db),
	}
}

// NewRepositoryManager connects to the configured database, runs migrations
// and returns a ready manager.
func NewRepositoryManager() (RepositoryManager, error) {
	cfg := LoadDatabaseConfigFromEnv()
	db, err := NewDatabaseConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewGormRepositoryManager(db), nil
}

// VoiceCall returns the voice call repository.
func (m *GormRepositoryManager) VoiceCall() VoiceCallRepository {
	return m.voiceCallRepo
}

// Ping checks database connectivity.
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

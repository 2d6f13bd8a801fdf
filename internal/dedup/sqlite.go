package dedup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one persisted dedup value
type Entry struct {
	DedupKey  string `gorm:"column:dedup_key;primaryKey"`
	Value     int64
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "dedup_entries"
}

// SQLStore keeps dedup state in a GORM-managed table
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates the
// dedup table.
func OpenSQLite(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating dedup directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an existing connection and migrates the dedup table
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating dedup table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("dedup_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return e.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value int64) error {
	e := Entry{DedupKey: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package keystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type secureItem struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string
	UpdatedAt time.Time
}

func (secureItem) TableName() string { return "secure_items" }

// SQLiteStore persists encrypted key-value pairs in a device-local sqlite
// file. Values are AES-GCM sealed before they touch disk.
type SQLiteStore struct {
	db     *gorm.DB
	cipher *Cipher
	logger *slog.Logger
}

// OpenSQLite opens (and migrates) the store at path. Use ":memory:" for an
// ephemeral store.
func OpenSQLite(path, secret string, logger *slog.Logger) (*SQLiteStore, error) {
	cipher, err := NewCipher(secret)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open keystore %q: %w", path, err)
	}
	if err := db.AutoMigrate(&secureItem{}); err != nil {
		return nil, fmt.Errorf("migrate keystore: %w", err)
	}
	return &SQLiteStore{db: db, cipher: cipher, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) string {
	var item secureItem
	err := s.db.WithContext(ctx).First(&item, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("keystore read failed", "key", key, "error", err)
		}
		return ""
	}
	plain, err := s.cipher.Decrypt(item.Value)
	if err != nil {
		// Undecryptable rows (for example after a secret change) read as
		// absent rather than poisoning every caller.
		s.logger.Warn("keystore value undecryptable", "key", key, "error", err)
		return ""
	}
	return plain
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	item := secureItem{Key: key, Value: sealed, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("keystore write %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&secureItem{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("keystore remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&secureItem{}).Error; err != nil {
		return fmt.Errorf("keystore clear: %w", err)
	}
	return nil
}

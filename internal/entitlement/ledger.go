package entitlement

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

	"github.com/teachlink/client-core/internal/domain"
)

// tierState caches the derived subscription tier as a single row so tier
// reads never have to walk the ledger.
type tierState struct {
	ID        int `gorm:"primaryKey"`
	Tier      string
	UpdatedAt time.Time
}

func (tierState) TableName() string { return "subscription_tier" }

// Ledger is the device-local purchase log backing tier derivation and
// restore. Records are append-only: only the status column is ever
// rewritten.
type Ledger struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenLedger opens (and migrates) the ledger at path. Use ":memory:" for an
// ephemeral ledger.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger %q: %w", path, err)
	}
	if err := db.AutoMigrate(&domain.PurchaseRecord{}, &tierState{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, logger: logger}, nil
}

func (l *Ledger) Append(ctx context.Context, rec domain.PurchaseRecord) error {
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("ledger append %q: %w", rec.TransactionID, err)
	}
	return nil
}

// History returns all records, newest purchase first.
func (l *Ledger) History(ctx context.Context) ([]domain.PurchaseRecord, error) {
	var records []domain.PurchaseRecord
	err := l.db.WithContext(ctx).Order("purchased_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	return records, nil
}

func (l *Ledger) UpdateStatus(ctx context.Context, id string, status domain.PurchaseStatus) error {
	res := l.db.WithContext(ctx).Model(&domain.PurchaseRecord{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("ledger update %q: %w", id, res.Error)
	}
	return nil
}

// Tier returns the cached subscription tier, free when never set.
func (l *Ledger) Tier(ctx context.Context) domain.SubscriptionTier {
	var state tierState
	err := l.db.WithContext(ctx).First(&state, "id = 1").Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.logger.Warn("tier read failed", "error", err)
		}
		return domain.TierFree
	}
	return domain.SubscriptionTier(state.Tier)
}

func (l *Ledger) SetTier(ctx context.Context, tier domain.SubscriptionTier) error {
	state := tierState{ID: 1, Tier: string(tier), UpdatedAt: time.Now().UTC()}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("tier write: %w", err)
	}
	return nil
}

// Clear wipes all purchase records and the cached tier.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.db.WithContext(ctx).Where("1 = 1").Delete(&domain.PurchaseRecord{}).Error; err != nil {
		return fmt.Errorf("ledger clear: %w", err)
	}
	if err := l.db.WithContext(ctx).Where("1 = 1").Delete(&tierState{}).Error; err != nil {
		return fmt.Errorf("tier clear: %w", err)
	}
	return nil
}

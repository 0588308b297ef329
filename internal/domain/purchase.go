package domain

import "time"

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPro     SubscriptionTier = "pro"
	TierPremium SubscriptionTier = "premium"
)

type PurchaseType string

const (
	PurchaseSubscription PurchaseType = "subscription"
	PurchaseOneTime      PurchaseType = "one_time"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
	PurchaseRestored  PurchaseStatus = "restored"
)

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)

// PurchaseRecord is one row of the local purchase ledger. Records are
// append-only: after creation only Status may be rewritten.
type PurchaseRecord struct {
	ID            string         `gorm:"primaryKey;size:64" json:"id"`
	ProductID     string         `gorm:"index;size:128;not null" json:"productId"`
	TransactionID string         `gorm:"uniqueIndex;size:64;not null" json:"transactionId"`
	Amount        float64        `json:"amount"`
	Currency      string         `gorm:"size:8" json:"currency"`
	Type          PurchaseType   `gorm:"index;size:16;not null" json:"type"`
	Status        PurchaseStatus `gorm:"index;size:16;not null" json:"status"`
	PurchasedAt   time.Time      `gorm:"index;not null" json:"purchasedAt"`
	ExpiresAt     *time.Time     `gorm:"index" json:"expiresAt,omitempty"`
	Platform      string         `gorm:"size:16" json:"platform"`
	ReceiptData   string         `json:"receiptData,omitempty"`
}

// Active reports whether the record is a subscription that has not yet
// expired.
func (r PurchaseRecord) Active(now time.Time) bool {
	return r.Type == PurchaseSubscription && r.ExpiresAt != nil && r.ExpiresAt.After(now)
}

// SubscriptionPlan describes one entry of the product catalogue.
type SubscriptionPlan struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Tier      SubscriptionTier `json:"tier"`
	Price     float64          `json:"price"`
	Currency  string           `json:"currency"`
	Period    BillingPeriod    `json:"period"`
	TrialDays int              `json:"trialDays,omitempty"`
	Savings   string           `json:"savings,omitempty"`
	Features  []string         `json:"features"`
}

// Duration returns the length of one billing period.
func (p SubscriptionPlan) Duration() time.Duration {
	if p.Period == PeriodAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

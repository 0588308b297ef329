// Package entitlement tracks what the user has paid for: the product
// catalogue, the platform purchase sheet boundary, a device-local purchase
// ledger and the subscription tier derived from it.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/gateway"
	"github.com/teachlink/client-core/internal/observability"
)

// ReceiptValidation is the server's verdict on a store receipt.
type ReceiptValidation struct {
	Valid     bool                    `json:"valid"`
	Expiry    *time.Time              `json:"expiry,omitempty"`
	ProductID string                  `json:"productId,omitempty"`
	Tier      domain.SubscriptionTier `json:"tier,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

type Manager struct {
	ledger   *Ledger
	sheet    PurchaseSheet
	api      *gateway.Client
	platform string
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(ledger *Ledger, sheet PurchaseSheet, api *gateway.Client, platform string, logger *slog.Logger) *Manager {
	return &Manager{
		ledger:   ledger,
		sheet:    sheet,
		api:      api,
		platform: platform,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// PurchaseSubscription presents the purchase sheet for a subscription plan
// and, on approval, appends a completed ledger record and moves the cached
// tier to the plan's tier. A dismissed sheet returns (nil, nil): the user
// changing their mind is not a failure.
func (m *Manager) PurchaseSubscription(ctx context.Context, productID string) (*domain.PurchaseRecord, error) {
	plan, ok := FindPlan(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	result, err := m.presentSheet(ctx, productID, string(domain.PurchaseSubscription))
	if err != nil || result == nil {
		return nil, err
	}

	m.verifyReceipt(ctx, result.Receipt, productID)

	purchasedAt := m.now().UTC()
	expiresAt := purchasedAt.Add(plan.Duration())
	record := domain.PurchaseRecord{
		ID:            uuid.NewString(),
		ProductID:     productID,
		TransactionID: result.TransactionID,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		Type:          domain.PurchaseSubscription,
		Status:        domain.PurchaseCompleted,
		PurchasedAt:   purchasedAt,
		ExpiresAt:     &expiresAt,
		Platform:      m.platform,
		ReceiptData:   result.Receipt,
	}
	if err := m.ledger.Append(ctx, record); err != nil {
		observability.RecordPurchaseEvent(string(domain.PurchaseSubscription), "ledger_failure")
		return nil, err
	}
	if err := m.ledger.SetTier(ctx, plan.Tier); err != nil {
		return nil, err
	}
	observability.RecordPurchaseEvent(string(domain.PurchaseSubscription), "completed")
	observability.Audit(ctx, "purchase.completed", "product_id", productID, "transaction_id", record.TransactionID, "tier", string(plan.Tier))
	return &record, nil
}

// PurchaseProduct runs the one-time purchase path. The record carries no
// expiry and the subscription tier is unchanged.
func (m *Manager) PurchaseProduct(ctx context.Context, productID string) (*domain.PurchaseRecord, error) {
	if productID != ProductCourseBundle {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	result, err := m.presentSheet(ctx, productID, string(domain.PurchaseOneTime))
	if err != nil || result == nil {
		return nil, err
	}

	m.verifyReceipt(ctx, result.Receipt, productID)

	record := domain.PurchaseRecord{
		ID:            uuid.NewString(),
		ProductID:     productID,
		TransactionID: result.TransactionID,
		Amount:        CourseBundlePrice,
		Currency:      "USD",
		Type:          domain.PurchaseOneTime,
		Status:        domain.PurchaseCompleted,
		PurchasedAt:   m.now().UTC(),
		Platform:      m.platform,
		ReceiptData:   result.Receipt,
	}
	if err := m.ledger.Append(ctx, record); err != nil {
		observability.RecordPurchaseEvent(string(domain.PurchaseOneTime), "ledger_failure")
		return nil, err
	}
	observability.RecordPurchaseEvent(string(domain.PurchaseOneTime), "completed")
	observability.Audit(ctx, "purchase.completed", "product_id", productID, "transaction_id", record.TransactionID)
	return &record, nil
}

// RestorePurchases re-derives the tier from the local ledger and marks every
// previously completed record as restored. It returns the number of
// restorable records; zero simply means there is nothing to restore. Running
// it twice is safe: restored records stay restorable and the derived tier is
// unchanged.
func (m *Manager) RestorePurchases(ctx context.Context) (int, error) {
	history, err := m.ledger.History(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	var restorable []domain.PurchaseRecord
	tier := domain.TierFree
	var latest time.Time
	for _, rec := range history {
		if rec.Status != domain.PurchaseCompleted && rec.Status != domain.PurchaseRestored {
			continue
		}
		restorable = append(restorable, rec)
		if !rec.Active(now) || rec.PurchasedAt.Before(latest) {
			continue
		}
		if plan, ok := FindPlan(rec.ProductID); ok {
			tier = plan.Tier
			latest = rec.PurchasedAt
		}
	}

	if err := m.ledger.SetTier(ctx, tier); err != nil {
		return 0, err
	}
	for _, rec := range restorable {
		if rec.Status == domain.PurchaseRestored {
			continue
		}
		if err := m.ledger.UpdateStatus(ctx, rec.ID, domain.PurchaseRestored); err != nil {
			return 0, err
		}
	}

	observability.RecordPurchaseEvent("restore", "completed")
	observability.Audit(ctx, "purchase.restored", "count", len(restorable), "tier", string(tier))
	return len(restorable), nil
}

// ValidateReceipt asks the server to verify a store receipt. The server
// checks it against Apple or Google before answering.
func (m *Manager) ValidateReceipt(ctx context.Context, receipt, productID string) (*ReceiptValidation, error) {
	body := map[string]string{
		"receipt":   receipt,
		"platform":  m.platform,
		"productId": productID,
	}
	var result ReceiptValidation
	if err := m.api.Do(ctx, http.MethodPost, "/payments/validate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubscriptionTier is a pure read of the cached tier; it never touches the
// network.
func (m *Manager) SubscriptionTier(ctx context.Context) domain.SubscriptionTier {
	return m.ledger.Tier(ctx)
}

// PurchaseHistory returns the ledger newest-first; it never touches the
// network.
func (m *Manager) PurchaseHistory(ctx context.Context) ([]domain.PurchaseRecord, error) {
	return m.ledger.History(ctx)
}

// ClearPaymentData wipes the ledger and the cached tier.
func (m *Manager) ClearPaymentData(ctx context.Context) error {
	if err := m.ledger.Clear(ctx); err != nil {
		return err
	}
	observability.Audit(ctx, "purchase.data_cleared")
	return nil
}

// presentSheet runs the purchase sheet and maps its outcome: nil result with
// nil error means the user dismissed the sheet.
func (m *Manager) presentSheet(ctx context.Context, productID, kind string) (*SheetResult, error) {
	result, err := m.sheet.Present(ctx, productID)
	if err != nil {
		observability.RecordPurchaseEvent(kind, "failure")
		return nil, fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}
	switch result.Outcome {
	case SheetCancelled:
		observability.RecordPurchaseEvent(kind, "cancelled")
		m.logger.Info("purchase sheet dismissed", "product_id", productID)
		return nil, nil
	case SheetFailed:
		observability.RecordPurchaseEvent(kind, "failure")
		return nil, fmt.Errorf("%w: store rejected %s", ErrPurchaseFailed, productID)
	}
	return &result, nil
}

// verifyReceipt validates best-effort during purchase finish. A server that
// cannot be reached must not lose a purchase the store already charged for,
// so failures are logged and the local record proceeds.
func (m *Manager) verifyReceipt(ctx context.Context, receipt, productID string) {
	result, err := m.ValidateReceipt(ctx, receipt, productID)
	if err != nil {
		m.logger.Warn("receipt validation unavailable", "product_id", productID, "error", err)
		return
	}
	if !result.Valid {
		m.logger.Warn("receipt rejected by server", "product_id", productID, "error", result.Error)
	}
}

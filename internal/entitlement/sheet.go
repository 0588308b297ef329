package entitlement

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// SheetOutcome is the result of presenting the platform purchase sheet.
// Dismissal by the user is a distinct outcome, never an error.
type SheetOutcome string

const (
	SheetApproved  SheetOutcome = "approved"
	SheetCancelled SheetOutcome = "cancelled"
	SheetFailed    SheetOutcome = "failed"
)

// SheetResult carries the store's answer for an approved purchase.
type SheetResult struct {
	Outcome       SheetOutcome
	TransactionID string
	Receipt       string
}

// PurchaseSheet is the platform in-app purchase boundary. Presentation hands
// control to store-owned UI: the user can dismiss it, but it cannot be
// interrupted programmatically mid-flight.
type PurchaseSheet interface {
	Present(ctx context.Context, productID string) (SheetResult, error)
}

// DevSheet approves every purchase with a synthetic transaction and receipt.
// It stands in for the store connection in the CLI dev loop.
type DevSheet struct{}

func (DevSheet) Present(_ context.Context, productID string) (SheetResult, error) {
	txn := "txn_" + uuid.NewString()
	receipt := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", productID, txn)))
	return SheetResult{Outcome: SheetApproved, TransactionID: txn, Receipt: receipt}, nil
}

// StaticSheet returns a fixed result, for tests.
type StaticSheet struct {
	Result SheetResult
	Err    error
}

func (s *StaticSheet) Present(context.Context, string) (SheetResult, error) {
	return s.Result, s.Err
}

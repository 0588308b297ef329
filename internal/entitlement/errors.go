package entitlement

import "errors"

var (
	// ErrUnknownProduct means the product identifier is not in the catalogue.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrPurchaseFailed is a hard store failure, distinct from the user
	// dismissing the purchase sheet (which is a non-error no-op).
	ErrPurchaseFailed = errors.New("purchase failed")
)

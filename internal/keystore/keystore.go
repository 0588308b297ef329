// Package keystore is the device-local credential store: an encrypted
// key-value table holding token material, the cached user and the handful of
// preference flags that outlive a session.
package keystore

import "context"

// Store is the raw key-value contract. Reads degrade to absence: a failed or
// undecryptable read yields the empty string, never an error. Writes
// propagate failures so callers can abort whatever the write was part of.
// Operations are individually atomic; there is no multi-key transaction.
type Store interface {
	Get(ctx context.Context, key string) string
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	ClearAll(ctx context.Context) error
}

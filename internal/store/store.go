// Package store archives completed sessions. A session id is either live
// (owned by the registry) or archived here; the two sets never overlap.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound reports that no archived record exists for the id.
var ErrNotFound = errors.New("session record not found")

// Record is the immutable snapshot of a concluded session: the terminal
// game state plus the rendered document served to read-only viewers.
type Record struct {
	State    json.RawMessage
	Document []byte
	SavedAt  time.Time
}

// Store persists session records keyed by session id.
type Store interface {
	Get(ctx context.Context, id uint64) (Record, error)
	Put(ctx context.Context, id uint64, rec Record) error
	// MaxID reports the highest archived session id, 0 when the store is
	// empty. Id issuers start above it so archived ids are never reused.
	MaxID(ctx context.Context) (uint64, error)
	Close() error
}

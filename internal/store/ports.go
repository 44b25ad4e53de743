// Package store declares the persistence port the core depends on. The whole
// state document is the unit of I/O: adapters read it in full and overwrite it
// in full, never partially.
package store

import (
	"context"

	"roomie/internal/core"
)

// DocumentStore is the only boundary between the core and its storage.
type DocumentStore interface {
	// Load returns the stored document, or an empty one when no prior state
	// exists. Malformed stored content is a load failure, not a crash.
	Load(ctx context.Context) (core.Document, error)

	// Save serializes the full document and replaces the stored content
	// entirely. Failures are reported to the caller, never retried here.
	Save(ctx context.Context, doc core.Document) error
}

package cart

import "context"

// Store persists cart aggregates by session key.
type Store interface {
	// Load returns ErrNotFound when the key has no record.
	Load(ctx context.Context, sessionKey string) (*Aggregate, error)
	// Save replaces the whole record for agg.SessionKey.
	Save(ctx context.Context, agg *Aggregate) error
	// Delete drops the record for sessionKey. Missing keys are not an error.
	Delete(ctx context.Context, sessionKey string) error
}

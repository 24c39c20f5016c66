package history

import "context"

// Store persists history items.
type Store interface {
	// AppendHistory inserts items; a batch is written together.
	AppendHistory(ctx context.Context, items []*Item) error
	// ListHistory returns a subject's items newest first.
	ListHistory(ctx context.Context, subjectID string, opts ListOpts) ([]*Item, error)
}

// Package history records completed simplifications for subjects whose
// tier includes a history.
package history

import (
	"time"

	"github.com/xraph/entitle/id"
)

const (
	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 20
	// MaxLimit caps the page size.
	MaxLimit = 100
)

// Item is one completed action. Items are append-only.
type Item struct {
	ID         id.HistoryID `json:"id"`
	SubjectID  string       `json:"subject_id"`
	InputText  string       `json:"input_text"`
	OutputText string       `json:"output_text"`
	Mode       string       `json:"mode"`
	SourceURL  string       `json:"source_url,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ListOpts pages through a subject's history, newest first.
type ListOpts struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum page size and clamps a
// negative offset.
func (o ListOpts) Normalize() ListOpts {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultLimit
	case o.Limit > MaxLimit:
		o.Limit = MaxLimit
	}
	o.Offset = max(0, o.Offset)
	return o
}

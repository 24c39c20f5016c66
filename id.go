package entitle

import "github.com/xraph/entitle/id"

// ID is the identifier type of history items and events.
type ID = id.ID

// HistoryID identifies a history item.
type HistoryID = id.HistoryID

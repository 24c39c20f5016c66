package entitle

import (
	"context"
	"time"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/plan"
)

func (e *Engine) historyAllowed(p plan.Plan) bool {
	return e.plans.Rank(p.ID) >= e.historyMinRank
}

// AppendHistory records item for the subject of v when v's tier keeps a
// history; gated subjects are skipped silently. With batching the item is
// queued and ErrHistoryBufferFull is returned when the queue is full;
// after Stop it returns ErrStoreClosed.
// Failures here must not fail the billable action they describe.
func (e *Engine) AppendHistory(ctx context.Context, v *entitlement.View, item *history.Item) error {
	if !v.HistoryEnabled {
		return nil
	}

	if item.ID.IsNil() {
		item.ID = id.NewHistoryID()
	}
	item.SubjectID = v.SubjectID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = e.now().UTC()
	}

	if !e.historyBatch {
		return storeErr("append history", e.store.AppendHistory(ctx, []*history.Item{item}))
	}

	select {
	case <-e.stopChan:
		return ErrStoreClosed
	default:
	}

	select {
	case e.historyBuffer <- item:
		return nil
	default:
		e.logger.Warn("history buffer full, dropping item", "subject_id", v.SubjectID)
		return ErrHistoryBufferFull
	}
}

// ListHistory returns the subject's history newest first. Subjects whose
// current tier does not keep a history get an empty list.
func (e *Engine) ListHistory(ctx context.Context, subjectID string, limit, offset int) ([]*history.Item, error) {
	v, err := e.Resolve(ctx, subjectID, "")
	if err != nil {
		return nil, err
	}
	if !v.HistoryEnabled {
		return []*history.Item{}, nil
	}

	items, err := e.store.ListHistory(ctx, subjectID, history.ListOpts{Limit: limit, Offset: offset}.Normalize())
	if err != nil {
		return nil, storeErr("list history", err)
	}
	if items == nil {
		items = []*history.Item{}
	}
	return items, nil
}

// historyFlushWorker writes queued history items to the store.
func (e *Engine) historyFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*history.Item, 0, e.historyBatchSize)
	ticker := time.NewTicker(e.historyFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final flush, including whatever is still queued.
		drain:
			for {
				select {
				case item := <-e.historyBuffer:
					batch = append(batch, item)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				e.flushHistoryBatch(ctx, batch)
			}
			return

		case item := <-e.historyBuffer:
			batch = append(batch, item)
			if len(batch) >= e.historyBatchSize {
				e.flushHistoryBatch(ctx, batch)
				batch = make([]*history.Item, 0, e.historyBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushHistoryBatch(ctx, batch)
				batch = make([]*history.Item, 0, e.historyBatchSize)
			}
		}
	}
}

func (e *Engine) flushHistoryBatch(ctx context.Context, batch []*history.Item) {
	start := time.Now()

	if err := e.store.AppendHistory(ctx, batch); err != nil {
		e.logger.Error("failed to flush history batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitHistoryFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed history batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

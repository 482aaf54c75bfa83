package formstore

import (
	"context"
	"errors"
)

// FieldMode says whether a collection currently holds raw ids or hydrated
// records.
type FieldMode int

const (
	ModeIDs FieldMode = iota
	ModeRecords
)

// Collection is an ordered query result. It starts in id mode (what queries
// and the query cache produce) and transforms lazily into record mode on
// demand. Len counts the current page; Total counts every match the query had
// before pagination, so Len <= Total always holds.
type Collection struct {
	mgr     *Manager
	mode    FieldMode
	ids     []int64
	records []*Record
	total   int64
}

func newIDCollection(m *Manager, ids []int64, total int64) *Collection {
	return &Collection{mgr: m, mode: ModeIDs, ids: ids, total: total}
}

// Mode returns the current representation mode.
func (c *Collection) Mode() FieldMode { return c.mode }

// Len returns the number of elements in this page.
func (c *Collection) Len() int {
	if c.mode == ModeRecords {
		return len(c.records)
	}
	return len(c.ids)
}

// Total returns the unpaginated match count of the originating query.
func (c *Collection) Total() int64 { return c.total }

// IDs returns the primary keys in order, in either mode.
func (c *Collection) IDs() []int64 {
	if c.mode == ModeIDs {
		return append([]int64(nil), c.ids...)
	}
	ids := make([]int64, 0, len(c.records))
	for _, rec := range c.records {
		ids = append(ids, rec.ID())
	}
	return ids
}

// Records returns the hydrated records. Nil unless in record mode.
func (c *Collection) Records() []*Record {
	if c.mode != ModeRecords {
		return nil
	}
	return append([]*Record(nil), c.records...)
}

// IDAt returns the id at position i in the current order.
func (c *Collection) IDAt(i int) int64 {
	if c.mode == ModeRecords {
		return c.records[i].ID()
	}
	return c.ids[i]
}

// RecordAt returns the record at position i. Nil in id mode.
func (c *Collection) RecordAt(i int) *Record {
	if c.mode != ModeRecords {
		return nil
	}
	return c.records[i]
}

// TransformIntoRecords hydrates the id list through the manager, preserving
// order. Ids whose rows vanished since the query ran are skipped. Calling it
// on a record-mode collection is a no-op; Total is never touched.
func (c *Collection) TransformIntoRecords(ctx context.Context) error {
	if c.mode == ModeRecords {
		return nil
	}
	records := make([]*Record, 0, len(c.ids))
	for _, id := range c.ids {
		rec, err := c.mgr.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logger.Debug().Str("kind", string(c.mgr.schema.Kind)).Int64("id", id).
				Msg("skipping vanished record during hydration")
			continue
		}
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	c.records = records
	c.ids = nil
	c.mode = ModeRecords
	return nil
}

// TransformIntoIDs collapses a record-mode collection back to its id list.
// Idempotent in id mode.
func (c *Collection) TransformIntoIDs() {
	if c.mode == ModeIDs {
		return
	}
	ids := make([]int64, 0, len(c.records))
	for _, rec := range c.records {
		ids = append(ids, rec.ID())
	}
	c.ids = ids
	c.records = nil
	c.mode = ModeIDs
}

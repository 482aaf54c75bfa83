package formstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// TranslationTable records old-id to new-id mappings per entity kind,
// accumulated across an entire duplication batch.
type TranslationTable map[Kind]map[int64]int64

func (t TranslationTable) add(kind Kind, oldID, newID int64) {
	m, ok := t[kind]
	if !ok {
		m = make(map[int64]int64)
		t[kind] = m
	}
	m[oldID] = newID
}

// Lookup returns the new id assigned to (kind, oldID) in this batch.
func (t TranslationTable) Lookup(kind Kind, oldID int64) (int64, bool) {
	newID, ok := t[kind][oldID]
	return newID, ok
}

// Kinds returns the kinds with at least one mapping, sorted for determinism.
func (t TranslationTable) Kinds() []Kind {
	kinds := make([]Kind, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DuplicateEvent describes one completed duplication.
type DuplicateEvent struct {
	Kind         Kind
	SourceID     int64
	NewID        int64
	Translations TranslationTable
}

// DuplicateListener is notified after a duplication completes successfully.
type DuplicateListener func(ctx context.Context, ev DuplicateEvent)

// Duplicator deep-copies an entity and its linked subtree in two passes.
//
// Pass 1 walks the tree parent-first, cloning each record (meta included)
// with its parent-link column rewritten through the translation table; the
// parent is always cloned before its children, so the rewrite never misses.
// Pass 2 runs once over the finished batch and rewrites schema-declared
// reference columns wherever the referenced entity was cloned in the same
// batch. References to entities outside the batch stay untouched, which is
// what keeps links to shared or external resources intact.
//
// There is no rollback. A failure aborts the walk and returns the partial
// translation table alongside ErrDuplicationIncomplete so the host can
// inspect or clean up what was inserted.
type Duplicator struct {
	reg *Registry

	mu        sync.RWMutex
	listeners []DuplicateListener
}

// OnComplete registers a listener fired after each successful duplication.
func (d *Duplicator) OnComplete(fn DuplicateListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Duplicate clones the entity and its duplicable subtree, returning the new
// root id and the full translation table.
func (d *Duplicator) Duplicate(ctx context.Context, kind Kind, id int64) (int64, TranslationTable, error) {
	mgr, err := d.reg.Manager(kind)
	if err != nil {
		return 0, nil, err
	}
	root, err := mgr.Get(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	translations := make(TranslationTable)
	newID, err := d.cloneSubtree(ctx, mgr, root, translations)
	if err != nil {
		return 0, translations, err
	}
	if err := d.fixupReferences(ctx, translations); err != nil {
		return newID, translations, err
	}
	logger.Info().Str("kind", string(kind)).Int64("source", id).Int64("clone", newID).
		Msg("duplication complete")
	d.notify(ctx, DuplicateEvent{Kind: kind, SourceID: id, NewID: newID, Translations: translations})
	return newID, translations, nil
}

func (d *Duplicator) cloneSubtree(ctx context.Context, mgr *Manager, rec *Record, translations TranslationTable) (int64, error) {
	newID, err := d.cloneRecord(ctx, mgr, rec, translations)
	if err != nil {
		return 0, err
	}
	for _, kind := range mgr.childOrder {
		if mgr.dupSkip[kind] {
			continue
		}
		child := mgr.children[kind]
		fk, ok := child.schema.ParentColumns[mgr.schema.Kind]
		if !ok {
			continue
		}
		col, err := child.Query(ctx, QueryVars{Number: -1, Filters: map[string]any{fk: rec.ID()}})
		if err != nil {
			return 0, fmt.Errorf("%w: listing %s children of %s %d: %v",
				ErrDuplicationIncomplete, kind, mgr.schema.Kind, rec.ID(), err)
		}
		if err := col.TransformIntoRecords(ctx); err != nil {
			return 0, fmt.Errorf("%w: loading %s children of %s %d: %v",
				ErrDuplicationIncomplete, kind, mgr.schema.Kind, rec.ID(), err)
		}
		for _, childRec := range col.Records() {
			if _, err := d.cloneSubtree(ctx, child, childRec, translations); err != nil {
				return 0, err
			}
		}
	}
	return newID, nil
}

// cloneRecord copies the declared columns of one record (the primary key is
// regenerated by the store), rewriting parent links through the table, then
// copies the meta rows onto the clone.
func (d *Duplicator) cloneRecord(ctx context.Context, mgr *Manager, rec *Record, translations TranslationTable) (int64, error) {
	fields := rec.Values()
	for parentKind, fk := range mgr.schema.ParentColumns {
		if mapped, ok := translations.Lookup(parentKind, toInt64(fields[fk])); ok {
			fields[fk] = mapped
		}
	}
	newID, err := mgr.Add(ctx, fields)
	if err != nil {
		return 0, fmt.Errorf("%w: cloning %s %d: %v", ErrDuplicationIncomplete, mgr.schema.Kind, rec.ID(), err)
	}
	translations.add(mgr.schema.Kind, rec.ID(), newID)
	if err := d.copyMeta(ctx, mgr, rec.ID(), newID); err != nil {
		return 0, err
	}
	return newID, nil
}

func (d *Duplicator) copyMeta(ctx context.Context, mgr *Manager, sourceID, cloneID int64) error {
	all, err := mgr.allMeta(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("%w: reading meta of %s %d: %v", ErrDuplicationIncomplete, mgr.schema.Kind, sourceID, err)
	}
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range all[key] {
			if err := mgr.AddMeta(ctx, cloneID, key, value); err != nil {
				return fmt.Errorf("%w: copying meta %q of %s %d: %v",
					ErrDuplicationIncomplete, key, mgr.schema.Kind, sourceID, err)
			}
		}
	}
	return nil
}

// fixupReferences is pass 2: for every cloned record of a kind that declares
// reference columns, parse each column as an id and overwrite it when the
// referenced entity has a mapping in the batch.
func (d *Duplicator) fixupReferences(ctx context.Context, translations TranslationTable) error {
	for _, kind := range d.reg.kinds {
		mgr := d.reg.managers[kind]
		if len(mgr.schema.RefColumns) == 0 {
			continue
		}
		clones := translations[kind]
		if len(clones) == 0 {
			continue
		}
		refColumns := make([]string, 0, len(mgr.schema.RefColumns))
		for column := range mgr.schema.RefColumns {
			refColumns = append(refColumns, column)
		}
		sort.Strings(refColumns)

		cloneIDs := make([]int64, 0, len(clones))
		for _, newID := range clones {
			cloneIDs = append(cloneIDs, newID)
		}
		sort.Slice(cloneIDs, func(i, j int) bool { return cloneIDs[i] < cloneIDs[j] })

		for _, cloneID := range cloneIDs {
			rec, err := mgr.Get(ctx, cloneID)
			if err != nil {
				return fmt.Errorf("%w: reloading %s %d for reference fixup: %v",
					ErrDuplicationIncomplete, kind, cloneID, err)
			}
			updates := make(map[string]any)
			for _, column := range refColumns {
				refKind := mgr.schema.RefColumns[column]
				raw, err := rec.Get(column)
				if err != nil {
					continue
				}
				oldRef, ok := referencedID(raw)
				if !ok {
					continue
				}
				mapped, ok := translations.Lookup(refKind, oldRef)
				if !ok {
					// Points outside the batch; leave it alone.
					continue
				}
				if col, ok := mgr.schema.column(column); ok && col.Type != TypeInt {
					updates[column] = strconv.FormatInt(mapped, 10)
				} else {
					updates[column] = mapped
				}
			}
			if len(updates) == 0 {
				continue
			}
			if _, err := mgr.Update(ctx, cloneID, updates); err != nil {
				return fmt.Errorf("%w: rewriting references of %s %d: %v",
					ErrDuplicationIncomplete, kind, cloneID, err)
			}
		}
	}
	return nil
}

func (d *Duplicator) notify(ctx context.Context, ev DuplicateEvent) {
	d.mu.RLock()
	listeners := append([]DuplicateListener(nil), d.listeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

// referencedID interprets a reference column value as an entity id. Values
// that do not parse as a positive integer are opaque and never rewritten.
func referencedID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, x > 0
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil && n > 0
	default:
		n := toInt64(v)
		return n, n > 0
	}
}

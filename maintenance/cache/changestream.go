package cache

// ChangeTag distinguishes an upsert row from a removal row in a
// ChangeStream.
type ChangeTag int

const (
	ChangeUpsert ChangeTag = iota
	ChangeDelete
)

// Change is one row of a sync source's diff against the cache's
// current state: RowID identifies the entity, Tag says whether it was
// added/updated or removed, and Columns carries its field values
// (ignored for ChangeDelete except where a sync path needs them to
// locate the owning parent).
type Change struct {
	RowID   uint64
	Tag     ChangeTag
	Columns map[string]any
}

// ChangeStream is a batch of Change rows handed to a Sync* entry
// point. Every Sync* method processes ChangeUpsert rows before
// ChangeDelete rows, regardless of the stream's own ordering.
type ChangeStream []Change

func columnUint64(cols map[string]any, key string) uint64 {
	switch v := cols[key].(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

func columnInt64(cols map[string]any, key string) int64 {
	switch v := cols[key].(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func columnInt(cols map[string]any, key string) int {
	switch v := cols[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return 0
	}
}

func columnString(cols map[string]any, key string) string {
	s, _ := cols[key].(string)
	return s
}

func splitByTag(stream ChangeStream) (upserts, deletes []Change) {
	for _, ch := range stream {
		if ch.Tag == ChangeDelete {
			deletes = append(deletes, ch)
		} else {
			upserts = append(upserts, ch)
		}
	}
	return upserts, deletes
}

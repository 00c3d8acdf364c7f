// internal/syncer/upsert.go
package syncer

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// DefaultChunkSize bounds how many staged records share one transaction.
const DefaultChunkSize = 1000

var (
	// ErrCountMismatch means created+updated+unchanged did not add up to the
	// number of staged records. That is a bug in key construction, not a
	// data-quality issue, so the batch aborts.
	ErrCountMismatch = errors.New("upsert: processed count does not match staged count")
	// ErrDuplicateKey means one natural key resolved to more than one
	// persisted row.
	ErrDuplicateKey = errors.New("upsert: natural key matches multiple rows")
)

// Descriptor drives the generic upsert for one entity kind. It is resolved
// once per entity, never passed around as ad hoc field-name lists.
type Descriptor[T any] struct {
	Name string
	// Key renders the natural key as a canonical string, so identifier
	// representation differences never cause a miss.
	Key func(*T) string
	// Fetch loads all persisted rows matching the chunk's natural keys in
	// one batched query.
	Fetch func(tx *gorm.DB, chunk []*T) ([]*T, error)
	// Changed compares updatable fields at the entity's defined precision.
	Changed func(existing, staged *T) bool
	// Assign copies the updatable fields onto the existing row.
	Assign func(existing, staged *T)
	// OnCreate fills defaults for fields outside the staging record's scope.
	// Optional.
	OnCreate func(*T)
}

// Counts reports what one Upsert call did. Unchanged is kept distinct so
// callers can decide whether untouched rows belong in their totals.
type Counts struct {
	Created   int
	Updated   int
	Unchanged int
}

func (c Counts) total() int { return c.Created + c.Updated + c.Unchanged }

// Upsert applies staged records in chunks, each inside its own transaction.
// One bad chunk does not roll back earlier ones; a failure part-way through
// leaves prior chunks durably applied and reports partial counts.
//
// Matched rows are rewritten in place: after the call every staged pointer
// holds the persisted row, surrogate id included.
func Upsert[T any](gdb *gorm.DB, d Descriptor[T], staged []*T, chunkSize int) (Counts, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var counts Counts
	for start := 0; start < len(staged); start += chunkSize {
		end := start + chunkSize
		if end > len(staged) {
			end = len(staged)
		}
		c, err := upsertChunk(gdb, d, staged[start:end])
		counts.Created += c.Created
		counts.Updated += c.Updated
		counts.Unchanged += c.Unchanged
		if err != nil {
			return counts, err
		}
	}
	if counts.total() != len(staged) {
		return counts, fmt.Errorf("%w: %s: staged=%d created=%d updated=%d unchanged=%d",
			ErrCountMismatch, d.Name, len(staged), counts.Created, counts.Updated, counts.Unchanged)
	}
	return counts, nil
}

func upsertChunk[T any](gdb *gorm.DB, d Descriptor[T], chunk []*T) (Counts, error) {
	var counts Counts
	err := gdb.Transaction(func(tx *gorm.DB) error {
		existing, err := d.Fetch(tx, chunk)
		if err != nil {
			return fmt.Errorf("%s: fetch existing: %w", d.Name, err)
		}
		byKey := make(map[string]*T, len(existing))
		for _, ex := range existing {
			k := d.Key(ex)
			if _, dup := byKey[k]; dup {
				return fmt.Errorf("%w: %s key=%s", ErrDuplicateKey, d.Name, k)
			}
			byKey[k] = ex
		}

		var creates []*T
		for _, sp := range chunk {
			ex, ok := byKey[d.Key(sp)]
			if !ok {
				if d.OnCreate != nil {
					d.OnCreate(sp)
				}
				creates = append(creates, sp)
				continue
			}
			if d.Changed(ex, sp) {
				d.Assign(ex, sp)
				if err := tx.Save(ex).Error; err != nil {
					return fmt.Errorf("%s: update: %w", d.Name, err)
				}
				counts.Updated++
			} else {
				counts.Unchanged++
			}
			// hand the persisted row (with its id) back to the caller
			*sp = *ex
		}

		if len(creates) > 0 {
			if err := tx.Create(creates).Error; err != nil {
				return fmt.Errorf("%s: create batch: %w", d.Name, err)
			}
			counts.Created += len(creates)
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

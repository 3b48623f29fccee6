package etw

import (
	"fmt"
)

// Binder turns raw records into decoded events by matching them against the
// declared shapes and decoding matches with the live schema resolved through
// the catalog. A Binder is safe for use from the processing goroutine and any
// other; the shape set is immutable and the catalog locks internally.
type Binder struct {
	shapes  *ShapeSet
	catalog *Catalog
}

// NewBinder builds a binder over the given shapes and catalog.
func NewBinder(shapes *ShapeSet, catalog *Catalog) *Binder {
	return &Binder{shapes: shapes, catalog: catalog}
}

// Bind classifies one record. Records no shape claims come back unmatched
// with the raw record attached. For claimed records the declared version is
// checked first: a record older than the shape cannot be decoded with the
// shape's layout assumptions and fails with ErrSchemaVersionTooOld before any
// decoding. Matching records are decoded against the live schema for the
// record's version, never against the shape's compile-time layout. Bind never
// returns nil; per-record failures travel in the event's Err field.
func (b *Binder) Bind(rec *Record) *DecodedEvent {
	ev := &DecodedEvent{Record: rec}

	shape, ok := b.shapes.Lookup(rec.Header.ProviderGUID, rec.Header.EventID)
	if !ok {
		return ev
	}
	ev.Shape = shape

	if rec.Header.Version < shape.Version {
		ev.Err = fmt.Errorf("%w: %s is version %d, record carries %d",
			ErrSchemaVersionTooOld, shape.Name, shape.Version, rec.Header.Version)
		return ev
	}

	schema, err := b.catalog.ResolveSchema(rec.Header.ProviderGUID, rec.Header.EventID, rec.Header.Version)
	if err != nil {
		ev.Err = err
		return ev
	}
	if err := checkPrefix(shape, schema); err != nil {
		ev.Err = err
		return ev
	}

	pointerSize := int(rec.Header.PointerSize)
	if pointerSize == 0 {
		pointerSize = defaultPointerSize
	}
	ev.Fields, ev.Err = decodeFields(rec.Data, schema.Fields, pointerSize)
	return ev
}

// checkPrefix verifies the superset convention: every field the shape
// declared must appear in the live schema, in the same position with the same
// name and in-type. Newer schemas appending fields is fine; reordering or
// retyping what the shape knows is not.
func checkPrefix(shape *EventShape, schema *EventSchema) error {
	if len(schema.Fields) < len(shape.Fields) {
		return fmt.Errorf("%w: %s declares %d fields, live schema v%d has %d",
			ErrLayoutMismatch, shape.Name, len(shape.Fields), schema.Version, len(schema.Fields))
	}
	for i := range shape.Fields {
		want, got := &shape.Fields[i], &schema.Fields[i]
		if want.Name != got.Name || want.InType != got.InType {
			return fmt.Errorf("%w: %s field %d is %q %s, live schema v%d has %q %s",
				ErrLayoutMismatch, shape.Name, i, want.Name, want.InType,
				schema.Version, got.Name, got.InType)
		}
	}
	return nil
}

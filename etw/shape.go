package etw

import (
	"fmt"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// EventShape is a caller-declared expectation about one event: the provider
// and event id it comes from, the lowest provider version the caller can
// decode, and the fields the caller intends to read. The shape is a claim,
// not a layout; field offsets are always re-derived from the live schema at
// decode time.
type EventShape struct {
	Name         string
	ProviderGUID winguid.GUID
	EventID      uint16

	// Version is the minimum provider version this shape understands.
	// Records carrying an older version are rejected rather than decoded
	// with layout assumptions that do not hold for them.
	Version uint8

	// Fields is the layout as of Version. The live schema must carry these
	// fields, same names and in-types, as a prefix; newer versions may
	// append more.
	Fields []FieldDescriptor
}

type shapeKey struct {
	guid winguid.GUID
	id   uint16
}

// ShapeSet is the closed registry of declared shapes a Binder consults. It is
// built once before processing starts and never mutated afterwards, so
// lookups need no locking.
type ShapeSet struct {
	shapes map[shapeKey]*EventShape
}

// NewShapeSet builds a registry from the given shapes. Two shapes claiming
// the same (provider, event id) pair are a programming error and rejected.
func NewShapeSet(shapes ...EventShape) (*ShapeSet, error) {
	set := &ShapeSet{shapes: make(map[shapeKey]*EventShape, len(shapes))}
	for i := range shapes {
		s := shapes[i]
		key := shapeKey{guid: s.ProviderGUID, id: s.EventID}
		if prev, ok := set.shapes[key]; ok {
			return nil, fmt.Errorf("shape %q and %q both claim provider %s event %d",
				prev.Name, s.Name, s.ProviderGUID.String(), s.EventID)
		}
		set.shapes[key] = &s
	}
	return set, nil
}

// Lookup returns the shape claiming the given provider and event id, if any.
func (s *ShapeSet) Lookup(guid winguid.GUID, eventID uint16) (*EventShape, bool) {
	shape, ok := s.shapes[shapeKey{guid: guid, id: eventID}]
	return shape, ok
}

// Len returns the number of declared shapes.
func (s *ShapeSet) Len() int { return len(s.shapes) }

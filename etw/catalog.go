package etw

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// MetadataSource is where schemas come from. On Windows the system TDH
// service implements it; tests substitute in-memory sources.
type MetadataSource interface {
	// Providers lists the registered providers.
	Providers() ([]Provider, error)

	// Events returns every event schema the provider publishes, all ids
	// and versions.
	Events(guid winguid.GUID) ([]EventSchema, error)
}

// Catalog caches provider metadata so that schema resolution on the hot
// decode path never re-queries the source. Entries are filled on first use,
// per provider, and kept for the catalog's lifetime; provider registration
// changes after the fill are not observed. Safe for concurrent use.
type Catalog struct {
	source MetadataSource

	mu     sync.RWMutex
	events map[winguid.GUID][]EventSchema
}

// NewCatalog builds a catalog over the given source.
func NewCatalog(source MetadataSource) *Catalog {
	return &Catalog{
		source: source,
		events: make(map[winguid.GUID][]EventSchema),
	}
}

// ListProviders enumerates registered providers, ordered by name then GUID.
// The listing is not cached; it serves discovery, not the decode path.
func (c *Catalog) ListProviders() ([]Provider, error) {
	providers, err := c.source.Providers()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating providers: %v", ErrMetadataUnavailable, err)
	}
	slices.SortFunc(providers, func(a, b Provider) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.GUID.String(), b.GUID.String())
	})
	return providers, nil
}

// ListEvents returns the provider's event schemas ordered by id then
// version, optionally restricted to the given event ids. A provider with no
// published schemas, or a filter matching none of them, is ErrNotFound.
// Results come from the cache after the first call for a provider.
func (c *Catalog) ListEvents(guid winguid.GUID, eventIDs ...uint16) ([]EventSchema, error) {
	schemas, err := c.providerEvents(guid)
	if err != nil {
		return nil, err
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("%w: provider %s publishes no event schemas",
			ErrNotFound, guid.String())
	}
	if len(eventIDs) == 0 {
		return schemas, nil
	}
	wanted := make(map[uint16]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = struct{}{}
	}
	filtered := make([]EventSchema, 0, len(schemas))
	for _, s := range schemas {
		if _, ok := wanted[s.EventID]; ok {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: provider %s publishes none of the requested event ids",
			ErrNotFound, guid.String())
	}
	return filtered, nil
}

// ResolveSchema returns the schema for one event at the given version. An
// exact version match wins; failing that, the highest published version not
// above the requested one is used, since newer records remain decodable with
// the latest layout at or below them. No schema at or below the requested
// version is ErrNotFound.
func (c *Catalog) ResolveSchema(guid winguid.GUID, eventID uint16, version uint8) (*EventSchema, error) {
	schemas, err := c.providerEvents(guid)
	if err != nil {
		return nil, err
	}

	var best *EventSchema
	for i := range schemas {
		s := &schemas[i]
		if s.EventID != eventID || s.Version > version {
			continue
		}
		if s.Version == version {
			return s, nil
		}
		if best == nil || s.Version > best.Version {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: provider %s has no schema for event %d at or below version %d",
			ErrNotFound, guid.String(), eventID, version)
	}
	return best, nil
}

func (c *Catalog) providerEvents(guid winguid.GUID) ([]EventSchema, error) {
	c.mu.RLock()
	cached, ok := c.events[guid]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.events[guid]; ok {
		return cached, nil
	}

	schemas, err := c.source.Events(guid)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s: %v", ErrMetadataUnavailable, guid.String(), err)
	}
	slices.SortFunc(schemas, func(a, b EventSchema) int {
		if a.EventID != b.EventID {
			return int(a.EventID) - int(b.EventID)
		}
		return int(a.Version) - int(b.Version)
	})
	c.events[guid] = schemas
	logger.Debug().Str("provider", guid.String()).Int("schemas", len(schemas)).Msg("cached provider metadata")
	return schemas, nil
}

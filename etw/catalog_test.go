package etw

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

var (
	testProviderGUID = winguid.MustParse("{2A576B87-09A7-520E-C21A-4942F0271D67}")
	otherGUID        = winguid.MustParse("{5770385F-C22A-43E0-BF4C-06F5698FFBD9}")
)

type fakeSource struct {
	providers  []Provider
	events     map[winguid.GUID][]EventSchema
	err        error
	eventCalls int
}

func (f *fakeSource) Providers() ([]Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.providers, nil
}

func (f *fakeSource) Events(guid winguid.GUID) ([]EventSchema, error) {
	f.eventCalls++
	if f.err != nil {
		return nil, f.err
	}
	schemas, ok := f.events[guid]
	if !ok {
		return nil, nil
	}
	return schemas, nil
}

func testSchemas() map[winguid.GUID][]EventSchema {
	return map[winguid.GUID][]EventSchema{
		testProviderGUID: {
			{
				ProviderGUID: testProviderGUID,
				EventID:      1101,
				Version:      1,
				Fields:       []FieldDescriptor{{Name: "Status", InType: InTypeUint32}},
			},
			{
				ProviderGUID: testProviderGUID,
				EventID:      1101,
				Version:      3,
				Fields: []FieldDescriptor{
					{Name: "Status", InType: InTypeUint32},
					{Name: "Reason", InType: InTypeUint16},
				},
			},
			{
				ProviderGUID: testProviderGUID,
				EventID:      1102,
				Version:      0,
				Fields:       []FieldDescriptor{{Name: "Image", InType: InTypeUnicodeString}},
			},
		},
	}
}

func TestCatalogCachesProviderEvents(t *testing.T) {
	source := &fakeSource{events: testSchemas()}
	catalog := NewCatalog(source)

	first, err := catalog.ListEvents(testProviderGUID)
	require.NoError(t, err)
	second, err := catalog.ListEvents(testProviderGUID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.eventCalls, "second listing must come from the cache")
}

func TestCatalogListEventsSorted(t *testing.T) {
	source := &fakeSource{events: map[winguid.GUID][]EventSchema{
		testProviderGUID: {
			{ProviderGUID: testProviderGUID, EventID: 1102, Version: 0},
			{ProviderGUID: testProviderGUID, EventID: 1101, Version: 3},
			{ProviderGUID: testProviderGUID, EventID: 1101, Version: 1},
		},
	}}
	catalog := NewCatalog(source)

	schemas, err := catalog.ListEvents(testProviderGUID)
	require.NoError(t, err)
	require.Len(t, schemas, 3)

	assert.Equal(t, uint16(1101), schemas[0].EventID)
	assert.Equal(t, uint8(1), schemas[0].Version)
	assert.Equal(t, uint8(3), schemas[1].Version)
	assert.Equal(t, uint16(1102), schemas[2].EventID)
}

func TestCatalogListEventsFilteredByID(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	schemas, err := catalog.ListEvents(testProviderGUID, 1102)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, uint16(1102), schemas[0].EventID)
}

func TestCatalogListEventsUnknownProvider(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	schemas, err := catalog.ListEvents(otherGUID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, schemas)
}

func TestCatalogListEventsFilterMatchesNothing(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	schemas, err := catalog.ListEvents(testProviderGUID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, schemas)
}

func TestCatalogResolveExactVersion(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	schema, err := catalog.ResolveSchema(testProviderGUID, 1101, 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), schema.Version)
	assert.Len(t, schema.Fields, 2)
}

func TestCatalogResolveHighestVersionAtOrBelow(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	schema, err := catalog.ResolveSchema(testProviderGUID, 1101, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), schema.Version)
}

func TestCatalogResolveNotFound(t *testing.T) {
	catalog := NewCatalog(&fakeSource{events: testSchemas()})

	_, err := catalog.ResolveSchema(testProviderGUID, 1101, 0)
	assert.ErrorIs(t, err, ErrNotFound, "no published version at or below the requested one")

	_, err = catalog.ResolveSchema(testProviderGUID, 9999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogMetadataUnavailable(t *testing.T) {
	catalog := NewCatalog(&fakeSource{err: errors.New("service offline")})

	_, err := catalog.ListEvents(testProviderGUID)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)

	_, err = catalog.ListProviders()
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestCatalogMetadataErrorIsNotCached(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("transient")}
	catalog := NewCatalog(source)

	_, err := catalog.ListEvents(testProviderGUID)
	require.ErrorIs(t, err, ErrMetadataUnavailable)

	source.err = nil
	source.events = testSchemas()

	schemas, err := catalog.ListEvents(testProviderGUID)
	require.NoError(t, err)
	assert.NotEmpty(t, schemas)
}

func TestCatalogListProvidersSorted(t *testing.T) {
	catalog := NewCatalog(&fakeSource{providers: []Provider{
		{GUID: otherGUID, Name: "Zeta-Provider"},
		{GUID: testProviderGUID, Name: "Alpha-Provider"},
	}})

	providers, err := catalog.ListProviders()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "Alpha-Provider", providers[0].Name)
	assert.Equal(t, "Zeta-Provider", providers[1].Name)
}

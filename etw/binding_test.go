package etw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

func statusShape(version uint8) EventShape {
	return EventShape{
		Name:         "ConnectionStatus",
		ProviderGUID: testProviderGUID,
		EventID:      1101,
		Version:      version,
		Fields:       []FieldDescriptor{{Name: "Status", InType: InTypeUint32}},
	}
}

func newTestBinder(t *testing.T, shapes ...EventShape) *Binder {
	t.Helper()
	set, err := NewShapeSet(shapes...)
	require.NoError(t, err)
	return NewBinder(set, NewCatalog(&fakeSource{events: testSchemas()}))
}

func statusRecord(version uint8, data []byte) *Record {
	return &Record{
		Header: RecordHeader{
			ProviderGUID: testProviderGUID,
			EventID:      1101,
			Version:      version,
		},
		Data: data,
	}
}

func TestShapeSetRejectsDuplicateClaims(t *testing.T) {
	_, err := NewShapeSet(statusShape(1), statusShape(2))
	assert.Error(t, err)
}

func TestBindMatchedEvent(t *testing.T) {
	binder := newTestBinder(t, statusShape(1))

	ev := binder.Bind(statusRecord(1, le32(42)))
	require.True(t, ev.Matched())
	require.NoError(t, ev.Err)

	status, ok := ev.Field("Status")
	require.True(t, ok)
	value, err := status.Uint(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)
}

func TestBindUnmatchedIsNotAnError(t *testing.T) {
	binder := newTestBinder(t, statusShape(1))

	rec := &Record{Header: RecordHeader{ProviderGUID: otherGUID, EventID: 1}}
	ev := binder.Bind(rec)

	assert.False(t, ev.Matched())
	assert.NoError(t, ev.Err)
	assert.Same(t, rec, ev.Record)
}

func TestBindRejectsOlderRecordVersion(t *testing.T) {
	binder := newTestBinder(t, statusShape(1))

	ev := binder.Bind(statusRecord(0, le32(42)))
	require.True(t, ev.Matched())
	assert.ErrorIs(t, ev.Err, ErrSchemaVersionTooOld)
	assert.Nil(t, ev.Fields, "no decode may happen for a version-rejected record")
}

func TestBindNewerRecordDecodesWithLiveSchema(t *testing.T) {
	binder := newTestBinder(t, statusShape(1))

	// version 3 appends Reason behind Status
	ev := binder.Bind(statusRecord(3, concat(le32(42), le16(7))))
	require.True(t, ev.Matched())
	require.NoError(t, ev.Err)
	require.Len(t, ev.Fields, 2)

	reason, ok := ev.Field("Reason")
	require.True(t, ok)
	value, err := reason.Uint(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), value)
}

func TestBindLiveSchemaPrefixViolation(t *testing.T) {
	shape := statusShape(1)
	shape.Fields = []FieldDescriptor{{Name: "StatusCode", InType: InTypeUint32}}
	binder := newTestBinder(t, shape)

	ev := binder.Bind(statusRecord(1, le32(42)))
	require.True(t, ev.Matched())
	assert.ErrorIs(t, ev.Err, ErrLayoutMismatch)
}

func TestBindSchemaNotFound(t *testing.T) {
	shape := EventShape{
		Name:         "Unknown",
		ProviderGUID: testProviderGUID,
		EventID:      4000,
		Version:      0,
	}
	binder := newTestBinder(t, shape)

	ev := binder.Bind(&Record{Header: RecordHeader{
		ProviderGUID: testProviderGUID,
		EventID:      4000,
	}})
	require.True(t, ev.Matched())
	assert.ErrorIs(t, ev.Err, ErrNotFound)
}

func TestBindRecordShorterThanFixedField(t *testing.T) {
	binder := newTestBinder(t, statusShape(1))

	ev := binder.Bind(statusRecord(1, le16(42)))
	require.True(t, ev.Matched())
	assert.ErrorIs(t, ev.Err, ErrLayoutMismatch)
}

func TestBindPointerWidthFromRecordHeader(t *testing.T) {
	fields := []FieldDescriptor{
		{Name: "Handle", InType: InTypePointer},
		{Name: "Status", InType: InTypeUint32},
	}
	source := &fakeSource{events: map[winguid.GUID][]EventSchema{
		testProviderGUID: {{
			ProviderGUID: testProviderGUID,
			EventID:      1103,
			Version:      0,
			Fields:       fields,
		}},
	}}
	set, err := NewShapeSet(EventShape{
		Name:         "HandleStatus",
		ProviderGUID: testProviderGUID,
		EventID:      1103,
		Fields:       fields,
	})
	require.NoError(t, err)
	binder := NewBinder(set, NewCatalog(source))

	// payload written by a 32-bit process: 4-byte handle, then the status
	rec := &Record{
		Header: RecordHeader{
			ProviderGUID: testProviderGUID,
			EventID:      1103,
			PointerSize:  4,
		},
		Data: concat(le32(0xbeef), le32(7)),
	}
	ev := binder.Bind(rec)
	require.True(t, ev.Matched())
	require.NoError(t, ev.Err)

	handle, err := ev.Fields[0].Uint(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xbeef), handle)
	status, err := ev.Fields[1].Uint(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), status)
}

func TestBindMetadataUnavailable(t *testing.T) {
	set, err := NewShapeSet(statusShape(1))
	require.NoError(t, err)
	binder := NewBinder(set, NewCatalog(&fakeSource{err: assert.AnError}))

	ev := binder.Bind(statusRecord(1, le32(42)))
	require.True(t, ev.Matched())
	assert.ErrorIs(t, ev.Err, ErrMetadataUnavailable)
}

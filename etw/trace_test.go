package etw

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePump struct {
	records    []*Record
	processErr error

	deliver    func(*Record)
	block      chan struct{}
	blocked    bool
	closeCalls int
}

func (f *fakePump) Open(sessionName string, deliver func(*Record)) error {
	f.deliver = deliver
	return nil
}

func (f *fakePump) Process(end time.Time) error {
	for _, rec := range f.records {
		f.deliver(rec)
	}
	if f.block != nil {
		<-f.block
	}
	return f.processErr
}

func (f *fakePump) Close() error {
	f.closeCalls++
	if f.block != nil && !f.blocked {
		f.blocked = true
		close(f.block)
	}
	return nil
}

func collectEvents(t *testing.T, pump *fakePump, shapes ...EventShape) []*DecodedEvent {
	t.Helper()
	binder := newTestBinder(t, shapes...)

	var events []*DecodedEvent
	trace, err := openTrace(pump, "TestSession", binder, func(ev *DecodedEvent) {
		events = append(events, ev.Clone())
	})
	require.NoError(t, err)

	require.NoError(t, trace.StartProcessing(time.Time{}))
	require.NoError(t, trace.Wait())
	return events
}

func TestTraceClassifiesEveryRecord(t *testing.T) {
	pump := &fakePump{records: []*Record{
		statusRecord(1, le32(42)),
		{Header: RecordHeader{ProviderGUID: otherGUID, EventID: 5}},
		statusRecord(0, le32(42)),
	}}

	events := collectEvents(t, pump, statusShape(1))
	require.Len(t, events, 3, "no record may be dropped without classification")

	require.True(t, events[0].Matched())
	require.NoError(t, events[0].Err)
	status, ok := events[0].Field("Status")
	require.True(t, ok)
	value, err := status.Uint(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)

	assert.False(t, events[1].Matched())
	assert.NoError(t, events[1].Err)

	require.True(t, events[2].Matched())
	assert.ErrorIs(t, events[2].Err, ErrSchemaVersionTooOld)
}

func TestTraceEndTimeFinishesWithoutStop(t *testing.T) {
	pump := &fakePump{records: []*Record{statusRecord(1, le32(1))}}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)

	require.NoError(t, trace.StartProcessing(time.Now().Add(time.Millisecond)))
	require.NoError(t, trace.Wait())
	assert.True(t, trace.IsFinished())
	assert.Equal(t, 0, pump.closeCalls)
}

func TestTraceStopUnblocksProcessing(t *testing.T) {
	pump := &fakePump{block: make(chan struct{})}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)
	require.NoError(t, trace.StartProcessing(time.Time{}))

	assert.False(t, trace.IsFinished())
	require.NoError(t, trace.Stop())
	assert.True(t, trace.IsFinished())
}

func TestTraceStopIsIdempotent(t *testing.T) {
	pump := &fakePump{block: make(chan struct{})}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)
	require.NoError(t, trace.StartProcessing(time.Time{}))

	require.NoError(t, trace.Stop())
	require.NoError(t, trace.Stop())
	assert.Equal(t, 1, pump.closeCalls)
}

func TestTraceStartProcessingTwice(t *testing.T) {
	pump := &fakePump{block: make(chan struct{})}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)
	defer trace.Stop()

	require.NoError(t, trace.StartProcessing(time.Time{}))
	assert.Error(t, trace.StartProcessing(time.Time{}))
}

func TestTraceStartProcessingAfterStop(t *testing.T) {
	pump := &fakePump{}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)
	require.NoError(t, trace.Stop())

	assert.ErrorIs(t, trace.StartProcessing(time.Time{}), ErrSessionClosed)
}

func TestTraceCountsLostEvents(t *testing.T) {
	pump := &fakePump{records: []*Record{
		{Header: RecordHeader{ProviderGUID: lostEventGUID, EventID: 2}},
		statusRecord(1, le32(1)),
	}}

	binder := newTestBinder(t, statusShape(1))
	delivered := 0
	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) { delivered++ })
	require.NoError(t, err)

	require.NoError(t, trace.StartProcessing(time.Time{}))
	require.NoError(t, trace.Wait())

	assert.Equal(t, uint64(1), trace.LostEvents())
	assert.Equal(t, 2, delivered, "drop notifications still reach the callback")
}

func TestTraceProcessErrorReachesWait(t *testing.T) {
	processErr := errors.New("session stopped underneath us")
	pump := &fakePump{processErr: processErr}
	binder := newTestBinder(t, statusShape(1))

	trace, err := openTrace(pump, "TestSession", binder, func(*DecodedEvent) {})
	require.NoError(t, err)

	require.NoError(t, trace.StartProcessing(time.Time{}))
	assert.ErrorIs(t, trace.Wait(), processErr)
}

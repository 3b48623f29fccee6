package etw

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// EventCallback receives every record the trace delivers, decoded or
// classified, in delivery order. The event and its field views borrow the
// pump's buffer; use Clone to keep them past the call.
type EventCallback func(*DecodedEvent)

// recordPump is the blocking delivery engine under a Trace. The Windows
// implementation wraps OpenTraceW/ProcessTrace/CloseTrace; tests substitute
// fakes. Close unblocks a running Process at the next record boundary.
type recordPump interface {
	Open(sessionName string, deliver func(*Record)) error
	Process(end time.Time) error
	Close() error
}

// Records with this provider GUID are synthetic notifications for events the
// kernel dropped because consumers fell behind.
var lostEventGUID = winguid.MustParse("{6A399AE0-4BC6-4DE9-870B-3657F8947E7E}")

// Trace consumes one session's event stream. Processing runs on a dedicated
// goroutine because the underlying delivery call blocks until the trace ends;
// Stop and the end time passed to StartProcessing are the two ways to make it
// return.
type Trace struct {
	session  string
	pump     recordPump
	binder   *Binder
	callback EventCallback

	lostEvents atomic.Uint64

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
	lastErr error
}

func openTrace(pump recordPump, sessionName string, binder *Binder, callback EventCallback) (*Trace, error) {
	t := &Trace{
		session:  sessionName,
		pump:     pump,
		binder:   binder,
		callback: callback,
		done:     make(chan struct{}),
	}
	if err := pump.Open(sessionName, t.dispatch); err != nil {
		return nil, fmt.Errorf("opening trace on session %q: %w", sessionName, err)
	}
	return t, nil
}

// StartProcessing begins delivering events on a new goroutine. Processing
// runs until endTime passes, Stop is called, or the session stops; the zero
// endTime means no deadline. It can be called once per trace.
func (t *Trace) StartProcessing(endTime time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("%w: trace on session %q", ErrSessionClosed, t.session)
	}
	if t.started {
		return fmt.Errorf("trace on session %q is already processing", t.session)
	}
	t.started = true

	go func() {
		err := t.pump.Process(endTime)
		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()
		close(t.done)
		logger.Debug().Str("session", t.session).Err(err).Msg("trace processing finished")
	}()
	return nil
}

// IsFinished reports whether the processing goroutine has returned.
func (t *Trace) IsFinished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until processing finishes and returns its terminal error, if
// any.
func (t *Trace) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Stop closes the trace, unblocking the processing goroutine at the next
// record boundary, and waits for it to return. Calling Stop more than once is
// a no-op.
func (t *Trace) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.started
	t.mu.Unlock()

	err := t.pump.Close()
	if started {
		<-t.done
	} else {
		close(t.done)
	}
	if err != nil {
		return fmt.Errorf("closing trace on session %q: %w", t.session, err)
	}
	return nil
}

// LostEvents returns how many drop notifications the trace has seen.
func (t *Trace) LostEvents() uint64 {
	return t.lostEvents.Load()
}

func (t *Trace) dispatch(rec *Record) {
	if rec.Header.ProviderGUID == lostEventGUID {
		n := t.lostEvents.Add(1)
		logger.Warn().Str("session", t.session).Uint64("total", n).Msg("events lost")
	}
	t.callback(t.binder.Bind(rec))
}

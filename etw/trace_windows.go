package etw

import (
	"sync/atomic"
	"syscall"
	"time"

	"github.com/quentin-nozomi/etw-typed/winapi"
)

// OpenSessionTrace attaches a real-time consumer to the session's event
// stream. Events begin flowing to the callback once StartProcessing is
// called.
func OpenSessionTrace(session *Session, binder *Binder, callback EventCallback) (*Trace, error) {
	return openTrace(&realTimePump{}, session.Name(), binder, callback)
}

// realTimePump wraps the blocking ProcessTrace consumer loop. The kernel
// calls back once per buffer and once per record on the goroutine running
// Process.
type realTimePump struct {
	handle  syscall.Handle
	deliver func(*Record)
	closed  atomic.Bool
}

func (p *realTimePump) Open(sessionName string, deliver func(*Record)) error {
	loggerName, err := syscall.UTF16PtrFromString(sessionName)
	if err != nil {
		return err
	}
	p.deliver = deliver

	logfile := winapi.EventTraceLogfile{LoggerName: loggerName}
	logfile.SetProcessTraceMode(winapi.PROCESS_TRACE_MODE_REAL_TIME | winapi.PROCESS_TRACE_MODE_EVENT_RECORD)
	logfile.BufferCallback = syscall.NewCallbackCDecl(p.bufferCallback)
	logfile.Callback = syscall.NewCallbackCDecl(p.recordCallback)

	handle, err := winapi.OpenTrace(&logfile)
	if err != nil {
		return err
	}
	p.handle = handle
	return nil
}

func (p *realTimePump) Process(end time.Time) error {
	var endFiletime *syscall.Filetime
	if !end.IsZero() {
		filetime := syscall.NsecToFiletime(end.UnixNano())
		endFiletime = &filetime
	}

	err := winapi.ProcessTrace(&p.handle, 1, nil, endFiletime)
	if err == winapi.ERROR_CANCELLED {
		// buffer callback requested the stop
		return nil
	}
	return err
}

func (p *realTimePump) Close() error {
	p.closed.Store(true)
	err := winapi.CloseTrace(p.handle)
	if err == winapi.ERROR_CTX_CLOSE_PENDING {
		// delivery drains already-filled buffers before the handle dies
		return nil
	}
	return err
}

// bufferCallback runs after every flushed buffer; returning 0 makes
// ProcessTrace stop at this record boundary.
func (p *realTimePump) bufferCallback(logfile *winapi.EventTraceLogfile) uintptr {
	if p.closed.Load() {
		return 0
	}
	return 1
}

func (p *realTimePump) recordCallback(eventRecord *winapi.EventRecord) uintptr {
	header := &eventRecord.EventHeader
	record := Record{
		Header: RecordHeader{
			ProviderGUID: header.ProviderId,
			EventID:      header.EventDescriptor.Id,
			Version:      header.EventDescriptor.Version,
			Channel:      header.EventDescriptor.Channel,
			Level:        header.EventDescriptor.Level,
			Opcode:       header.EventDescriptor.Opcode,
			Task:         header.EventDescriptor.Task,
			Keyword:      header.EventDescriptor.Keyword,
			ProcessID:    header.ProcessId,
			ThreadID:     header.ThreadId,
			ActivityID:   header.ActivityId,
			TimestampUTC: header.UTCTimeStamp(),
			PointerSize:  uint8(eventRecord.PointerSize()),
		},
		Data: eventRecord.UserDataBytes(),
	}
	p.deliver(&record)
	return 0
}

package etw

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// SessionOptions tune the kernel buffering of a trace session. Zero values
// pick the controller's defaults.
type SessionOptions struct {
	// ClosePrevious stops a leftover session with the same name before
	// starting, instead of failing with ErrSessionNameInUse. Sessions are
	// kernel resources and outlive the process that started them.
	ClosePrevious bool

	BufferSizeKB   uint32
	MinimumBuffers uint32
	MaximumBuffers uint32

	// FlushTimerSeconds forces partially filled buffers to the consumer on
	// an interval.
	FlushTimerSeconds uint32
}

// ProviderConfig selects what a provider emits into the session.
type ProviderConfig struct {
	GUID winguid.GUID
	Name string

	// EnableLevel is the maximum severity to collect, 0 for everything.
	EnableLevel uint8

	// Keyword masks. An event passes when it carries any bit of
	// MatchAnyKeyword (or that mask is zero) and all bits of
	// MatchAllKeyword.
	MatchAnyKeyword uint64
	MatchAllKeyword uint64

	// EventIDs restricts collection to the listed ids when non-empty.
	EventIDs []uint16
}

// sessionController is the kernel-facing side of a session. The Windows
// implementation drives the advapi32 trace APIs; tests substitute fakes.
type sessionController interface {
	Start(name string, opts SessionOptions) error
	StopByName(name string) error
	EnableProvider(cfg ProviderConfig) error
	Close() error
}

type sessionState int

const (
	sessionActive sessionState = iota
	sessionClosed
)

// Session is an owned, named kernel trace session. It is created Active and
// moves to Closed exactly once; Close is safe to call repeatedly and is
// guaranteed on every normal path when callers defer it. Abnormal process
// termination leaks the kernel session, which is why ClosePrevious exists.
type Session struct {
	name string
	ctrl sessionController

	mu    sync.Mutex
	state sessionState
}

func startSession(ctrl sessionController, name string, opts SessionOptions) (*Session, error) {
	err := ctrl.Start(name, opts)
	if errors.Is(err, ErrSessionNameInUse) {
		if !opts.ClosePrevious {
			return nil, err
		}
		logger.Warn().Str("session", name).Msg("session name in use, stopping previous session")
		if stopErr := ctrl.StopByName(name); stopErr != nil && !errors.Is(stopErr, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %q: %v", ErrPreviousSessionCloseFailed, name, stopErr)
		}
		err = ctrl.Start(name, opts)
	}
	if err != nil {
		if errors.Is(err, ErrSessionNameInUse) || errors.Is(err, ErrSessionStartFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q: %v", ErrSessionStartFailed, name, err)
	}
	logger.Debug().Str("session", name).Msg("session started")
	return &Session{name: name, ctrl: ctrl}, nil
}

// Name returns the session's kernel name.
func (s *Session) Name() string { return s.name }

// EnableProvider subscribes a provider to the session.
func (s *Session) EnableProvider(cfg ProviderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sessionActive {
		return fmt.Errorf("%w: %q", ErrSessionClosed, s.name)
	}
	if err := s.ctrl.EnableProvider(cfg); err != nil {
		return fmt.Errorf("enabling provider %s on %q: %w", cfg.GUID.String(), s.name, err)
	}
	logger.Debug().Str("session", s.name).Str("provider", cfg.GUID.String()).Msg("provider enabled")
	return nil
}

// Close stops the session and releases the kernel resource. Calling it more
// than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == sessionClosed {
		return nil
	}
	s.state = sessionClosed
	if err := s.ctrl.Close(); err != nil {
		return fmt.Errorf("closing session %q: %w", s.name, err)
	}
	logger.Debug().Str("session", s.name).Msg("session closed")
	return nil
}

package etw

import (
	"fmt"
	"syscall"

	"github.com/quentin-nozomi/etw-typed/winapi"
)

// StartSession starts a named real-time trace session in the kernel, stopping
// a leftover session of the same name first when opts.ClosePrevious is set.
func StartSession(name string, opts SessionOptions) (*Session, error) {
	return startSession(&traceSessionController{}, name, opts)
}

// traceSessionController drives a real-time session through the advapi32
// trace control APIs.
type traceSessionController struct {
	handle     syscall.Handle
	name       string
	properties *winapi.EventTraceProperties
}

func (c *traceSessionController) Start(name string, opts SessionOptions) error {
	properties := winapi.NewRealTimeSessionProperties(name,
		opts.BufferSizeKB, opts.MinimumBuffers, opts.MaximumBuffers, opts.FlushTimerSeconds)
	namePtr, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return err
	}

	err = winapi.StartTrace(&c.handle, namePtr, properties)
	if err == winapi.ERROR_ALREADY_EXISTS {
		return fmt.Errorf("%w: %q", ErrSessionNameInUse, name)
	}
	if err != nil {
		return err
	}
	c.name = name
	c.properties = properties
	return nil
}

func (c *traceSessionController) StopByName(name string) error {
	properties := winapi.NewRealTimeSessionProperties(name, 0, 0, 0, 0)
	namePtr, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return err
	}

	err = winapi.ControlTrace(0, namePtr, properties, winapi.EVENT_TRACE_CONTROL_STOP)
	if err == winapi.ERROR_WMI_INSTANCE_NOT_FOUND {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return err
}

func (c *traceSessionController) EnableProvider(cfg ProviderConfig) error {
	params := winapi.EnableTraceParameters{Version: 2}

	if len(cfg.EventIDs) > 0 {
		filter := winapi.NewEventIDFilterDescriptor(cfg.EventIDs)
		params.EnableFilterDesc = &filter
		params.FilterDescCount = 1
	}

	level := cfg.EnableLevel
	if level == 0 {
		level = 0xff
	}

	guid := cfg.GUID
	return winapi.EnableTraceEx2(
		c.handle,
		&guid,
		winapi.EVENT_CONTROL_CODE_ENABLE_PROVIDER,
		level,
		cfg.MatchAnyKeyword,
		cfg.MatchAllKeyword,
		0,
		&params,
	)
}

func (c *traceSessionController) Close() error {
	return winapi.ControlTrace(c.handle, nil, c.properties, winapi.EVENT_TRACE_CONTROL_STOP)
}

package etw

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	startErrs []error // consumed one per Start call
	stopErr   error
	enableErr error
	closeErr  error

	calls []string
}

func (f *fakeController) Start(name string, opts SessionOptions) error {
	f.calls = append(f.calls, "start")
	if len(f.startErrs) == 0 {
		return nil
	}
	err := f.startErrs[0]
	f.startErrs = f.startErrs[1:]
	return err
}

func (f *fakeController) StopByName(name string) error {
	f.calls = append(f.calls, "stop")
	return f.stopErr
}

func (f *fakeController) EnableProvider(cfg ProviderConfig) error {
	f.calls = append(f.calls, "enable")
	return f.enableErr
}

func (f *fakeController) Close() error {
	f.calls = append(f.calls, "close")
	return f.closeErr
}

func TestStartSessionFresh(t *testing.T) {
	ctrl := &fakeController{}

	session, err := startSession(ctrl, "TestSession", SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "TestSession", session.Name())
	assert.Equal(t, []string{"start"}, ctrl.calls)
}

func TestStartSessionClosePreviousWithNoPriorSession(t *testing.T) {
	ctrl := &fakeController{}

	session, err := startSession(ctrl, "TestSession", SessionOptions{ClosePrevious: true})
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, []string{"start"}, ctrl.calls)
}

func TestStartSessionNameInUse(t *testing.T) {
	ctrl := &fakeController{startErrs: []error{ErrSessionNameInUse}}

	_, err := startSession(ctrl, "TestSession", SessionOptions{})
	assert.ErrorIs(t, err, ErrSessionNameInUse)
	assert.Equal(t, []string{"start"}, ctrl.calls, "no stop attempt without ClosePrevious")
}

func TestStartSessionClosePrevious(t *testing.T) {
	ctrl := &fakeController{startErrs: []error{ErrSessionNameInUse, nil}}

	session, err := startSession(ctrl, "TestSession", SessionOptions{ClosePrevious: true})
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, []string{"start", "stop", "start"}, ctrl.calls)
}

func TestStartSessionClosePreviousVanishedMeanwhile(t *testing.T) {
	ctrl := &fakeController{
		startErrs: []error{ErrSessionNameInUse, nil},
		stopErr:   ErrSessionNotFound,
	}

	_, err := startSession(ctrl, "TestSession", SessionOptions{ClosePrevious: true})
	assert.NoError(t, err, "a previous session that is already gone is not a failure")
}

func TestStartSessionClosePreviousStopFails(t *testing.T) {
	ctrl := &fakeController{
		startErrs: []error{ErrSessionNameInUse},
		stopErr:   errors.New("access denied"),
	}

	_, err := startSession(ctrl, "TestSession", SessionOptions{ClosePrevious: true})
	assert.ErrorIs(t, err, ErrPreviousSessionCloseFailed)
	assert.Equal(t, []string{"start", "stop"}, ctrl.calls)
}

func TestStartSessionStillInUseAfterStop(t *testing.T) {
	ctrl := &fakeController{startErrs: []error{ErrSessionNameInUse, ErrSessionNameInUse}}

	_, err := startSession(ctrl, "TestSession", SessionOptions{ClosePrevious: true})
	assert.ErrorIs(t, err, ErrSessionNameInUse)
}

func TestStartSessionKernelFailure(t *testing.T) {
	ctrl := &fakeController{startErrs: []error{errors.New("errno 5")}}

	_, err := startSession(ctrl, "TestSession", SessionOptions{})
	assert.ErrorIs(t, err, ErrSessionStartFailed)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	ctrl := &fakeController{}
	session, err := startSession(ctrl, "TestSession", SessionOptions{})
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, []string{"start", "close"}, ctrl.calls, "only the first Close reaches the kernel")
}

func TestSessionEnableProvider(t *testing.T) {
	ctrl := &fakeController{}
	session, err := startSession(ctrl, "TestSession", SessionOptions{})
	require.NoError(t, err)

	require.NoError(t, session.EnableProvider(ProviderConfig{GUID: testProviderGUID}))
	assert.Equal(t, []string{"start", "enable"}, ctrl.calls)
}

func TestSessionEnableProviderAfterClose(t *testing.T) {
	ctrl := &fakeController{}
	session, err := startSession(ctrl, "TestSession", SessionOptions{})
	require.NoError(t, err)
	require.NoError(t, session.Close())

	err = session.EnableProvider(ProviderConfig{GUID: testProviderGUID})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

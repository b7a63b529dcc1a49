package mdman

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ossidisc/mdman/pkg/netmd"
)

func testSettings() SessionSettings {
	return SessionSettings{
		PollInterval:    20 * time.Millisecond,
		IdleTick:        time.Millisecond,
		UploadChunkSize: 4,
		UploadFormat:    netmd.WireFormatLP4,
	}
}

func newTestSupervisor(driver netmd.Driver) *Supervisor {
	return NewSupervisor(zap.NewNop().Sugar(), driver, testSettings)
}

func endSession(t *testing.T, sess *Session) {
	t.Helper()

	sess.Send(Disconnect{})
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
}

func TestSupervisorStartSession(t *testing.T) {
	dev := &fakeDevice{status: noDiscStatus()}
	sv := newTestSupervisor(&fakeDriver{dev: dev})

	assert.False(t, sv.Active())
	assert.Nil(t, sv.Current())
	assert.Equal(t, SessionState{}, sv.State())

	sess, err := sv.StartSession()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID())

	eventually(t, func() bool { return sess.State().Connected }, "session should connect")
	assert.True(t, sv.Active())
	assert.Same(t, sess, sv.Current())

	endSession(t, sess)
}

func TestSupervisorRejectsConcurrentSessions(t *testing.T) {
	dev := &fakeDevice{status: noDiscStatus()}
	sv := newTestSupervisor(&fakeDriver{dev: dev})

	sess, err := sv.StartSession()
	require.NoError(t, err)
	eventually(t, func() bool { return sess.State().Connected }, "session should connect")

	second, err := sv.StartSession()
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Nil(t, second)
	assert.Same(t, sess, sv.Current(), "the running session stays in place")

	endSession(t, sess)
}

func TestSupervisorRestartAfterTermination(t *testing.T) {
	dev := &fakeDevice{status: noDiscStatus()}
	sv := newTestSupervisor(&fakeDriver{dev: dev})

	first, err := sv.StartSession()
	require.NoError(t, err)
	eventually(t, func() bool { return first.State().Connected }, "session should connect")
	endSession(t, first)

	second, err := sv.StartSession()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	// the old handle keeps reporting its own terminated session
	assert.Equal(t, SessionState{}, first.State())

	eventually(t, func() bool { return second.State().Connected }, "new session should connect")
	endSession(t, second)
}

func TestSupervisorSessionErr(t *testing.T) {
	connectErr := errors.New("no usb device")
	sv := newTestSupervisor(&fakeDriver{connectErr: connectErr})

	sess, err := sv.StartSession()
	require.NoError(t, err, "acquisition failures surface on the session, not StartSession")

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}

	assert.ErrorIs(t, sess.Err(), connectErr)
	assert.False(t, sv.Active())
}

func TestSupervisorErrIsNilWhileRunning(t *testing.T) {
	dev := &fakeDevice{status: noDiscStatus()}
	sv := newTestSupervisor(&fakeDriver{dev: dev})

	sess, err := sv.StartSession()
	require.NoError(t, err)
	eventually(t, func() bool { return sess.State().Connected }, "session should connect")

	assert.NoError(t, sess.Err())

	endSession(t, sess)
	assert.NoError(t, sess.Err(), "an orderly disconnect terminates without error")
}

func TestSupervisorSendWithoutSessionIsNoop(t *testing.T) {
	sv := newTestSupervisor(&fakeDriver{dev: &fakeDevice{}})

	// must not panic or block
	sv.Send(Stop{})
	assert.Equal(t, SessionState{}, sv.State())
}

func TestSessionSendAfterTerminationIsDropped(t *testing.T) {
	dev := &fakeDevice{status: noDiscStatus()}
	sv := newTestSupervisor(&fakeDriver{dev: dev})

	sess, err := sv.StartSession()
	require.NoError(t, err)
	eventually(t, func() bool { return sess.State().Connected }, "session should connect")
	endSession(t, sess)

	before := dev.callCount("stop")
	sess.Send(Stop{})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, dev.callCount("stop"), "a terminated session executes nothing")
}

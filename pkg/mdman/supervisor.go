package mdman

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ossidisc/mdman/pkg/netmd"
)

// ErrSessionActive is returned by StartSession while a previous session's
// worker has not yet terminated. Sessions are never silently replaced; the
// caller disconnects first and retries.
var ErrSessionActive = errors.New("a device session is already active")

// SessionSettings are the timing and transfer parameters a session snapshots
// at start. Config changes apply to the next session, not a running one.
type SessionSettings struct {
	PollInterval    time.Duration
	IdleTick        time.Duration
	UploadChunkSize int
	UploadFormat    netmd.WireFormat
}

// Session is one worker's lifetime, bound to one device acquisition. The
// consumer side holds a write-only command path and a read-only state view.
type Session struct {
	id       string
	store    *stateStore
	commands chan Command

	done chan struct{}
	err  error
}

// ID is the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns an immutable snapshot of the session's current state.
func (s *Session) State() SessionState {
	return s.store.Snapshot()
}

// Send enqueues a command for the session worker, best-effort: once the
// session has terminated, or if the queue is full, the command is silently
// dropped. Senders receive no delivery or execution confirmation.
func (s *Session) Send(cmd Command) {
	select {
	case <-s.done:
		return
	default:
	}

	trySend(s.commands, cmd)
}

// Done is closed when the session reaches its terminated state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session terminated. It is nil for an orderly
// disconnect and only meaningful after Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Supervisor creates sessions: one worker per session, wired to a fresh
// state store and command queue, handles returned to the consumer.
type Supervisor struct {
	logger *zap.SugaredLogger
	driver netmd.Driver

	// settings is read once per StartSession so config reloads apply to the
	// next session rather than a running one.
	settings func() SessionSettings

	lock    sync.Mutex
	current *Session
}

// NewSupervisor creates a Supervisor for the given device driver.
func NewSupervisor(logger *zap.SugaredLogger, driver netmd.Driver, settings func() SessionSettings) *Supervisor {
	logger = logger.Named("supervisor")

	logger.Debug("Created supervisor instance")

	return &Supervisor{
		logger:   logger,
		driver:   driver,
		settings: settings,
	}
}

// StartSession spawns a new session worker and returns its handle. It fails
// with ErrSessionActive while a previous session is still running or
// tearing down.
func (sv *Supervisor) StartSession() (*Session, error) {
	sv.lock.Lock()
	defer sv.lock.Unlock()

	if sv.current != nil {
		select {
		case <-sv.current.done:
		default:
			sv.logger.Warnw("Refusing to start session, previous one still active", "id", sv.current.id)
			return nil, ErrSessionActive
		}
	}

	sess := &Session{
		id:       uuid.NewString(),
		store:    newStateStore(),
		commands: make(chan Command, commandQueueSize),
		done:     make(chan struct{}),
	}

	settings := sv.settings()

	w := &worker{
		logger:          sv.logger.Named("worker").Named(sess.id[:8]),
		driver:          sv.driver,
		store:           sess.store,
		commands:        sess.commands,
		pollInterval:    settings.PollInterval,
		idleTick:        settings.IdleTick,
		uploadChunkSize: settings.UploadChunkSize,
		uploadFormat:    settings.UploadFormat,
	}

	go func() {
		sess.err = w.run()
		close(sess.done)
	}()

	sv.current = sess
	sv.logger.Infow("Session started", "id", sess.id)

	return sess, nil
}

// Current returns the most recently started session, which may already have
// terminated, or nil if none was ever started.
func (sv *Supervisor) Current() *Session {
	sv.lock.Lock()
	defer sv.lock.Unlock()

	return sv.current
}

// Active reports whether a session is currently running.
func (sv *Supervisor) Active() bool {
	sess := sv.Current()
	if sess == nil {
		return false
	}

	select {
	case <-sess.done:
		return false
	default:
		return true
	}
}

// Send forwards a command to the current session, best-effort. With no
// session running the command is silently dropped.
func (sv *Supervisor) Send(cmd Command) {
	sess := sv.Current()
	if sess == nil {
		return
	}

	sess.Send(cmd)
}

// State returns the current session's state snapshot, or the disconnected
// zero state when no session exists.
func (sv *Supervisor) State() SessionState {
	sess := sv.Current()
	if sess == nil {
		return SessionState{}
	}

	return sess.State()
}

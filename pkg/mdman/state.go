package mdman

import (
	"sync"

	"github.com/thoas/go-funk"

	"github.com/ossidisc/mdman/pkg/netmd"
)

// SessionState is the externally visible state of one device session. The
// session worker is the only writer; consumers receive value snapshots and
// can never mutate what the worker holds.
type SessionState struct {
	// Connected is true once the device handshake and initial reads complete,
	// and reverts to false when the session terminates for any reason.
	Connected bool

	// Reading is true while a catalog refresh is in flight. While set, the
	// Catalog field may be stale or mid-replacement and must not be treated
	// as current.
	Reading bool

	// Catalog is present iff a disc is inserted and its content listing has
	// been read successfully.
	Catalog *netmd.Disc

	// Status is present once at least one status query has succeeded.
	Status *netmd.DeviceStatus

	// Progress is present only while a track transfer is executing, as a
	// fraction in [0,1].
	Progress *float64
}

// HasDisc reports whether a readable disc catalog is available.
func (s SessionState) HasDisc() bool {
	return s.Catalog != nil && !s.Reading
}

// activePlaybackModes are the modes in which the device's reported track
// index refers to an audibly current track.
var activePlaybackModes = []netmd.OperatingMode{
	netmd.ModePlaying,
	netmd.ModePaused,
	netmd.ModeFastForward,
	netmd.ModeRewind,
}

// PlayingTrack returns the index of the track the device is currently on,
// or -1 when nothing is being played.
func (s SessionState) PlayingTrack() int {
	if s.Status == nil || !funk.Contains(activePlaybackModes, s.Status.Mode) {
		return -1
	}
	if s.Catalog == nil || s.Status.Track >= len(s.Catalog.Tracks) {
		return -1
	}

	return s.Status.Track
}

// StateReader is the read-only view of a session's state handed to
// consumers.
type StateReader interface {
	// Snapshot returns an immutable copy of the current session state.
	// Readers observe every logical transition atomically, never a torn mix
	// of fields.
	Snapshot() SessionState
}

// stateStore holds the session state behind a reader-writer lock. The worker
// mutates it through named transitions, each a single critical section so
// paired fields (reading/catalog, status/catalog) flip atomically from a
// reader's point of view.
type stateStore struct {
	mu    sync.RWMutex
	state SessionState
}

func newStateStore() *stateStore {
	return &stateStore{}
}

// Snapshot implements StateReader. The catalog is deep-copied so callers
// never alias the worker's copy.
func (s *stateStore) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.Catalog = s.state.Catalog.Clone()

	if s.state.Status != nil {
		st := *s.state.Status
		snap.Status = &st
	}
	if s.state.Progress != nil {
		p := *s.state.Progress
		snap.Progress = &p
	}

	return snap
}

func (s *stateStore) setConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Connected = connected
}

// beginCatalogRead marks the catalog as being replaced.
func (s *stateStore) beginCatalogRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Reading = true
}

// finishCatalogRead installs the freshly read catalog and clears the reading
// flag in the same transition.
func (s *stateStore) finishCatalogRead(disc *netmd.Disc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Catalog = disc
	s.state.Reading = false
}

// applyPoll replaces the device status wholesale. When the poll observed the
// disc's removal, the cached catalog is dropped in the same transition so no
// snapshot can pair an absent disc with a present catalog. The return value
// tells the worker whether a disc appeared and a catalog refresh is due.
func (s *stateStore) applyPoll(status netmd.DeviceStatus) (refreshNeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = &status

	hadCatalog := s.state.Catalog != nil
	if hadCatalog && !status.DiscPresent {
		s.state.Catalog = nil
		return false
	}

	return !hadCatalog && status.DiscPresent
}

func (s *stateStore) setProgress(fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Progress = &fraction
}

func (s *stateStore) clearProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Progress = nil
}

// reset returns the state to its disconnected defaults in one transition.
func (s *stateStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = SessionState{}
}

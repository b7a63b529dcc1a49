package netmd

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultDriver is the hardware driver a platform-enabled build registers at
// init time. Builds without one can still run against the simulated driver.
var DefaultDriver Driver

// wireFormatBytesPerSecond approximates each format's payload rate, used by
// the simulator to derive track durations from payload sizes.
var wireFormatBytesPerSecond = map[WireFormat]int{
	WireFormatPCM:   176400,
	WireFormatLP2:   16500,
	WireFormatLP105: 13125,
	WireFormatLP4:   8250,
}

var wireFormatEncoding = map[WireFormat]Encoding{
	WireFormatPCM:   EncodingSP,
	WireFormatLP2:   EncodingLP2,
	WireFormatLP105: EncodingLP2,
	WireFormatLP4:   EncodingLP4,
}

// SimDriver connects to an in-memory recorder. It exists for development and
// demos without hardware attached; the behavioral model (stateful disc,
// playback position, chunked transfers) matches what the coordinator expects
// from a real driver.
type SimDriver struct {
	// Disc is the medium present at connect time; nil starts with no disc.
	Disc *Disc

	// ChunkDelay throttles each transfer chunk to make progress observable.
	ChunkDelay time.Duration

	mu      sync.Mutex
	current *SimDevice
}

// NewSimDriver creates a simulator preloaded with a small demo disc.
func NewSimDriver() *SimDriver {
	return &SimDriver{
		Disc: &Disc{
			Title: "Demo Disc",
			Tracks: []Track{
				{Index: 0, Title: "First Light", Encoding: EncodingSP, Duration: 4*time.Minute + 12*time.Second},
				{Index: 1, Title: "", Encoding: EncodingLP2, Duration: 3*time.Minute + 47*time.Second},
				{Index: 2, Title: "Night Drive", Encoding: EncodingLP4, Duration: 5*time.Minute + 3*time.Second},
			},
		},
		ChunkDelay: 5 * time.Millisecond,
	}
}

// Connect implements Driver.
func (d *SimDriver) Connect() (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && !d.current.closed {
		return nil, errors.New("netmd: simulated device already in use")
	}

	dev := &SimDevice{
		disc:       d.Disc.Clone(),
		chunkDelay: d.ChunkDelay,
	}
	d.current = dev

	return dev, nil
}

// Device returns the currently connected simulated device, for demo and test
// harnesses that need to insert or eject discs out-of-band.
func (d *SimDriver) Device() *SimDevice {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.current
}

// SimDevice is the handle returned by SimDriver.Connect.
type SimDevice struct {
	mu sync.Mutex

	disc   *Disc
	closed bool

	mode       OperatingMode
	track      int
	playedAt   time.Time
	elapsed    time.Duration
	chunkDelay time.Duration
}

var errSimClosed = errors.New("netmd: simulated device is closed")

// InsertDisc makes the given disc the inserted medium.
func (s *SimDevice) InsertDisc(disc *Disc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disc = disc.Clone()
	s.stopLocked()
}

// EjectDisc removes the medium.
func (s *SimDevice) EjectDisc() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disc = nil
	s.stopLocked()
}

func (s *SimDevice) stopLocked() {
	s.mode = ModeReady
	s.track = 0
	s.elapsed = 0
	s.playedAt = time.Time{}
}

func (s *SimDevice) elapsedLocked() time.Duration {
	if s.mode != ModePlaying {
		return s.elapsed
	}
	return s.elapsed + time.Since(s.playedAt)
}

func (s *SimDevice) Status() (DeviceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return DeviceStatus{}, errSimClosed
	}

	status := DeviceStatus{
		Mode:        s.mode,
		DiscPresent: s.disc != nil,
		Track:       s.track,
		Elapsed:     s.elapsedLocked(),
	}

	if s.disc == nil {
		status.Mode = ModeNoDisc
	} else if len(s.disc.Tracks) == 0 && s.mode == ModeReady {
		status.Mode = ModeDiscBlank
	}

	return status, nil
}

func (s *SimDevice) Catalog() (Disc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Disc{}, errSimClosed
	}
	if s.disc == nil {
		return Disc{}, errors.New("netmd: no disc inserted")
	}

	return *s.disc.Clone(), nil
}

func (s *SimDevice) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}
	if s.disc == nil || len(s.disc.Tracks) == 0 {
		return errors.New("netmd: nothing to play")
	}

	if s.mode != ModePlaying {
		s.mode = ModePlaying
		s.playedAt = time.Now()
	}

	return nil
}

func (s *SimDevice) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}

	if s.mode == ModePlaying {
		s.elapsed = s.elapsed + time.Since(s.playedAt)
		s.mode = ModePaused
	}

	return nil
}

func (s *SimDevice) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}

	s.elapsed = 0
	s.playedAt = time.Time{}
	if s.mode != ModeNoDisc {
		s.mode = ModeReady
	}

	return nil
}

func (s *SimDevice) Seek(track int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}
	if s.disc == nil || track < 0 || track >= len(s.disc.Tracks) {
		return fmt.Errorf("netmd: no track %d", track)
	}

	s.track = track
	s.elapsed = 0
	s.playedAt = time.Now()

	return nil
}

func (s *SimDevice) Skip(direction Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}
	if s.disc == nil || len(s.disc.Tracks) == 0 {
		return errors.New("netmd: no disc inserted")
	}

	next := s.track + 1
	if direction == DirectionPrevious {
		next = s.track - 1
	}
	if next < 0 {
		next = 0
	}
	if next >= len(s.disc.Tracks) {
		next = len(s.disc.Tracks) - 1
	}

	s.track = next
	s.elapsed = 0
	s.playedAt = time.Now()

	return nil
}

func (s *SimDevice) Erase(track int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSimClosed
	}
	if s.disc == nil || track < 0 || track >= len(s.disc.Tracks) {
		return fmt.Errorf("netmd: no track %d", track)
	}

	s.disc.Tracks = append(s.disc.Tracks[:track], s.disc.Tracks[track+1:]...)
	for i := range s.disc.Tracks {
		s.disc.Tracks[i].Index = i
	}
	s.stopLocked()

	return nil
}

func (s *SimDevice) Transfer(upload TrackUpload, chunkSize int, onProgress ProgressFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSimClosed
	}
	if s.disc == nil {
		s.mu.Unlock()
		return errors.New("netmd: no disc inserted")
	}
	if chunkSize <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("netmd: invalid chunk size %d", chunkSize)
	}
	s.mode = ModeReadyForTransfer
	delay := s.chunkDelay
	s.mu.Unlock()

	total := (len(upload.Data) + chunkSize - 1) / chunkSize
	for done := 1; done <= total; done++ {
		time.Sleep(delay)
		if onProgress != nil {
			onProgress(total, done)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	duration := time.Duration(len(upload.Data)/wireFormatBytesPerSecond[upload.Format]) * time.Second
	s.disc.Tracks = append(s.disc.Tracks, Track{
		Index:    len(s.disc.Tracks),
		Title:    upload.Title,
		Encoding: wireFormatEncoding[upload.Format],
		Duration: duration,
	})
	s.mode = ModeReady

	return nil
}

func (s *SimDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

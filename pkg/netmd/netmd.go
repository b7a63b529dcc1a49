// Package netmd defines the boundary to a NetMD portable recorder: the data
// types reported by the device and the driver interface the session
// coordinator consumes. The wire protocol itself lives in the driver
// implementation, outside this module.
package netmd

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoDevice is returned by drivers when no supported recorder is attached.
var ErrNoDevice = errors.New("netmd: no device found")

// OperatingMode is the coarse activity the device reports in a status query.
type OperatingMode int

const (
	ModeReady OperatingMode = iota
	ModePlaying
	ModePaused
	ModeFastForward
	ModeRewind
	ModeReadingTOC
	ModeNoDisc
	ModeDiscBlank
	ModeReadyForTransfer
)

func (m OperatingMode) String() string {
	switch m {
	case ModeReady:
		return "ready"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	case ModeFastForward:
		return "fast-forward"
	case ModeRewind:
		return "rewind"
	case ModeReadingTOC:
		return "reading-toc"
	case ModeNoDisc:
		return "no-disc"
	case ModeDiscBlank:
		return "disc-blank"
	case ModeReadyForTransfer:
		return "ready-for-transfer"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// DeviceStatus is a point-in-time status report. It is replaced wholesale on
// every successful poll and never partially mutated.
type DeviceStatus struct {
	Mode        OperatingMode
	DiscPresent bool

	// Track is the current track index (0-based). Meaningful only while a
	// disc is present.
	Track int

	// Elapsed is the playback position within the current track.
	Elapsed time.Duration
}

// Encoding is the recording format of a track already on a disc.
type Encoding int

const (
	EncodingSP Encoding = iota
	EncodingLP2
	EncodingLP4
	EncodingMono
)

func (e Encoding) String() string {
	switch e {
	case EncodingSP:
		return "sp"
	case EncodingLP2:
		return "lp2"
	case EncodingLP4:
		return "lp4"
	case EncodingMono:
		return "mono"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// WireFormat is the format a payload is transferred in.
type WireFormat int

const (
	WireFormatPCM WireFormat = iota
	WireFormatLP2
	WireFormatLP105
	WireFormatLP4
)

func (f WireFormat) String() string {
	switch f {
	case WireFormatPCM:
		return "pcm"
	case WireFormatLP2:
		return "lp2"
	case WireFormatLP105:
		return "lp105"
	case WireFormatLP4:
		return "lp4"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseWireFormat converts a config-provided format name to a WireFormat.
func ParseWireFormat(name string) (WireFormat, error) {
	switch strings.ToLower(name) {
	case "pcm":
		return WireFormatPCM, nil
	case "lp2":
		return WireFormatLP2, nil
	case "lp105":
		return WireFormatLP105, nil
	case "lp4":
		return WireFormatLP4, nil
	}

	return 0, fmt.Errorf("unknown wire format %q", name)
}

// Track is a single entry in a disc's catalog. Index is the 0-based physical
// position and is stable for the catalog's lifetime. Title may be empty.
type Track struct {
	Index    int
	Title    string
	Encoding Encoding
	Duration time.Duration
}

// Disc is the enumerated catalog of the inserted medium.
type Disc struct {
	Title  string
	Tracks []Track
}

// TrackCount returns the number of tracks on the disc.
func (d *Disc) TrackCount() int {
	if d == nil {
		return 0
	}
	return len(d.Tracks)
}

// Clone returns a deep copy so snapshots never alias the catalog held by the
// session worker.
func (d *Disc) Clone() *Disc {
	if d == nil {
		return nil
	}

	cp := &Disc{Title: d.Title}
	if d.Tracks != nil {
		cp.Tracks = make([]Track, len(d.Tracks))
		copy(cp.Tracks, d.Tracks)
	}

	return cp
}

// Direction selects the target of a track skip.
type Direction int

const (
	DirectionNext Direction = iota
	DirectionPrevious
)

func (d Direction) String() string {
	if d == DirectionPrevious {
		return "previous"
	}
	return "next"
}

// Action selects a playback control operation.
type Action int

const (
	ActionPlay Action = iota
	ActionPause
)

func (a Action) String() string {
	if a == ActionPause {
		return "pause"
	}
	return "play"
}

// TrackUpload is a payload to be written onto the disc.
type TrackUpload struct {
	Title  string
	Format WireFormat
	Data   []byte
}

// ProgressFunc receives transfer progress at chunk granularity.
type ProgressFunc func(total, done int)

// Driver acquires exclusive access to a recorder. The returned Device is
// moved into the session worker and must not be shared.
type Driver interface {
	Connect() (Device, error)
}

// Device is an exclusively-held handle to a connected recorder. Calls may
// block for as long as the hardware needs; timeout policy belongs to the
// driver. All methods report hardware or protocol failures as errors, which
// the coordinator treats as fatal to the session.
type Device interface {
	// Status queries the current device status.
	Status() (DeviceStatus, error)

	// Catalog reads the full content listing of the inserted disc.
	Catalog() (Disc, error)

	Play() error
	Pause() error
	Stop() error

	// Seek positions the device at the given track without starting playback.
	Seek(track int) error

	// Skip moves to the adjacent track in the given direction.
	Skip(direction Direction) error

	// Erase removes the given track. Following tracks shift down.
	Erase(track int) error

	// Transfer writes the payload to the disc in chunks of chunkSize bytes,
	// invoking onProgress after every chunk.
	Transfer(upload TrackUpload, chunkSize int, onProgress ProgressFunc) error

	// Close releases the device handle.
	Close() error
}

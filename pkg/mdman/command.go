package mdman

import "github.com/ossidisc/mdman/pkg/netmd"

// commandQueueSize bounds the session's command queue. Sends beyond this are
// dropped, matching the best-effort control semantics: the consumer never
// blocks on command delivery and receives no delivery confirmation.
const commandQueueSize = 256

// Command is a single consumer request to the session worker. Commands are
// immutable once enqueued and are executed one at a time, in FIFO order.
type Command interface {
	isCommand()
}

// Disconnect asks the worker to tear the session down. It takes effect at
// the top of the next loop iteration, after any in-flight command finishes.
type Disconnect struct{}

// PlaybackControl starts or pauses playback.
type PlaybackControl struct {
	Action netmd.Action
}

// Stop halts playback.
type Stop struct{}

// SkipTrack moves to the adjacent track.
type SkipTrack struct {
	Direction netmd.Direction
}

// GoToTrack seeks to the given track and starts playing it.
type GoToTrack struct {
	Index int
}

// UploadTrack transfers the file at Path onto the disc.
type UploadTrack struct {
	Path string
}

// DeleteTrack erases the given track from the disc.
type DeleteTrack struct {
	Index int
}

func (Disconnect) isCommand()      {}
func (PlaybackControl) isCommand() {}
func (Stop) isCommand()            {}
func (SkipTrack) isCommand()       {}
func (GoToTrack) isCommand()       {}
func (UploadTrack) isCommand()     {}
func (DeleteTrack) isCommand()     {}

// trySend enqueues without blocking. A full queue drops the command.
func trySend(ch chan<- Command, cmd Command) bool {
	select {
	case ch <- cmd:
		return true
	default:
		return false
	}
}

package mdman

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ossidisc/mdman/pkg/mdman/util"
	"github.com/ossidisc/mdman/pkg/netmd"
)

// worker owns one device handle for the lifetime of one session. It drains
// the command queue, interleaves periodic status polls, and is the sole
// writer of the session's state store. Commands run synchronously to
// completion, so a long transfer starves polling until it finishes; that is
// a deliberate simplicity trade-off, the device cannot service anything else
// mid-command anyway.
type worker struct {
	logger *zap.SugaredLogger
	driver netmd.Driver
	store  *stateStore

	commands <-chan Command

	pollInterval time.Duration
	idleTick     time.Duration

	uploadChunkSize int
	uploadFormat    netmd.WireFormat

	// readFile is the single local I/O dependency outside the device
	// boundary. Injectable for tests, defaults to os.ReadFile.
	readFile func(string) ([]byte, error)
}

// run drives the session through Connecting, Active and Terminated. Any
// error from a device call (or the upload source read) is fatal for the
// whole session: the device's precise fault state after a failed multi-step
// command is not reliably inferable, so the session is dropped and the
// caller decides whether to reconnect.
func (w *worker) run() error {
	if w.readFile == nil {
		w.readFile = os.ReadFile
	}

	w.logger.Debug("Connecting to device")

	dev, err := w.driver.Connect()
	if err != nil {
		w.logger.Errorw("Failed to connect to device", "error", err)
		return fmt.Errorf("connect device: %w", err)
	}

	// Terminated: whatever happens from here on, readers observe the state
	// reverting to its disconnected defaults and the handle is released.
	defer w.store.reset()
	defer w.closeDevice(dev)

	if err := w.startUp(dev); err != nil {
		w.logger.Errorw("Failed initial device read", "error", err)
		return err
	}

	w.store.setConnected(true)
	w.logger.Info("Session active")

	if err := w.loop(dev); err != nil {
		w.logger.Errorw("Fatal device error, terminating session", "error", err)
		return err
	}

	w.logger.Info("Session ended")

	return nil
}

// startUp performs the initial status poll and, when a disc is already
// inserted, the initial catalog read. With no disc present the catalog stays
// absent until a poll observes an insertion.
func (w *worker) startUp(dev netmd.Device) error {
	status, err := dev.Status()
	if err != nil {
		return fmt.Errorf("initial status query: %w", err)
	}

	if w.store.applyPoll(status) {
		if err := w.refreshCatalog(dev); err != nil {
			return err
		}
	}

	return nil
}

// loop is the Active state: one command per iteration, strictly in enqueue
// order, multiplexed with the periodic poll. The idle tick only caps the
// poll's scheduling latency while no commands arrive; a command wakes the
// loop immediately.
func (w *worker) loop(dev netmd.Device) error {
	idle := time.NewTicker(w.idleTick)
	defer idle.Stop()

	lastPoll := time.Now()

	for {
		select {
		case cmd, ok := <-w.commands:
			if !ok {
				w.logger.Debug("Command queue closed, leaving loop")
				return nil
			}

			if _, disconnect := cmd.(Disconnect); disconnect {
				w.logger.Debug("Disconnect received, leaving loop")
				return nil
			}

			if err := w.dispatch(dev, cmd); err != nil {
				return err
			}

		case <-idle.C:
		}

		if time.Since(lastPoll) >= w.pollInterval {
			if err := w.poll(dev); err != nil {
				return err
			}
			lastPoll = time.Now()
		}
	}
}

func (w *worker) dispatch(dev netmd.Device, cmd Command) error {
	switch c := cmd.(type) {
	case PlaybackControl:
		w.logger.Debugw("Playback control", "action", c.Action)
		if c.Action == netmd.ActionPause {
			return dev.Pause()
		}
		return dev.Play()

	case Stop:
		w.logger.Debug("Stopping playback")
		return dev.Stop()

	case SkipTrack:
		w.logger.Debugw("Skipping track", "direction", c.Direction)
		return dev.Skip(c.Direction)

	case GoToTrack:
		// Compound: seek then play. Not atomic at the device level; if the
		// play call fails the fatal path applies with the device possibly
		// seeked but stopped.
		w.logger.Debugw("Going to track", "track", c.Index)
		if err := dev.Seek(c.Index); err != nil {
			return err
		}
		return dev.Play()

	case UploadTrack:
		return w.upload(dev, c.Path)

	case DeleteTrack:
		return w.delete(dev, c.Index)

	default:
		w.logger.Warnw("Ignoring unknown command", "command", fmt.Sprintf("%T", cmd))
		return nil
	}
}

// poll re-queries device status and reconciles the cached catalog with the
// reported disc presence. Every successful poll overwrites the status; no
// debounce is applied.
func (w *worker) poll(dev netmd.Device) error {
	status, err := dev.Status()
	if err != nil {
		return fmt.Errorf("status query: %w", err)
	}

	if w.store.applyPoll(status) {
		w.logger.Info("Disc inserted, reading catalog")
		return w.refreshCatalog(dev)
	}

	return nil
}

// refreshCatalog re-reads the disc's content listing, flagging the state as
// reading for the duration so consumers don't trust a catalog that is being
// replaced.
func (w *worker) refreshCatalog(dev netmd.Device) error {
	w.store.beginCatalogRead()

	disc, err := dev.Catalog()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	w.store.finishCatalogRead(&disc)
	w.logger.Debugw("Catalog read", "title", disc.Title, "tracks", len(disc.Tracks))

	return nil
}

func (w *worker) upload(dev netmd.Device, path string) error {
	w.logger.Infow("Uploading track", "path", path, "format", w.uploadFormat)

	data, err := w.readFile(path)
	if err != nil {
		return fmt.Errorf("read upload source: %w", err)
	}

	// The device can't accept a transfer while transitioning between modes.
	if err := dev.Stop(); err != nil {
		return err
	}

	upload := netmd.TrackUpload{
		Title:  trackTitleFromPath(path),
		Format: w.uploadFormat,
		Data:   data,
	}

	err = dev.Transfer(upload, w.uploadChunkSize, func(total, done int) {
		w.store.setProgress(util.Clamp01(float64(done) / float64(total)))
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	w.store.clearProgress()

	// The track's final position and metadata are only known by re-reading
	// the catalog.
	return w.refreshCatalog(dev)
}

func (w *worker) delete(dev netmd.Device, track int) error {
	w.logger.Infow("Deleting track", "track", track)

	// The catalog is about to go stale.
	w.store.beginCatalogRead()

	if err := dev.Stop(); err != nil {
		return err
	}
	if err := dev.Erase(track); err != nil {
		return fmt.Errorf("erase track %d: %w", track, err)
	}

	return w.refreshCatalog(dev)
}

func (w *worker) closeDevice(dev netmd.Device) {
	if err := dev.Close(); err != nil {
		w.logger.Warnw("Failed to close device handle", "error", err)
	} else {
		w.logger.Debug("Device handle released")
	}
}

// trackTitleFromPath derives the uploaded track's title from its source
// file name.
func trackTitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

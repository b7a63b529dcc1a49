// Package mdman coordinates exclusive access to a NetMD MiniDisc recorder:
// a background session worker owns the device, executes consumer commands in
// order, polls status periodically and publishes a concurrently-readable
// state snapshot.
package mdman

import (
	"embed"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/jeandeaual/go-locale"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"

	"github.com/ossidisc/mdman/pkg/mdman/util"
	"github.com/ossidisc/mdman/pkg/netmd"
	"github.com/ossidisc/mdman/pkg/notify"
)

const (

	// when this is set to anything, mdman won't use a tray icon
	envNoTray = "MDMAN_NO_TRAY_ICON"

	// how long to wait for an active session to drain its Disconnect on exit
	sessionStopTimeout = 5 * time.Second
)

// Manager is the main entity wiring the session supervisor to the desktop
// surface (tray, notifications, config).
type Manager struct {
	logger     *zap.SugaredLogger
	notifier   notify.Notifier
	config     *CanonicalConfig
	supervisor *Supervisor
	bundle     *i18n.Bundle
	localizer  *i18n.Localizer

	stopChannel chan bool
	version     string
	verbose     bool
}

//go:embed lang/active.*.toml
var langFS embed.FS

// NewManager creates a Manager instance driving the given device driver.
func NewManager(logger *zap.SugaredLogger, verbose bool, driver netmd.Driver) (*Manager, error) {
	logger = logger.Named("mdman")

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	_, err := bundle.LoadMessageFileFS(langFS, "lang/active.ja.toml")

	if err != nil {
		logger.Errorw("Failed to open ja message file", "error", err)
		return nil, fmt.Errorf("load message file: %w", err)
	}

	notifier, err := notify.NewDesktopNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create DesktopNotifier", "error", err)
		return nil, fmt.Errorf("create new DesktopNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	m := &Manager{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		stopChannel: make(chan bool),
		verbose:     verbose,
		bundle:      bundle,
	}

	m.supervisor = NewSupervisor(logger, driver, config.SessionSettings)

	logger.Debug("Created mdman instance")

	return m, nil
}

// Initialize sets up components and starts to run in the background
func (m *Manager) Initialize() error {
	m.logger.Debug("Initializing")

	// create temp initialLocalizer because we don't know the language yet
	initialLocalizer, err := m.GetSystemLocalizer()
	if err != nil {
		return err
	}

	// load the config for the first time
	if err := m.config.Load(initialLocalizer); err != nil {
		m.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	if err := m.updateLocalizer(); err != nil {
		m.logger.Errorw("Failed to update localizer", "error", err)
		return fmt.Errorf("update localizer: %w", err)
	}

	// decide whether to run with/without tray
	if _, noTraySet := os.LookupEnv(envNoTray); noTraySet {

		m.logger.Debugw("Running without tray icon", "reason", "envvar set")

		// a session can only start from the tray's connect item, so connect
		// right away when running headless
		m.Connect()

		m.setupInterruptHandler()
		m.run()

	} else {
		m.setupInterruptHandler()
		m.initializeTray(m.run)
	}

	return nil
}

// Supervisor exposes the session supervisor for programmatic consumers.
func (m *Manager) Supervisor() *Supervisor {
	return m.supervisor
}

// Connect starts a new device session unless one is already active, and
// notifies the user when it terminates.
func (m *Manager) Connect() {
	sess, err := m.supervisor.StartSession()
	if err != nil {
		m.logger.Warnw("Failed to start session", "error", err)
		return
	}

	go m.watchSession(sess)
}

// Disconnect asks the active session, if any, to tear down.
func (m *Manager) Disconnect() {
	m.supervisor.Send(Disconnect{})
}

func (m *Manager) watchSession(sess *Session) {
	<-sess.Done()

	if err := sess.Err(); err != nil {
		m.logger.Warnw("Session terminated with error", "id", sess.ID(), "error", err)

		if m.config.Notifications {
			title := m.localizer.MustLocalize(&i18n.LocalizeConfig{
				DefaultMessage: &i18n.Message{
					ID:    "SessionFailedNotificationTitle",
					Other: "Disconnected from MiniDisc device.",
				},
			})
			description := m.localizer.MustLocalize(&i18n.LocalizeConfig{
				DefaultMessage: &i18n.Message{
					ID:    "SessionFailedNotificationDescription",
					Other: "The device reported an error. Reconnect to continue.",
				},
			})
			m.notifier.Notify(title, description)
		}

		return
	}

	m.logger.Infow("Session ended", "id", sess.ID())
}

func (m *Manager) GetSystemLocalizer() (*i18n.Localizer, error) {
	lang, err := locale.GetLanguage()
	if err != nil {
		return nil, fmt.Errorf("get system locale: %w", err)
	}
	return i18n.NewLocalizer(m.bundle, lang, "en"), nil
}

func (m *Manager) updateLocalizer() error {
	lang := m.config.Language
	if lang == "auto" {
		var err error
		lang, err = locale.GetLanguage()

		if err != nil {
			m.logger.Errorw("Failed to get system locale", "error", err)
			return fmt.Errorf("get system locale: %w", err)
		}
	}
	m.logger.Infof("Selected language: %s", lang)
	m.localizer = i18n.NewLocalizer(m.bundle, lang, "en")

	return nil
}

// SetVersion causes mdman to add a version string to its tray menu if called before Initialize
func (m *Manager) SetVersion(version string) {
	m.version = version
}

// Verbose returns a boolean indicating whether mdman is running in verbose mode
func (m *Manager) Verbose() bool {
	return m.verbose
}

func (m *Manager) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		m.logger.Debugw("Interrupted", "signal", signal)
		m.signalStop()
	}()
}

func (m *Manager) run() {
	m.logger.Info("Run loop starting")

	// watch the config file for changes
	go m.config.WatchConfigFileChanges(m.localizer)

	// wait until stopped (gracefully)
	<-m.stopChannel
	m.logger.Debug("Stop channel signaled, terminating")

	if err := m.stop(); err != nil {
		m.logger.Warnw("Failed to stop mdman", "error", err)
		os.Exit(1)
	}
	// exit with 0
	os.Exit(0)
}

func (m *Manager) signalStop() {
	m.logger.Debug("Signalling stop channel")
	m.stopChannel <- true
}

func (m *Manager) stop() error {
	m.logger.Info("Stopping")

	m.config.StopWatchingConfigFile()

	// let an active session drain its disconnect before the process exits
	if sess := m.supervisor.Current(); sess != nil {
		sess.Send(Disconnect{})

		select {
		case <-sess.Done():
		case <-time.After(sessionStopTimeout):
			m.logger.Warnw("Timed out waiting for session to stop", "id", sess.ID())
		}
	}

	m.stopTray()

	// attempt to sync on exit - this won't necessarily work but can't harm
	_ = m.logger.Sync()

	return nil
}

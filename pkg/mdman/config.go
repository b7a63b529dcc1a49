package mdman

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/ossidisc/mdman/pkg/netmd"
	"github.com/ossidisc/mdman/pkg/notify"
)

// CanonicalConfig provides mdman's configuration, including its defaults and
// live reload on file changes.
type CanonicalConfig struct {
	PollInterval    time.Duration
	IdleTick        time.Duration
	UploadChunkSize int
	UploadFormat    string
	Notifications   bool
	Language        string

	logger   *zap.SugaredLogger
	notifier notify.Notifier

	userConfig *viper.Viper

	stopWatcherChannel chan bool
	reloadConsumers    []chan bool
}

const (
	userConfigName     = "config"
	userConfigFilepath = userConfigName + ".yaml"

	configKeyPollInterval    = "poll_interval"
	configKeyIdleTick        = "idle_tick"
	configKeyUploadChunkSize = "upload.chunk_size"
	configKeyUploadFormat    = "upload.format"
	configKeyNotifications   = "notifications"
	configKeyLanguage        = "language"

	// defaultPollInterval is how often the session worker re-queries device
	// status while idle.
	defaultPollInterval = 500 * time.Millisecond

	// defaultIdleTick caps worst-case poll latency while the worker waits
	// for commands. It is a responsiveness floor, not a concurrency knob.
	defaultIdleTick = 50 * time.Millisecond

	defaultUploadChunkSize = 0x400
	defaultUploadFormat    = "lp4"
)

var validUploadFormats = []string{"pcm", "lp2", "lp105", "lp4"}

// NewConfig creates a config instance with defaults set, without reading the
// user config file yet.
func NewConfig(logger *zap.SugaredLogger, notifier notify.Notifier) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	cc := &CanonicalConfig{
		Notifications:      true,
		logger:             logger,
		notifier:           notifier,
		stopWatcherChannel: make(chan bool),
	}

	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType("yaml")
	userConfig.AddConfigPath(".")

	userConfig.SetDefault(configKeyPollInterval, defaultPollInterval)
	userConfig.SetDefault(configKeyIdleTick, defaultIdleTick)
	userConfig.SetDefault(configKeyUploadChunkSize, defaultUploadChunkSize)
	userConfig.SetDefault(configKeyUploadFormat, defaultUploadFormat)
	userConfig.SetDefault(configKeyNotifications, true)
	userConfig.SetDefault(configKeyLanguage, "auto")

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads the user config file, falling back to defaults when it's
// missing. An unreadable or malformed file is an error.
func (cc *CanonicalConfig) Load(localizer *i18n.Localizer) error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	if err := cc.userConfig.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError

		if errors.As(err, &configFileNotFound) {
			cc.logger.Debug("No config file found, using defaults")
		} else {
			cc.logger.Warnw("Failed to read user config file", "error", err)
			cc.notifyInvalidConfig(localizer)
			return fmt.Errorf("read user config: %w", err)
		}
	}

	cc.populateFromViper()

	cc.logger.Infow("Loaded config successfully",
		"pollInterval", cc.PollInterval,
		"idleTick", cc.IdleTick,
		"uploadFormat", cc.UploadFormat)

	return nil
}

// populateFromViper copies values out of viper, replacing nonsensical ones
// with their defaults.
func (cc *CanonicalConfig) populateFromViper() {
	cc.PollInterval = cc.userConfig.GetDuration(configKeyPollInterval)
	if cc.PollInterval <= 0 {
		cc.logger.Warnw("Invalid poll interval, using default",
			"value", cc.PollInterval, "default", defaultPollInterval)
		cc.PollInterval = defaultPollInterval
	}

	cc.IdleTick = cc.userConfig.GetDuration(configKeyIdleTick)
	if cc.IdleTick <= 0 {
		cc.logger.Warnw("Invalid idle tick, using default",
			"value", cc.IdleTick, "default", defaultIdleTick)
		cc.IdleTick = defaultIdleTick
	}

	cc.UploadChunkSize = cc.userConfig.GetInt(configKeyUploadChunkSize)
	if cc.UploadChunkSize <= 0 {
		cc.logger.Warnw("Invalid upload chunk size, using default",
			"value", cc.UploadChunkSize, "default", defaultUploadChunkSize)
		cc.UploadChunkSize = defaultUploadChunkSize
	}

	cc.UploadFormat = strings.ToLower(cc.userConfig.GetString(configKeyUploadFormat))
	if !funk.ContainsString(validUploadFormats, cc.UploadFormat) {
		cc.logger.Warnw("Invalid upload format, using default",
			"value", cc.UploadFormat, "default", defaultUploadFormat)
		cc.UploadFormat = defaultUploadFormat
	}

	cc.Notifications = cc.userConfig.GetBool(configKeyNotifications)
	cc.Language = cc.userConfig.GetString(configKeyLanguage)
}

// SessionSettings converts the loaded config into the parameters a session
// worker snapshots at start.
func (cc *CanonicalConfig) SessionSettings() SessionSettings {
	format, err := netmd.ParseWireFormat(cc.UploadFormat)
	if err != nil {
		// populateFromViper validated the name already
		format = netmd.WireFormatLP4
	}

	return SessionSettings{
		PollInterval:    cc.PollInterval,
		IdleTick:        cc.IdleTick,
		UploadChunkSize: cc.UploadChunkSize,
		UploadFormat:    format,
	}
}

// SubscribeToChanges allows external components to receive a notification
// whenever the config is successfully reloaded.
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching the user config file, reloading it
// on every change until StopWatchingConfigFile is called. Meant to run on
// its own goroutine.
func (cc *CanonicalConfig) WatchConfigFileChanges(localizer *i18n.Localizer) {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", userConfigFilepath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cc.logger.Warnw("Failed to create filesystem watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(userConfigFilepath)); err != nil {
		cc.logger.Warnw("Failed to watch config file directory", "error", err)
		return
	}

	// editors may emit several events per save and might still be mid-write
	// when the first one arrives
	const reloadDelay = 50 * time.Millisecond

	for {
		select {
		case event := <-watcher.Events:
			if filepath.Base(event.Name) != userConfigFilepath {
				continue
			}
			if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Create == 0 {
				continue
			}

			cc.logger.Debugw("Config file modified, reloading", "event", event)
			time.Sleep(reloadDelay)

			if err := cc.Load(localizer); err != nil {
				cc.logger.Warnw("Failed to reload config file", "error", err)
				continue
			}

			cc.onConfigReloaded()

		case err := <-watcher.Errors:
			cc.logger.Warnw("Config file watcher error", "error", err)

		case <-cc.stopWatcherChannel:
			cc.logger.Debug("Stopping config file watcher")
			return
		}
	}
}

// StopWatchingConfigFile signals the watcher started by
// WatchConfigFileChanges to shut down.
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying config reload subscribers")

	for _, consumer := range cc.reloadConsumers {
		go func(consumer chan bool) {
			consumer <- true
		}(consumer)
	}
}

func (cc *CanonicalConfig) notifyInvalidConfig(localizer *i18n.Localizer) {
	if cc.notifier == nil || !cc.Notifications {
		return
	}

	title := localizer.MustLocalize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    "InvalidConfigTitle",
			Other: "Couldn't load configuration",
		},
	})
	description := localizer.MustLocalize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    "InvalidConfigDescription",
			Other: "Please make sure config.yaml is valid and accessible.",
		},
	})

	cc.notifier.Notify(title, description)
}

package mdman

import (
	"github.com/getlantern/systray"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/ossidisc/mdman/pkg/icon"
	"github.com/ossidisc/mdman/pkg/mdman/util"
)

func (m *Manager) initializeTray(onDone func()) {
	logger := m.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTemplateIcon(icon.Logo, icon.Logo)
		systray.SetTitle("mdman")
		systray.SetTooltip("mdman")

		connectTitle := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "ConnectTitle",
				Other: "Connect",
			},
		})
		connectDescription := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "ConnectDescription",
				Other: "Start a session with the attached MiniDisc device",
			},
		})
		connect := systray.AddMenuItem(connectTitle, connectDescription)

		disconnectTitle := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "DisconnectTitle",
				Other: "Disconnect",
			},
		})
		disconnectDescription := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "DisconnectDescription",
				Other: "End the current device session",
			},
		})
		disconnect := systray.AddMenuItem(disconnectTitle, disconnectDescription)

		configTitle := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "EditConfigTitle",
				Other: "Edit configuration",
			},
		})
		configDescription := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "EditConfigDescription",
				Other: "Open config file with the default editor",
			},
		})
		editConfig := systray.AddMenuItem(configTitle, configDescription)

		if m.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(m.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()

		quitTitle := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "QuitTitle",
				Other: "Quit",
			},
		})
		quitDescription := m.localizer.MustLocalize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "QuitDescription",
				Other: "Stop mdman and quit",
			},
		})
		quit := systray.AddMenuItem(quitTitle, quitDescription)

		// wait on things to happen
		go func() {
			for {
				select {

				// quit
				case <-quit.ClickedCh:
					logger.Info("Quit menu item clicked, stopping")

					m.signalStop()

				// start a device session
				case <-connect.ClickedCh:
					logger.Info("Connect menu item clicked, starting session")

					m.Connect()

				// end the device session
				case <-disconnect.ClickedCh:
					logger.Info("Disconnect menu item clicked, ending session")

					m.Disconnect()

				// edit config
				case <-editConfig.ClickedCh:
					logger.Info("Edit config menu item clicked, opening config for editing")

					if err := util.OpenExternal(logger, userConfigFilepath); err != nil {
						logger.Warnw("Failed to open config file for editing", "error", err)
					}
				}
			}
		}()

		// actually start the main runtime
		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	// start the tray icon
	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (m *Manager) stopTray() {
	m.logger.Debug("Quitting tray")
	systray.Quit()
}

// Package notify delivers desktop notifications for session lifecycle
// events.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier sends a notification to the user's desktop.
type Notifier interface {
	Notify(title string, message string)
}

// DesktopNotifier is a Notifier backed by the OS notification facility.
// Delivery failures are logged and otherwise ignored.
type DesktopNotifier struct {
	logger *zap.SugaredLogger
}

// NewDesktopNotifier creates a DesktopNotifier.
func NewDesktopNotifier(logger *zap.SugaredLogger) (*DesktopNotifier, error) {
	logger = logger.Named("notifier")

	dn := &DesktopNotifier{logger: logger}

	logger.Debug("Created desktop notifier instance")

	return dn, nil
}

// Notify implements Notifier.
func (dn *DesktopNotifier) Notify(title string, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		dn.logger.Errorw("Failed to send desktop notification", "error", err)
	}
}

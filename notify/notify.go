// Package notify raises desktop notifications for faults that need the
// user's attention when no terminal is visible.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

const appTitle = "voxkey"

// Notifier rate-limits nothing and never blocks the caller's loop;
// beeep failures are logged and otherwise ignored.
type Notifier struct {
	log     zerolog.Logger
	enabled bool
}

func New(enabled bool, logger zerolog.Logger) *Notifier {
	return &Notifier{log: logger, enabled: enabled}
}

// Fault raises an error-style notification.
func (n *Notifier) Fault(message string) {
	if !n.enabled {
		return
	}
	if err := beeep.Alert(appTitle, message, ""); err != nil {
		n.log.Debug().Err(err).Msg("desktop notification failed")
	}
}

// Info raises a plain notification.
func (n *Notifier) Info(message string) {
	if !n.enabled {
		return
	}
	if err := beeep.Notify(appTitle, message, ""); err != nil {
		n.log.Debug().Err(err).Msg("desktop notification failed")
	}
}

package observability

import (
	"log/slog"

	"github.com/aretw0/hsmgrid/pkg/domain"
)

// LogHooks logs every notification: state changes at info, unhandled
// transitions at warn and dispatch exceptions at error.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnStateChange: func(ev domain.StateChange) {
			logger.Info("state_change",
				"machine", ev.Machine.Name(),
				"from", ev.From,
				"to", ev.To,
				"event", ev.Event.Name,
			)
		},
		OnUnhandledTransition: func(ev domain.UnhandledTransition) {
			logger.Warn("unhandled_transition",
				"machine", ev.Machine.Name(),
				"state", ev.State,
				"event", ev.Event.Name,
			)
		},
		OnDispatchException: func(ev domain.DispatchException) {
			logger.Error("dispatch_exception",
				"machine", ev.Machine.Name(),
				"state", ev.State,
				"event", ev.Event.Name,
				"err", ev.Err,
			)
		},
	}
}

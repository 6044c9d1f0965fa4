//go:build !linux && !darwin

package notify

import "redraftd/internal/logging"

// logNotifier is the fallback where no native channel is wired; the tray UI
// still receives every event over IPC and renders it itself.
type logNotifier struct {
	log *logging.Logger
}

func newPlatformNotifier(log *logging.Logger) Notifier {
	if log == nil {
		log = logging.Default()
	}
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(event Event) error {
	n.log.Info("notification",
		"type", string(event.Type),
		"title", event.Title,
		"message", event.Message)
	return nil
}

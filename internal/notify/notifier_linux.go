//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"redraftd/internal/logging"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications.Notify"

	notifyTimeoutMs = 5000
)

// dbusNotifier posts desktop notifications over the session bus.
type dbusNotifier struct {
	log *logging.Logger
}

func newPlatformNotifier(log *logging.Logger) Notifier {
	if log == nil {
		log = logging.Default()
	}
	return &dbusNotifier{log: log}
}

func (n *dbusNotifier) Notify(event Event) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}

	icon := ""
	switch event.Type {
	case TypeSuccess:
		icon = "emblem-ok-symbolic"
	case TypeError:
		icon = "dialog-error"
	case TypeInfo:
		icon = "dialog-information"
	}

	obj := conn.Object(notifyService, dbus.ObjectPath(notifyPath))
	call := obj.Call(notifyInterface, 0,
		"redraft",            // app name
		uint32(0),            // no notification to replace
		icon,                 // themed icon
		event.Title,          // summary
		event.Message,        // body
		[]string{},           // no actions
		map[string]dbus.Variant{},
		int32(notifyTimeoutMs),
	)
	if call.Err != nil {
		return fmt.Errorf("notify call: %w", call.Err)
	}
	return nil
}

//go:build linux

package hotkey

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// XDG desktop portal endpoints for global shortcuts. The portal works on
// both X11 and Wayland sessions; direct X key grabs would not.
const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	shortcutsIface  = "org.freedesktop.portal.GlobalShortcuts"
	requestIface    = "org.freedesktop.portal.Request"
	activatedMember = "Activated"

	shortcutID = "rewrite-selection"
)

func listen(ctx context.Context, binding Binding, fire func()) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("%w: session bus: %v", ErrUnsupported, err)
	}

	portal := conn.Object(portalService, dbus.ObjectPath(portalPath))

	sessionHandle, err := createSession(conn, portal)
	if err != nil {
		return err
	}

	if err := bindShortcut(conn, portal, sessionHandle, binding); err != nil {
		return err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(shortcutsIface),
		dbus.WithMatchMember(activatedMember),
	); err != nil {
		return fmt.Errorf("hotkey: match Activated: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)

	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.RemoveSignal(signals)
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Name != shortcutsIface+"."+activatedMember {
					continue
				}
				// Activated(session o, shortcut_id s, timestamp t, options a{sv})
				if len(sig.Body) < 2 {
					continue
				}
				if id, ok := sig.Body[1].(string); ok && id == shortcutID {
					fire()
				}
			}
		}
	}()
	return nil
}

// createSession runs the portal's CreateSession request/response dance and
// returns the session handle.
func createSession(conn *dbus.Conn, portal dbus.BusObject) (dbus.ObjectPath, error) {
	responses, cleanup, err := watchRequests(conn)
	if err != nil {
		return "", err
	}
	defer cleanup()

	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant("redraft_req"),
		"session_handle_token": dbus.MakeVariant("redraft"),
	}

	var request dbus.ObjectPath
	if err := portal.Call(shortcutsIface+".CreateSession", 0, options).Store(&request); err != nil {
		return "", fmt.Errorf("%w: CreateSession: %v", ErrUnsupported, err)
	}

	results, err := awaitResponse(responses, request)
	if err != nil {
		return "", err
	}

	raw, ok := results["session_handle"]
	if !ok {
		return "", fmt.Errorf("hotkey: portal response missing session_handle")
	}
	switch v := raw.Value().(type) {
	case dbus.ObjectPath:
		return v, nil
	case string:
		return dbus.ObjectPath(v), nil
	default:
		return "", fmt.Errorf("hotkey: unexpected session_handle type %T", raw.Value())
	}
}

func bindShortcut(conn *dbus.Conn, portal dbus.BusObject, session dbus.ObjectPath, binding Binding) error {
	responses, cleanup, err := watchRequests(conn)
	if err != nil {
		return err
	}
	defer cleanup()

	shortcut := []struct {
		ID   string
		Data map[string]dbus.Variant
	}{{
		ID: shortcutID,
		Data: map[string]dbus.Variant{
			"description":       dbus.MakeVariant("Rewrite selected text"),
			"preferred_trigger": dbus.MakeVariant(portalTrigger(binding)),
		},
	}}

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("redraft_bind"),
	}

	var request dbus.ObjectPath
	err = portal.Call(shortcutsIface+".BindShortcuts", 0,
		session, shortcut, "", options).Store(&request)
	if err != nil {
		return fmt.Errorf("%w: BindShortcuts: %v", ErrUnsupported, err)
	}

	if _, err := awaitResponse(responses, request); err != nil {
		return err
	}
	return nil
}

// watchRequests subscribes to portal Request.Response signals.
func watchRequests(conn *dbus.Conn) (chan *dbus.Signal, func(), error) {
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, nil, fmt.Errorf("hotkey: match Response: %w", err)
	}

	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)
	cleanup := func() { conn.RemoveSignal(ch) }
	return ch, cleanup, nil
}

// awaitResponse waits for the Response signal on the given request path.
// Response code 0 is success; 1 is user cancellation; 2 is other failure.
func awaitResponse(signals chan *dbus.Signal, request dbus.ObjectPath) (map[string]dbus.Variant, error) {
	for sig := range signals {
		if sig.Path != request || sig.Name != requestIface+".Response" {
			continue
		}
		if len(sig.Body) < 2 {
			return nil, fmt.Errorf("hotkey: malformed portal response")
		}
		code, _ := sig.Body[0].(uint32)
		if code != 0 {
			return nil, fmt.Errorf("%w: portal refused (code %d)", ErrUnsupported, code)
		}
		results, _ := sig.Body[1].(map[string]dbus.Variant)
		return results, nil
	}
	return nil, fmt.Errorf("hotkey: portal connection closed")
}

// portalTrigger renders the binding in the XDG shortcuts syntax the portal
// expects, e.g. "CTRL+SHIFT+e".
func portalTrigger(b Binding) string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "CTRL")
	}
	if b.Shift {
		parts = append(parts, "SHIFT")
	}
	if b.Alt {
		parts = append(parts, "ALT")
	}
	if b.Meta {
		parts = append(parts, "LOGO")
	}
	parts = append(parts, string(b.Key))
	return strings.Join(parts, "+")
}

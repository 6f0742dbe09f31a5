// Package notify sends best-effort desktop notifications over D-Bus.
// Failures are logged and swallowed; a missing notification daemon
// never affects the application.
package notify

import (
	"github.com/godbus/dbus/v5"

	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
	appName      = "EVE Overview"
)

// Notifier sends desktop notifications on the session bus.
type Notifier struct {
	conn *dbus.Conn
}

// New connects to the session bus. A connection failure returns a
// Notifier that drops every notification.
func New() *Notifier {
	conn, err := dbus.SessionBus()
	if err != nil {
		logger.WithComponent("notify").Debug().Err(err).Msg("Session bus unavailable")
		return &Notifier{}
	}
	return &Notifier{conn: conn}
}

// Notify shows a transient notification.
func (n *Notifier) Notify(summary, body string) {
	if n == nil || n.conn == nil {
		return
	}

	obj := n.conn.Object(notifyDest, notifyPath)
	call := obj.Call(notifyMethod, 0,
		appName,
		uint32(0), // no notification to replace
		"",        // no icon
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(5000),
	)
	if call.Err != nil {
		logger.WithComponent("notify").Debug().Err(call.Err).Msg("Notification failed")
	}
}

// Close releases the bus connection.
func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

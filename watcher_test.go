package trayicon

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestWatcher() (*Watcher, *recordingBus, *recordingProperties) {
	bus := newRecordingBus()
	props := newRecordingProperties()

	w := newWatcher(bus, zerolog.Nop())
	w.props = props

	return w, bus, props
}

func TestWatcherRegisterItem(t *testing.T) {
	w, bus, props := newTestWatcher()

	require.Nil(t, w.RegisterStatusNotifierItem("org.kde.StatusNotifierItem-10-1", ":1.10"))
	require.Nil(t, w.RegisterStatusNotifierItem("/org/ayatana/NotificationItem/app", ":1.11"))
	require.Nil(t, w.RegisterStatusNotifierItem("org.kde.StatusNotifierItem-10-1", ":1.10"))

	items := []string{
		"org.kde.StatusNotifierItem-10-1/StatusNotifierItem",
		":1.11/org/ayatana/NotificationItem/app",
	}

	require.Equal(t, items, w.Items())
	require.Equal(t, items, props.get(StatusNotifierWatcherInterface, "RegisteredStatusNotifierItems"))
	require.Equal(t, 1, bus.active(":1.10"))
	require.Equal(t, 1, bus.active(":1.11"))

	require.Equal(t, []string{
		StatusNotifierWatcherInterface + ".StatusNotifierItemRegistered",
		StatusNotifierWatcherInterface + ".StatusNotifierItemRegistered",
	}, bus.names())
	require.Equal(t, []any{items[0]}, bus.signals[0].values)
	require.Equal(t, dbus.ObjectPath(StatusNotifierWatcherPath), bus.signals[0].path)
}

func TestWatcherItemOwnerLost(t *testing.T) {
	w, bus, props := newTestWatcher()

	require.Nil(t, w.RegisterStatusNotifierItem("org.kde.StatusNotifierItem-10-1", ":1.10"))
	require.Nil(t, w.RegisterStatusNotifierItem("org.kde.StatusNotifierItem-11-1", ":1.11"))
	bus.reset()

	w.nameLost(":1.99")
	require.Empty(t, bus.names())

	w.nameLost(":1.10")

	require.Equal(t, []string{"org.kde.StatusNotifierItem-11-1/StatusNotifierItem"}, w.Items())
	require.Equal(t, w.Items(), props.get(StatusNotifierWatcherInterface, "RegisteredStatusNotifierItems"))
	require.Equal(t, 0, bus.active(":1.10"))
	require.Equal(t, []string{StatusNotifierWatcherInterface + ".StatusNotifierItemUnregistered"}, bus.names())
	require.Equal(t, []any{"org.kde.StatusNotifierItem-10-1/StatusNotifierItem"}, bus.signals[0].values)
}

func TestWatcherHosts(t *testing.T) {
	w, bus, props := newTestWatcher()

	require.Equal(t, false, w.propertiesLocked()[StatusNotifierWatcherInterface]["IsStatusNotifierHostRegistered"].Value)

	require.Nil(t, w.RegisterStatusNotifierHost("org.kde.StatusNotifierHost-1"))
	require.Nil(t, w.RegisterStatusNotifierHost("org.kde.StatusNotifierHost-1"))

	require.Equal(t, []string{"org.kde.StatusNotifierHost-1"}, w.Hosts())
	require.Equal(t, true, props.get(StatusNotifierWatcherInterface, "IsStatusNotifierHostRegistered"))

	w.nameLost("org.kde.StatusNotifierHost-1")

	require.Empty(t, w.Hosts())
	require.Equal(t, false, props.get(StatusNotifierWatcherInterface, "IsStatusNotifierHostRegistered"))
	require.Equal(t, 0, bus.active("org.kde.StatusNotifierHost-1"))
	require.Equal(t, []string{
		StatusNotifierWatcherInterface + ".StatusNotifierHostRegistered",
		StatusNotifierWatcherInterface + ".StatusNotifierHostUnregistered",
	}, bus.names())
}

package trayicon

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSplitItemIdentifier(t *testing.T) {
	for identifier, want := range map[string]struct {
		service string
		path    dbus.ObjectPath
	}{
		":1.185/StatusNotifierItem":                          {":1.185", "/StatusNotifierItem"},
		"org.kde.StatusNotifierItem-10-1/StatusNotifierItem": {"org.kde.StatusNotifierItem-10-1", "/StatusNotifierItem"},
		":1.11/org/ayatana/NotificationItem/app":             {":1.11", "/org/ayatana/NotificationItem/app"},
		"org.example.App":                                    {"org.example.App", StatusNotifierItemPath},
		"org.example.App/":                                   {"org.example.App", StatusNotifierItemPath},
	} {
		service, path := splitItemIdentifier(identifier)
		require.Equal(t, want.service, service, identifier)
		require.Equal(t, want.path, path, identifier)
	}
}

func TestParseItemStatus(t *testing.T) {
	require.Equal(t, ItemStatusPassive, parseItemStatus("Passive"))
	require.Equal(t, ItemStatusNeedsAttention, parseItemStatus("NeedsAttention"))
	require.Equal(t, ItemStatusActive, parseItemStatus("Active"))
	require.Equal(t, ItemStatusActive, parseItemStatus("Sleeping"))
}

func newSubscribedMenu(t *testing.T, bus *recordingBus) *RemoteMenu {
	m := &RemoteMenu{
		service: "org.kde.StatusNotifierItem-10-1",
		owner:   ":1.10",
		bus:     bus,
		signals: make(chan *dbus.Signal, 1),
		log:     zerolog.Nop(),
	}

	require.NoError(t, m.subscribe())
	require.Equal(t, len(menuSignals), bus.total())
	require.Equal(t, 1, bus.channels)

	return m
}

func newSubscribedItem(t *testing.T, bus *recordingBus) *RemoteItem {
	item := &RemoteItem{
		service:  "org.kde.StatusNotifierItem-10-1",
		owner:    ":1.10",
		bus:      bus,
		signals:  make(chan *dbus.Signal, 1),
		log:      zerolog.Nop(),
		onUpdate: func() {},
	}

	require.NoError(t, item.subscribe())
	require.Equal(t, len(itemSignals), bus.total())
	require.Equal(t, 1, bus.channels)

	return item
}

func requireClosed(t *testing.T, signals chan *dbus.Signal) {
	_, ok := <-signals
	require.False(t, ok)
}

func TestRemoteMenuCloseTwice(t *testing.T) {
	bus := newRecordingBus()
	m := newSubscribedMenu(t, bus)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	require.Zero(t, bus.total())
	require.Zero(t, bus.channels)
	requireClosed(t, m.signals)
}

func TestRemoteMenuCloseRemoveMatchFails(t *testing.T) {
	bus := newRecordingBus()
	m := newSubscribedMenu(t, bus)

	bus.failRemove = errors.New("connection closed")

	require.ErrorIs(t, m.Close(), bus.failRemove)
	require.ErrorIs(t, m.Close(), bus.failRemove)

	require.Zero(t, bus.channels)
	requireClosed(t, m.signals)
}

func TestRemoteItemCloseTwice(t *testing.T) {
	bus := newRecordingBus()
	item := newSubscribedItem(t, bus)

	require.NoError(t, item.Close())
	require.NoError(t, item.Close())

	require.Zero(t, bus.total())
	require.Zero(t, bus.channels)
	requireClosed(t, item.signals)
}

func TestRemoteItemCloseRemoveMatchFails(t *testing.T) {
	bus := newRecordingBus()
	item := newSubscribedItem(t, bus)

	bus.failRemove = errors.New("connection closed")

	require.ErrorIs(t, item.Close(), bus.failRemove)
	require.Zero(t, bus.channels)
	requireClosed(t, item.signals)
}

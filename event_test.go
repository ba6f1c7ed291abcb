package trayicon

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter(signals map[int32]string) (*router[string], *recordingCallback[string]) {
	recorder := &recordingCallback[string]{}

	return &router[string]{
		lookup: func(id int32) (string, bool) {
			signal, ok := signals[id]
			return signal, ok
		},
		callback: newCallback(recorder.record),
		log:      zerolog.Nop(),
	}, recorder
}

func TestRouteClicked(t *testing.T) {
	r, recorder := newTestRouter(map[int32]string{3: "open"})

	r.route(3, EventClicked, dbus.MakeVariant(int32(0)), 0)
	r.route(2, EventClicked, dbus.MakeVariant(int32(0)), 0)

	require.Equal(t, []Event[string]{MenuEvent("open")}, recorder.all())
}

func TestRouteOpenedRoot(t *testing.T) {
	r, recorder := newTestRouter(nil)

	r.route(0, EventOpened, dbus.Variant{}, 0)
	r.route(1, EventOpened, dbus.Variant{}, 0)
	r.route(0, EventClosed, dbus.Variant{}, 0)
	r.route(0, EventHovered, dbus.Variant{}, 0)
	r.route(0, "x-vendor-event", dbus.Variant{}, 0)

	require.Equal(t, []Event[string]{TrayEvent[string](ClickLeft)}, recorder.all())
}

func TestRouteGroup(t *testing.T) {
	r, recorder := newTestRouter(map[int32]string{1: "a", 2: "b"})

	failed := r.routeGroup([]menuEvent{
		{ID: 2, EventID: EventClicked},
		{ID: 9, EventID: EventClicked},
		{ID: 1, EventID: EventClicked},
	})

	require.NotNil(t, failed)
	require.Empty(t, failed)
	require.Equal(t, []Event[string]{MenuEvent("b"), MenuEvent("a")}, recorder.all())
}

func TestNilCallback(t *testing.T) {
	cb := newCallback[int](nil)
	require.NotPanics(t, func() { cb.call(TrayEvent[int](ClickRight)) })
}

func TestClickTypeString(t *testing.T) {
	require.Equal(t, "left", ClickLeft.String())
	require.Equal(t, "right", ClickRight.String())
	require.Equal(t, "double", ClickDouble.String())
	require.Equal(t, "unknown", ClickType(7).String())
}

package trayicon

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// ClickType describes how the user clicked the tray icon.
//
// Hosts differ in what they report. On most of them opening the root menu is
// reported as [ClickLeft], and every activation after the first one as
// [ClickDouble].
type ClickType int

const (
	ClickLeft ClickType = iota
	ClickRight
	ClickDouble
)

func (c ClickType) String() string {
	switch c {
	case ClickLeft:
		return "left"
	case ClickRight:
		return "right"
	case ClickDouble:
		return "double"
	default:
		return "unknown"
	}
}

// EventKind distinguishes tray clicks from menu activations.
type EventKind int

const (
	// EventTray is emitted when the tray icon itself is clicked.
	EventTray EventKind = iota

	// EventMenu is emitted when a menu button is clicked.
	EventMenu
)

// Event describes how the user interacted with the tray icon or its menu.
type Event[T any] struct {
	Kind EventKind

	// Click is set for [EventTray].
	Click ClickType

	// Signal is a copy of the signal of the clicked [MenuItem]. It is set for
	// [EventMenu].
	Signal T
}

// TrayEvent returns an [EventTray] event.
func TrayEvent[T any](click ClickType) Event[T] {
	return Event[T]{Kind: EventTray, Click: click}
}

// MenuEvent returns an [EventMenu] event.
func MenuEvent[T any](signal T) Event[T] {
	return Event[T]{Kind: EventMenu, Signal: signal}
}

// Events of the com.canonical.dbusmenu.Event method.
const (
	EventClicked = "clicked"
	EventHovered = "hovered"
	EventOpened  = "opened"
	EventClosed  = "closed"
)

// callbackFunc serializes calls to the user callback. It is shared by every
// exported object of a tray.
type callbackFunc[T any] struct {
	mu sync.Mutex
	fn func(Event[T])
}

func newCallback[T any](fn func(Event[T])) *callbackFunc[T] {
	if fn == nil {
		fn = func(Event[T]) {}
	}

	return &callbackFunc[T]{fn: fn}
}

func (c *callbackFunc[T]) call(event Event[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fn(event)
}

// signalLookup returns the signal stored at id, if any.
type signalLookup[T any] func(id int32) (T, bool)

// router maps dbusmenu events to tray events.
type router[T any] struct {
	lookup   signalLookup[T]
	callback *callbackFunc[T]
	log      zerolog.Logger
}

// route handles a single event. The signal is looked up before the callback
// runs, so the callback may replace the menu.
func (r *router[T]) route(id int32, eventID string, data dbus.Variant, timestamp uint32) {
	r.log.Trace().
		Int32("id", id).
		Str("event", eventID).
		Interface("data", data.Value()).
		Uint32("timestamp", timestamp).
		Msg("event")

	switch eventID {
	case EventClicked:
		signal, ok := r.lookup(id)
		if !ok {
			return
		}

		r.callback.call(MenuEvent(signal))

	case EventOpened:
		if id == 0 {
			r.callback.call(TrayEvent[T](ClickLeft))
		}
	}
}

// menuEvent is the wire form of a single event of EventGroup, (isvu).
type menuEvent struct {
	ID        int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}

// routeGroup handles events in order. Failed ids are never reported.
func (r *router[T]) routeGroup(events []menuEvent) []int32 {
	for _, event := range events {
		r.route(event.ID, event.EventID, event.Data, event.Timestamp)
	}

	return []int32{}
}

package trayicon

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	StatusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      = "/StatusNotifierWatcher"
)

// signalMatcher subscribes to signals and emits them. It is implemented by
// [dbus.Conn].
type signalMatcher interface {
	signalEmitter
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

// watchedItem is an item registered in the [Watcher].
type watchedItem struct {
	// Identifier of the item, "<service>/<path>".
	identifier string

	// Unique name of the connection that registered the item.
	owner string
}

// Watcher implements [StatusNotifierWatcher]. Only one watcher can be present
// on the session bus, and desktops usually provide their own. A Watcher is
// useful when they do not.
//
// [StatusNotifierWatcher]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierWatcher/
type Watcher struct {
	conn    *dbus.Conn
	bus     signalMatcher
	log     zerolog.Logger
	signals chan *dbus.Signal

	mu     sync.Mutex
	closed bool
	props  propertySetter
	hosts  []string
	items  []watchedItem
}

// NewWatcher returns a new [Watcher] that logs to the global logger.
func NewWatcher(conn *dbus.Conn) *Watcher {
	w := newWatcher(conn, log.Logger)
	w.conn = conn

	return w
}

func newWatcher(bus signalMatcher, logger zerolog.Logger) *Watcher {
	return &Watcher{
		bus:     bus,
		log:     logger.With().Str("component", "watcher").Logger(),
		signals: make(chan *dbus.Signal, 64),
	}
}

// Listen requests the name of the watcher, exports it and starts tracking
// owners of registered items and hosts.
func (w *Watcher) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("listen: watcher is closed")
	}

	reply, err := w.conn.RequestName(StatusNotifierWatcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", StatusNotifierWatcherInterface, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s: %w", StatusNotifierWatcherInterface, ErrNameTaken)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", StatusNotifierWatcherInterface, err)
	}

	props, err := prop.Export(w.conn, StatusNotifierWatcherPath, w.propertiesLocked())
	if err != nil {
		return fmt.Errorf("listen: failed to export properties: %w", err)
	}

	w.props = props

	node := &introspect.Node{
		Name: StatusNotifierWatcherPath,
		Interfaces: []introspect.Interface{
			prop.IntrospectData,
			{
				Name:       StatusNotifierWatcherInterface,
				Methods:    introspect.Methods(w),
				Properties: props.Introspection(StatusNotifierWatcherInterface),
				Signals: []introspect.Signal{
					{Name: "StatusNotifierItemRegistered", Args: []introspect.Arg{{Type: "s"}}},
					{Name: "StatusNotifierItemUnregistered", Args: []introspect.Arg{{Type: "s"}}},
					{Name: "StatusNotifierHostRegistered"},
					{Name: "StatusNotifierHostUnregistered"},
				},
			},
		},
	}

	if err := w.conn.Export(introspect.NewIntrospectable(node), StatusNotifierWatcherPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("listen: failed to export introspection: %w", err)
	}

	w.conn.Signal(w.signals)
	go w.handleSignals()

	w.log.Info().Msg("watcher listening")

	return nil
}

// Close releases the name of the watcher and stops tracking owners.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if _, err := w.conn.ReleaseName(StatusNotifierWatcherInterface); err != nil {
		return err
	}

	for _, host := range w.hosts {
		w.unwatchOwner(host)
	}

	for _, item := range w.items {
		w.unwatchOwner(item.owner)
	}

	w.conn.RemoveSignal(w.signals)
	close(w.signals)

	w.closed = true

	return nil
}

// Items returns identifiers of registered items.
func (w *Watcher) Items() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.itemIdentifiersLocked()
}

// Hosts returns names of registered hosts.
func (w *Watcher) Hosts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.hosts)
}

// RegisterStatusNotifierItem implements
// org.kde.StatusNotifierWatcher.RegisterStatusNotifierItem.
//
// Service is either a bus name, in which case the item is expected at
// [StatusNotifierItemPath], or an object path on the connection of the caller.
func (w *Watcher) RegisterStatusNotifierItem(service string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	identifier := service + StatusNotifierItemPath

	if strings.HasPrefix(service, "/") {
		identifier = string(sender) + service
	}

	if slices.ContainsFunc(w.items, func(item watchedItem) bool { return item.identifier == identifier }) {
		return nil
	}

	w.items = append(w.items, watchedItem{identifier: identifier, owner: string(sender)})

	// Whenever the owner disappears, D-Bus sends NameOwnerChanged with an
	// empty new owner. The item is unregistered then.
	w.watchOwner(string(sender))

	w.log.Debug().Str("item", identifier).Msg("item registered")

	w.emit("StatusNotifierItemRegistered", identifier)
	w.updatePropertiesLocked()

	return nil
}

// RegisterStatusNotifierHost implements
// org.kde.StatusNotifierWatcher.RegisterStatusNotifierHost.
func (w *Watcher) RegisterStatusNotifierHost(service string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.hosts, service) {
		return nil
	}

	w.hosts = append(w.hosts, service)
	w.watchOwner(service)

	w.log.Debug().Str("host", service).Msg("host registered")

	w.emit("StatusNotifierHostRegistered")
	w.updatePropertiesLocked()

	return nil
}

func (w *Watcher) handleSignals() {
	for signal := range w.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}

		name, ok := signal.Body[0].(string)
		if !ok {
			continue
		}

		newOwner, ok := signal.Body[2].(string)
		if !ok {
			continue
		}

		if newOwner == "" {
			w.nameLost(name)
		}
	}
}

// nameLost unregisters hosts and items owned by name.
func (w *Watcher) nameLost(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false

	if idx := slices.Index(w.hosts, name); idx >= 0 {
		w.hosts = slices.Delete(w.hosts, idx, idx+1)
		w.unwatchOwner(name)
		w.emit("StatusNotifierHostUnregistered")
		w.log.Debug().Str("host", name).Msg("host unregistered")
		changed = true
	}

	kept := w.items[:0]

	for _, item := range w.items {
		if item.owner != name {
			kept = append(kept, item)
			continue
		}

		w.emit("StatusNotifierItemUnregistered", item.identifier)
		w.log.Debug().Str("item", item.identifier).Msg("item unregistered")
		changed = true
	}

	if len(kept) < len(w.items) {
		w.unwatchOwner(name)
	}

	w.items = kept

	if changed {
		w.updatePropertiesLocked()
	}
}

func (w *Watcher) watchOwner(name string) {
	if err := w.bus.AddMatchSignal(ownerChangedMatch(name)...); err != nil {
		w.log.Warn().Err(err).Str("name", name).Msg("failed to watch owner")
	}
}

func (w *Watcher) unwatchOwner(name string) {
	if err := w.bus.RemoveMatchSignal(ownerChangedMatch(name)...); err != nil {
		w.log.Warn().Err(err).Str("name", name).Msg("failed to stop watching owner")
	}
}

func ownerChangedMatch(name string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	}
}

func (w *Watcher) emit(member string, values ...any) {
	if err := w.bus.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+"."+member, values...); err != nil {
		w.log.Warn().Err(err).Str("signal", member).Msg("failed to emit signal")
	}
}

func (w *Watcher) itemIdentifiersLocked() []string {
	identifiers := make([]string, 0, len(w.items))

	for _, item := range w.items {
		identifiers = append(identifiers, item.identifier)
	}

	return identifiers
}

func (w *Watcher) updatePropertiesLocked() {
	if w.props == nil {
		return
	}

	w.props.SetMust(StatusNotifierWatcherInterface, "RegisteredStatusNotifierItems", w.itemIdentifiersLocked())
	w.props.SetMust(StatusNotifierWatcherInterface, "IsStatusNotifierHostRegistered", len(w.hosts) > 0)
}

func (w *Watcher) propertiesLocked() prop.Map {
	return prop.Map{
		StatusNotifierWatcherInterface: map[string]*prop.Prop{
			"RegisteredStatusNotifierItems": {
				Value: w.itemIdentifiersLocked(),
				Emit:  prop.EmitFalse,
			},
			"IsStatusNotifierHostRegistered": {
				Value: len(w.hosts) > 0,
				Emit:  prop.EmitFalse,
			},
			"ProtocolVersion": {
				Value: int32(0),
				Emit:  prop.EmitConst,
			},
		},
	}
}

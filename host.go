package trayicon

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const StatusNotifierHostInterface = "org.kde.StatusNotifierHost"

// Host implements [StatusNotifierHost]. It tracks the items registered in the
// watcher and resolves them into [RemoteItem] values.
//
// [StatusNotifierHost]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierHost/
type Host struct {
	name        string
	watcherName string
	conn        *dbus.Conn
	signals     chan *dbus.Signal
	log         zerolog.Logger

	mu             sync.RWMutex
	closed         bool
	items          map[string]*RemoteItem
	onRegistered   func(identifier string, item *RemoteItem)
	onUnregistered func(identifier string, item *RemoteItem)
}

// NewHost returns a new [Host] named after id, such as the pid of the
// process. It talks to the watcher with the given bus name, usually
// [StatusNotifierWatcherInterface].
func NewHost(conn *dbus.Conn, id any, watcherName string) *Host {
	name := fmt.Sprintf("%s-%v", StatusNotifierHostInterface, id)

	return &Host{
		name:           name,
		watcherName:    watcherName,
		conn:           conn,
		signals:        make(chan *dbus.Signal, 64),
		log:            log.Logger.With().Str("component", "host").Str("host", name).Logger(),
		items:          make(map[string]*RemoteItem),
		onRegistered:   func(string, *RemoteItem) {},
		onUnregistered: func(string, *RemoteItem) {},
	}
}

// Name returns the bus name of the host.
func (h *Host) Name() string {
	return h.name
}

// OnRegistered sets the callback that runs when an item is registered. It
// must be set before [Host.Listen] to see items that are already registered.
func (h *Host) OnRegistered(callback func(identifier string, item *RemoteItem)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onRegistered = callback
}

// OnUnregistered sets the callback that runs when an item is unregistered.
// The item is closed after the callback returns.
func (h *Host) OnUnregistered(callback func(identifier string, item *RemoteItem)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onUnregistered = callback
}

// Listen requests the name of the host, registers it in the watcher, resolves
// items that are already registered and starts tracking new ones.
func (h *Host) Listen() error {
	identifiers, err := h.listen()
	if err != nil {
		return err
	}

	for _, identifier := range identifiers {
		h.add(identifier)
	}

	return nil
}

// listen registers the host and returns identifiers of items that are
// already registered.
func (h *Host) listen() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("listen: host is closed")
	}

	reply, err := h.conn.RequestName(h.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("listen: failed to request name %s: %w", h.name, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("listen: name %s: %w", h.name, ErrNameTaken)
	}

	watcher := h.conn.Object(h.watcherName, StatusNotifierWatcherPath)

	if call := watcher.Call(StatusNotifierWatcherInterface+".RegisterStatusNotifierHost", 0, h.name); call.Err != nil {
		return nil, fmt.Errorf("listen: failed to register host: %w", call.Err)
	}

	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.AddMatchSignal(h.match(member)...); err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
	}

	h.conn.Signal(h.signals)
	go h.handleSignals()

	registered, err := watcher.GetProperty(StatusNotifierWatcherInterface + ".RegisteredStatusNotifierItems")
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to get registered items")
		return nil, nil
	}

	var identifiers []string
	if err := registered.Store(&identifiers); err != nil {
		h.log.Warn().Err(err).Msg("malformed registered items")
		return nil, nil
	}

	return identifiers, nil
}

// Close releases the name of the host, stops tracking items and closes them.
// A closed host cannot be reused.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	if _, err := h.conn.ReleaseName(h.name); err != nil {
		return err
	}

	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.RemoveMatchSignal(h.match(member)...); err != nil {
			return err
		}
	}

	h.conn.RemoveSignal(h.signals)
	close(h.signals)

	for identifier, item := range h.items {
		if err := item.Close(); err != nil {
			h.log.Debug().Err(err).Str("item", identifier).Msg("failed to close item")
		}
	}

	clear(h.items)
	h.closed = true

	return nil
}

// Items returns the registered items ordered by identifier.
func (h *Host) Items() []*RemoteItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]*RemoteItem, 0, len(h.items))

	for _, identifier := range slices.Sorted(maps.Keys(h.items)) {
		items = append(items, h.items[identifier])
	}

	return items
}

// Item returns the item with the given identifier.
func (h *Host) Item(identifier string) (*RemoteItem, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	item, ok := h.items[identifier]
	return item, ok
}

func (h *Host) match(member string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(StatusNotifierWatcherInterface),
		dbus.WithMatchMember(member),
	}
}

func (h *Host) handleSignals() {
	for signal := range h.signals {
		member, ok := strings.CutPrefix(signal.Name, StatusNotifierWatcherInterface+".")
		if !ok || len(signal.Body) < 1 {
			continue
		}

		identifier, ok := signal.Body[0].(string)
		if !ok {
			continue
		}

		switch member {
		case "StatusNotifierItemRegistered":
			h.add(identifier)
		case "StatusNotifierItemUnregistered":
			h.remove(identifier)
		}
	}
}

// add resolves the item and adds it to the host. Callbacks run without the
// lock held, so they may call methods of the host.
func (h *Host) add(identifier string) {
	if _, ok := h.Item(identifier); ok {
		return
	}

	item, err := NewRemoteItemFromIdentifier(h.conn, identifier)
	if err != nil {
		h.log.Debug().Err(err).Str("item", identifier).Msg("failed to resolve item")
		return
	}

	h.mu.Lock()
	if _, ok := h.items[identifier]; ok || h.closed {
		h.mu.Unlock()
		_ = item.Close()
		return
	}

	h.items[identifier] = item
	onRegistered := h.onRegistered
	h.mu.Unlock()

	h.log.Debug().Str("item", identifier).Msg("item registered")
	onRegistered(identifier, item)
}

func (h *Host) remove(identifier string) {
	h.mu.Lock()
	item, ok := h.items[identifier]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.items, identifier)
	onUnregistered := h.onUnregistered
	h.mu.Unlock()

	h.log.Debug().Str("item", identifier).Msg("item unregistered")
	onUnregistered(identifier, item)

	if err := item.Close(); err != nil {
		h.log.Debug().Err(err).Str("item", identifier).Msg("failed to close item")
	}
}

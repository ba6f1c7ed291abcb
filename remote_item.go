package trayicon

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const getProperty = "org.freedesktop.DBus.Properties.Get"

// signalSubscriber is the part of [dbus.Conn] that delivers signals of remote
// objects.
type signalSubscriber interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// itemSignals lists the signals of StatusNotifierItem together with the
// properties that have to be fetched again when they arrive.
var itemSignals = map[string][]string{
	"NewTitle":         {"Title"},
	"NewToolTip":       {"ToolTip"},
	"NewStatus":        {"Status"},
	"NewIcon":          {"IconName", "IconPixmap"},
	"NewOverlayIcon":   {"OverlayIconName", "OverlayIconPixmap"},
	"NewAttentionIcon": {"AttentionIconName", "AttentionIconPixmap", "AttentionMovieName"},
}

// RemoteItem is a [StatusNotifierItem] published by another connection, as
// seen by a tray host.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierItem/
type RemoteItem struct {
	conn     *dbus.Conn
	bus      signalSubscriber
	object   dbus.BusObject
	service  string
	owner    string
	signals  chan *dbus.Signal
	log      zerolog.Logger
	onUpdate func()

	closeOnce sync.Once
	closeErr  error

	mu sync.RWMutex

	// Unique identifier of the application, such as its name.
	ID string

	// Name that describes the application, can be more descriptive than ID.
	Title string

	// Text of the tooltip.
	Tooltip string

	Category ItemCategory
	Status   ItemStatus
	WindowID uint32

	// Icon of the item. IconName is a [Freedesktop-compliant] icon name, hosts
	// should prefer it over IconPixmap if both are available.
	//
	// [Freedesktop-compliant]: https://specifications.freedesktop.org/icon-naming-spec/latest/
	IconName   string
	IconPixmap IconSet

	OverlayIconName   string
	OverlayIconPixmap IconSet

	AttentionIconName   string
	AttentionIconPixmap IconSet
	AttentionMovieName  string

	// Whether the item only supports the context menu.
	IsMenu bool

	// Object path of the com.canonical.dbusmenu object of the item.
	MenuPath dbus.ObjectPath
}

// NewRemoteItem resolves the item published by service at path.
func NewRemoteItem(conn *dbus.Conn, service string, path dbus.ObjectPath) (*RemoteItem, error) {
	obj := conn.Object(service, path)

	if call := obj.Call(getProperty, dbus.FlagNoAutoStart, StatusNotifierItemInterface, "Id"); call.Err != nil {
		return nil, fmt.Errorf("failed to resolve item %s%s: %w", service, path, call.Err)
	}

	owner, err := nameOwner(conn, service)
	if err != nil {
		return nil, err
	}

	item := &RemoteItem{
		conn:     conn,
		bus:      conn,
		object:   obj,
		service:  service,
		owner:    owner,
		signals:  make(chan *dbus.Signal, 128),
		log:      log.Logger.With().Str("component", "remote item").Str("service", service).Logger(),
		onUpdate: func() {},
	}

	item.refresh("Id", "Category", "WindowId", "ItemIsMenu", "Menu")

	for _, props := range itemSignals {
		item.refresh(props...)
	}

	if err := item.subscribe(); err != nil {
		return nil, fmt.Errorf("item %s: %w", service, err)
	}

	return item, nil
}

// NewRemoteItemFromIdentifier resolves an item from its identifier, as it is
// listed by the watcher.
func NewRemoteItemFromIdentifier(conn *dbus.Conn, identifier string) (*RemoteItem, error) {
	service, path := splitItemIdentifier(identifier)
	return NewRemoteItem(conn, service, path)
}

// Service returns the bus name of the item.
func (item *RemoteItem) Service() string {
	return item.service
}

// OnUpdate sets the callback that runs after properties of the item are fetched
// again.
func (item *RemoteItem) OnUpdate(callback func()) {
	item.mu.Lock()
	defer item.mu.Unlock()

	item.onUpdate = callback
}

// Menu returns the menu of the item.
func (item *RemoteItem) Menu() (*RemoteMenu, error) {
	item.mu.RLock()
	path := item.MenuPath
	item.mu.RUnlock()

	if path == "" || path == "/" {
		return nil, fmt.Errorf("item %s has no menu", item.service)
	}

	return NewRemoteMenu(item.conn, item.service, path)
}

// Activate asks the item for activation, typically after a left click. The
// coordinates are a hint where to show windows.
func (item *RemoteItem) Activate(x, y int32) error {
	return item.call("Activate", x, y)
}

// SecondaryActivate asks the item for a less important activation, typically
// after a middle click.
func (item *RemoteItem) SecondaryActivate(x, y int32) error {
	return item.call("SecondaryActivate", x, y)
}

// ContextMenu asks the item to show its context menu.
func (item *RemoteItem) ContextMenu(x, y int32) error {
	return item.call("ContextMenu", x, y)
}

// Scroll sends a scroll event to the item. Valid orientations are
// "horizontal" and "vertical".
func (item *RemoteItem) Scroll(delta int32, orientation string) error {
	return item.call("Scroll", delta, orientation)
}

func (item *RemoteItem) call(method string, args ...any) error {
	return item.object.Call(StatusNotifierItemInterface+"."+method, dbus.FlagNoAutoStart, args...).Err
}

// Close stops tracking updates of the item. Calling Close more than once
// returns the result of the first call.
func (item *RemoteItem) Close() error {
	item.closeOnce.Do(func() {
		var errs []error

		for member := range itemSignals {
			if err := item.bus.RemoveMatchSignal(item.match(member)...); err != nil {
				errs = append(errs, err)
			}
		}

		item.bus.RemoveSignal(item.signals)
		close(item.signals)

		item.closeErr = errors.Join(errs...)
	})

	return item.closeErr
}

func (item *RemoteItem) match(member string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(StatusNotifierItemInterface),
		dbus.WithMatchMember(member),
		dbus.WithMatchSender(item.service),
	}
}

func (item *RemoteItem) subscribe() error {
	for member := range itemSignals {
		if err := item.bus.AddMatchSignal(item.match(member)...); err != nil {
			return err
		}
	}

	item.bus.Signal(item.signals)

	go func() {
		for signal := range item.signals {
			if signal.Sender != item.owner {
				continue
			}

			member, ok := strings.CutPrefix(signal.Name, StatusNotifierItemInterface+".")
			if !ok {
				continue
			}

			props, ok := itemSignals[member]
			if !ok {
				continue
			}

			item.log.Trace().Str("signal", member).Msg("item updated")
			item.refresh(props...)

			item.mu.RLock()
			onUpdate := item.onUpdate
			item.mu.RUnlock()

			onUpdate()
		}
	}()

	return nil
}

// refresh fetches the named properties and stores them in the item.
func (item *RemoteItem) refresh(names ...string) {
	for _, name := range names {
		v, err := item.object.GetProperty(StatusNotifierItemInterface + "." + name)
		if err != nil {
			item.log.Trace().Err(err).Str("property", name).Msg("failed to get property")
			continue
		}

		item.mu.Lock()
		item.store(name, v)
		item.mu.Unlock()
	}
}

func (item *RemoteItem) store(name string, v dbus.Variant) {
	icon := func(dst *IconSet) {
		if icons, err := NewIconSetFromDBusProperty(v.Value()); err == nil {
			*dst = icons
		}
	}

	switch name {
	case "Id":
		_ = v.Store(&item.ID)
	case "Title":
		_ = v.Store(&item.Title)
	case "Category":
		var category string
		_ = v.Store(&category)
		item.Category = parseItemCategory(category)
	case "Status":
		var status string
		_ = v.Store(&status)
		item.Status = parseItemStatus(status)
	case "WindowId":
		var id int32
		if v.Store(&id) == nil {
			item.WindowID = uint32(id)
		}
	case "ItemIsMenu":
		_ = v.Store(&item.IsMenu)
	case "Menu":
		_ = v.Store(&item.MenuPath)
	case "ToolTip":
		// (icon name, icon pixmap, title, description)
		if fields, ok := v.Value().([]any); ok && len(fields) >= 3 {
			if title, ok := fields[2].(string); ok {
				item.Tooltip = title
			}
		}
	case "IconName":
		_ = v.Store(&item.IconName)
	case "IconPixmap":
		icon(&item.IconPixmap)
	case "OverlayIconName":
		_ = v.Store(&item.OverlayIconName)
	case "OverlayIconPixmap":
		icon(&item.OverlayIconPixmap)
	case "AttentionIconName":
		_ = v.Store(&item.AttentionIconName)
	case "AttentionIconPixmap":
		icon(&item.AttentionIconPixmap)
	case "AttentionMovieName":
		_ = v.Store(&item.AttentionMovieName)
	}
}

// nameOwner returns the unique name of the connection that owns service.
// Signals are always sent by unique names.
func nameOwner(conn *dbus.Conn, service string) (string, error) {
	if strings.HasPrefix(service, ":") {
		return service, nil
	}

	var owner string
	if err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, service).Store(&owner); err != nil {
		return "", fmt.Errorf("failed to get owner of %s: %w", service, err)
	}

	return owner, nil
}

// parseItemStatus returns the status with the given name, falling back to
// [ItemStatusActive].
func parseItemStatus(name string) ItemStatus {
	switch ItemStatus(name) {
	case ItemStatusPassive, ItemStatusNeedsAttention:
		return ItemStatus(name)
	default:
		return ItemStatusActive
	}
}

// splitItemIdentifier returns the service and the object path of an item
// identifier, e.g. ":1.185/StatusNotifierItem". An identifier without a path
// refers to [StatusNotifierItemPath].
func splitItemIdentifier(identifier string) (string, dbus.ObjectPath) {
	service, path, ok := strings.Cut(identifier, "/")
	if !ok || path == "" {
		return service, StatusNotifierItemPath
	}

	return service, dbus.ObjectPath("/" + path)
}

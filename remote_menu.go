package trayicon

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var menuSignals = []string{
	"ItemsPropertiesUpdated",
	"LayoutUpdated",
	"ItemActivationRequested",
}

// RemoteMenu is a com.canonical.dbusmenu object published by another
// connection, such as the menu of a [RemoteItem].
type RemoteMenu struct {
	service string
	owner   string
	bus     signalSubscriber
	object  dbus.BusObject
	signals chan *dbus.Signal
	log     zerolog.Logger

	closeOnce sync.Once
	closeErr  error

	mu                 sync.RWMutex
	onLayoutUpdate     func(revision uint32, parentID int32)
	onPropertiesUpdate func([]*UpdatedProperties, []*RemovedProperties)
	onActivate         func(id int32)

	// Version of the com.canonical.dbusmenu interface.
	Version uint32

	// Status of the menu, "normal" or "notice".
	Status string
}

// NewRemoteMenu resolves the menu published by service at path.
func NewRemoteMenu(conn *dbus.Conn, service string, path dbus.ObjectPath) (*RemoteMenu, error) {
	obj := conn.Object(service, path)

	if call := obj.Call(getProperty, dbus.FlagNoAutoStart, MenuInterface, "Version"); call.Err != nil {
		return nil, fmt.Errorf("failed to resolve menu %s%s: %w", service, path, call.Err)
	}

	owner, err := nameOwner(conn, service)
	if err != nil {
		return nil, err
	}

	m := &RemoteMenu{
		service:            service,
		owner:              owner,
		bus:                conn,
		object:             obj,
		signals:            make(chan *dbus.Signal, 64),
		log:                log.Logger.With().Str("component", "remote menu").Str("service", service).Logger(),
		onLayoutUpdate:     func(uint32, int32) {},
		onPropertiesUpdate: func([]*UpdatedProperties, []*RemovedProperties) {},
		onActivate:         func(int32) {},
	}

	if v, err := obj.GetProperty(MenuInterface + ".Version"); err == nil {
		_ = v.Store(&m.Version)
	}

	if v, err := obj.GetProperty(MenuInterface + ".Status"); err == nil {
		_ = v.Store(&m.Status)
	}

	if err := m.subscribe(); err != nil {
		return nil, fmt.Errorf("menu %s: %w", service, err)
	}

	return m, nil
}

// GetLayout returns the layout below parentID together with the revision of
// the menu.
//
// A depth of -1 returns the whole subtree, 0 returns parentID alone. An empty
// list of property names returns all properties.
func (m *RemoteMenu) GetLayout(parentID int32, depth int32, propertyNames []string) (uint32, *LayoutNode, error) {
	if propertyNames == nil {
		propertyNames = []string{}
	}

	call := m.object.Call(MenuInterface+".GetLayout", dbus.FlagNoAutoStart, parentID, depth, propertyNames)
	if call.Err != nil {
		return 0, nil, fmt.Errorf("layout: %w", call.Err)
	}

	if len(call.Body) != 2 {
		return 0, nil, fmt.Errorf("layout: invalid response body format")
	}

	revision, ok := call.Body[0].(uint32)
	if !ok {
		return 0, nil, fmt.Errorf("layout: invalid revision type")
	}

	node, err := NewLayoutNode(call.Body[1])
	if err != nil {
		return revision, nil, fmt.Errorf("layout: %w", err)
	}

	return revision, node, nil
}

// GetGroupProperties returns properties of the nodes with the given ids.
func (m *RemoteMenu) GetGroupProperties(ids []int32, propertyNames []string) ([]*UpdatedProperties, error) {
	if propertyNames == nil {
		propertyNames = []string{}
	}

	call := m.object.Call(MenuInterface+".GetGroupProperties", dbus.FlagNoAutoStart, ids, propertyNames)
	if call.Err != nil {
		return nil, fmt.Errorf("group properties: %w", call.Err)
	}

	if len(call.Body) != 1 {
		return nil, fmt.Errorf("group properties: invalid response body format")
	}

	return getUpdatedProperties(call.Body[0])
}

// Clicked tells the application that the node was clicked.
func (m *RemoteMenu) Clicked(target *LayoutNode) error {
	return m.Event(target.ID, EventClicked, int32(0), uint32(time.Now().Unix()))
}

// Hovered tells the application that the node was hovered.
func (m *RemoteMenu) Hovered(target *LayoutNode) error {
	return m.Event(target.ID, EventHovered, int32(0), uint32(time.Now().Unix()))
}

// Event sends an arbitrary event to the node with the given id. Besides
// "clicked", "hovered", "opened" and "closed", vendor-specific events are
// prefixed with "x-<vendor>-".
func (m *RemoteMenu) Event(targetID int32, eventID string, data any, timestamp uint32) error {
	return m.object.Call(
		MenuInterface+".Event",
		dbus.FlagNoAutoStart,
		targetID,
		eventID,
		dbus.MakeVariant(data),
		timestamp,
	).Err
}

// AboutToShow tells the application that the node is about to be shown. It
// reports whether the layout of the node should be fetched again.
func (m *RemoteMenu) AboutToShow(target *LayoutNode) (bool, error) {
	call := m.object.Call(MenuInterface+".AboutToShow", dbus.FlagNoAutoStart, target.ID)
	if call.Err != nil {
		return false, fmt.Errorf("about to show: %w", call.Err)
	}

	var needUpdate bool
	if err := call.Store(&needUpdate); err != nil {
		return false, fmt.Errorf("about to show: %w", err)
	}

	return needUpdate, nil
}

// OnLayoutUpdate sets the callback that runs when the layout below parentID
// changes. A parentID of zero means the whole layout.
func (m *RemoteMenu) OnLayoutUpdate(callback func(revision uint32, parentID int32)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onLayoutUpdate = callback
}

// OnPropertiesUpdate sets the callback that runs when properties of nodes are
// updated or removed.
func (m *RemoteMenu) OnPropertiesUpdate(callback func(updated []*UpdatedProperties, removed []*RemovedProperties)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onPropertiesUpdate = callback
}

// OnActivate sets the callback that runs when the application asks to open
// the node with the given id.
func (m *RemoteMenu) OnActivate(callback func(id int32)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onActivate = callback
}

// Mirror returns a [Mirror] of the menu that follows its updates. It replaces
// the callbacks set by [RemoteMenu.OnLayoutUpdate] and
// [RemoteMenu.OnPropertiesUpdate].
func (m *RemoteMenu) Mirror() (*Mirror, error) {
	mirror, err := NewMirror(func(parentID int32) (uint32, *LayoutNode, error) {
		return m.GetLayout(parentID, -1, nil)
	})
	if err != nil {
		return nil, err
	}

	m.OnLayoutUpdate(func(revision uint32, parentID int32) {
		if err := mirror.LayoutUpdated(revision, parentID); err != nil {
			m.log.Warn().Err(err).Int32("parent", parentID).Msg("failed to update mirror")
		}
	})

	m.OnPropertiesUpdate(mirror.PropertiesUpdated)

	return mirror, nil
}

// Close stops tracking updates of the menu. Calling Close more than once
// returns the result of the first call.
func (m *RemoteMenu) Close() error {
	m.closeOnce.Do(func() {
		var errs []error

		for _, member := range menuSignals {
			if err := m.bus.RemoveMatchSignal(m.match(member)...); err != nil {
				errs = append(errs, err)
			}
		}

		m.bus.RemoveSignal(m.signals)
		close(m.signals)

		m.closeErr = errors.Join(errs...)
	})

	return m.closeErr
}

func (m *RemoteMenu) match(member string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(MenuInterface),
		dbus.WithMatchMember(member),
		dbus.WithMatchSender(m.service),
	}
}

func (m *RemoteMenu) subscribe() error {
	for _, member := range menuSignals {
		if err := m.bus.AddMatchSignal(m.match(member)...); err != nil {
			return err
		}
	}

	m.bus.Signal(m.signals)

	go func() {
		for signal := range m.signals {
			m.handleSignal(signal)
		}
	}()

	return nil
}

func (m *RemoteMenu) handleSignal(signal *dbus.Signal) {
	if signal.Sender != m.owner {
		return
	}

	member, ok := strings.CutPrefix(signal.Name, MenuInterface+".")
	if !ok || len(signal.Body) != 2 {
		return
	}

	m.mu.RLock()
	onLayoutUpdate := m.onLayoutUpdate
	onPropertiesUpdate := m.onPropertiesUpdate
	onActivate := m.onActivate
	m.mu.RUnlock()

	switch member {
	case "LayoutUpdated":
		revision, ok := signal.Body[0].(uint32)
		if !ok {
			return
		}

		parentID, ok := signal.Body[1].(int32)
		if !ok {
			return
		}

		m.log.Trace().Uint32("revision", revision).Int32("parent", parentID).Msg("layout updated")
		onLayoutUpdate(revision, parentID)

	case "ItemsPropertiesUpdated":
		updated, err := getUpdatedProperties(signal.Body[0])
		if err != nil {
			m.log.Debug().Err(err).Msg("malformed updated properties")
			return
		}

		removed, err := getRemovedProperties(signal.Body[1])
		if err != nil {
			m.log.Debug().Err(err).Msg("malformed removed properties")
			return
		}

		m.log.Trace().Int("updated", len(updated)).Int("removed", len(removed)).Msg("properties updated")
		onPropertiesUpdate(updated, removed)

	case "ItemActivationRequested":
		id, ok := signal.Body[0].(int32)
		if !ok {
			return
		}

		onActivate(id)
	}
}

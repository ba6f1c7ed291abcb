package trayicon

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
)

const (
	MenuInterface = "com.canonical.dbusmenu"
	MenuPath      = "/MenuBar"
)

// Version of the com.canonical.dbusmenu interface implemented by the menu.
const menuVersion uint32 = 3

var (
	errInvalidID       = MenuInterface + ".Error.InvalidId"
	errUnknownProperty = MenuInterface + ".Error.UnknownProperty"
)

// signalEmitter delivers D-Bus signals. It is implemented by [dbus.Conn].
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// dbusMenu serves a [Menu] over the com.canonical.dbusmenu interface.
//
// The entry table is replaced as a whole on every update. The previous table
// is only kept to compute the changes that are sent to the host.
type dbusMenu[T any] struct {
	path     dbus.ObjectPath
	emitter  signalEmitter
	revision atomic.Uint32
	log      zerolog.Logger
	router   *router[T]

	// updateMu serializes updates, so that signals of two updates never
	// interleave.
	updateMu sync.Mutex

	mu      sync.Mutex
	entries []menuEntry[T]
}

func newDBusMenu[T any](
	path dbus.ObjectPath,
	emitter signalEmitter,
	menu *Menu[T],
	callback *callbackFunc[T],
	logger zerolog.Logger,
) *dbusMenu[T] {
	m := &dbusMenu[T]{
		path:    path,
		emitter: emitter,
		log:     logger.With().Str("component", "dbusmenu").Logger(),
		entries: buildEntries(menu),
	}

	m.router = &router[T]{
		lookup:   m.signal,
		callback: callback,
		log:      m.log,
	}

	return m
}

// update replaces the menu and notifies the host about the changes.
//
// The layout signal is always sent before the properties signal, so the host
// already knows the new children when it receives properties that refer to
// them. If the layout signal cannot be sent, the properties signal is not sent
// either.
func (m *dbusMenu[T]) update(menu *Menu[T]) error {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	m.log.Trace().Int("items", menu.Len()).Msg("building layout")

	entries := buildEntries(menu)

	m.mu.Lock()
	old := m.entries
	m.entries = entries
	m.mu.Unlock()

	diff := diffEntries(old, entries)

	if diff.HasRoot {
		revision := m.revision.Add(1)

		m.log.Debug().
			Int32("parent", diff.Root).
			Uint32("revision", revision).
			Msg("sending layout update")

		if err := m.emitter.Emit(m.path, MenuInterface+".LayoutUpdated", revision, diff.Root); err != nil {
			return fmt.Errorf("layout updated: %w", err)
		}
	}

	if len(diff.Updated) > 0 || len(diff.Removed) > 0 {
		m.log.Debug().
			Int("updated", len(diff.Updated)).
			Int("removed", len(diff.Removed)).
			Msg("sending properties update")

		if err := m.emitter.Emit(
			m.path,
			MenuInterface+".ItemsPropertiesUpdated",
			updatedToDBus(diff.Updated),
			removedToDBus(diff.Removed),
		); err != nil {
			return fmt.Errorf("items properties updated: %w", err)
		}
	}

	return nil
}

// signal returns the signal of the entry with the given id.
func (m *dbusMenu[T]) signal(id int32) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T

	if id < 0 || int(id) >= len(m.entries) {
		return zero, false
	}

	entry := &m.entries[id]
	if !entry.hasSignal {
		return zero, false
	}

	return entry.signal, true
}

// layout returns the current revision and the subtree rooted at parentID.
func (m *dbusMenu[T]) layout(parentID int32, depth int, propertyNames []string) (uint32, *LayoutNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parentID < 0 || int(parentID) >= len(m.entries) {
		return 0, nil, fmt.Errorf("layout: invalid id %d", parentID)
	}

	entry := &m.entries[parentID]

	return m.revision.Load(), &LayoutNode{
		ID:         parentID,
		Properties: entry.properties(propertyNames),
		Children:   collectLayout(m.entries, entry.children, propertyNames, depth),
	}, nil
}

// GetLayout implements com.canonical.dbusmenu.GetLayout.
//
// A negative recursionDepth returns the whole subtree.
func (m *dbusMenu[T]) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, layoutStruct, *dbus.Error) {
	m.log.Trace().
		Int32("parent", parentID).
		Int32("depth", recursionDepth).
		Strs("properties", propertyNames).
		Msg("get layout")

	revision, node, err := m.layout(parentID, int(recursionDepth), propertyNames)
	if err != nil {
		return 0, layoutStruct{}, dbus.NewError(errInvalidID, []any{err.Error()})
	}

	return revision, node.dbusValue(), nil
}

// GetGroupProperties implements com.canonical.dbusmenu.GetGroupProperties.
//
// Properties of every entry are returned if ids is empty. Unknown ids are
// skipped.
func (m *dbusMenu[T]) GetGroupProperties(ids []int32, propertyNames []string) ([]updatedStruct, *dbus.Error) {
	m.log.Trace().
		Ints32("ids", ids).
		Strs("properties", propertyNames).
		Msg("get group properties")

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 {
		ids = indexRange(0, len(m.entries))
	}

	props := make([]updatedStruct, 0, len(ids))

	for _, id := range ids {
		if id < 0 || int(id) >= len(m.entries) {
			continue
		}

		props = append(props, updatedStruct{
			ID:         id,
			Properties: valuesToVariants(m.entries[id].properties(propertyNames)),
		})
	}

	return props, nil
}

// GetProperty implements com.canonical.dbusmenu.GetProperty.
func (m *dbusMenu[T]) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	m.log.Trace().Int32("id", id).Str("name", name).Msg("get property")

	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || int(id) >= len(m.entries) {
		return dbus.Variant{}, dbus.NewError(errInvalidID, []any{fmt.Sprintf("invalid id %d", id)})
	}

	value, ok := m.entries[id].props[name]
	if !ok {
		return dbus.Variant{}, dbus.NewError(errUnknownProperty, []any{fmt.Sprintf("no property %q on item %d", name, id)})
	}

	return dbus.MakeVariant(value), nil
}

// Event implements com.canonical.dbusmenu.Event.
func (m *dbusMenu[T]) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	m.router.route(id, eventID, data, timestamp)
	return nil
}

// EventGroup implements com.canonical.dbusmenu.EventGroup. It never reports
// failed ids.
func (m *dbusMenu[T]) EventGroup(events []menuEvent) ([]int32, *dbus.Error) {
	return m.router.routeGroup(events), nil
}

// AboutToShow implements com.canonical.dbusmenu.AboutToShow. The layout is
// always up to date, so no update is ever needed.
func (m *dbusMenu[T]) AboutToShow(id int32) (bool, *dbus.Error) {
	return false, nil
}

// AboutToShowGroup implements com.canonical.dbusmenu.AboutToShowGroup.
func (m *dbusMenu[T]) AboutToShowGroup(ids []int32) ([]int32, []int32, *dbus.Error) {
	return []int32{}, []int32{}, nil
}

func (m *dbusMenu[T]) properties() prop.Map {
	return prop.Map{
		MenuInterface: map[string]*prop.Prop{
			"Version": {
				Value: menuVersion,
				Emit:  prop.EmitConst,
			},
			"Status": {
				Value: "normal",
				Emit:  prop.EmitTrue,
			},
			"TextDirection": {
				Value: "ltr",
				Emit:  prop.EmitConst,
			},
			"IconThemePath": {
				Value: []string{},
				Emit:  prop.EmitConst,
			},
		},
	}
}

func (m *dbusMenu[T]) introspection(props *prop.Properties) introspect.Interface {
	return introspect.Interface{
		Name:    MenuInterface,
		Methods: introspect.Methods(m),
		Signals: []introspect.Signal{
			{
				Name: "ItemsPropertiesUpdated",
				Args: []introspect.Arg{
					{Name: "updatedProps", Type: "a(ia{sv})"},
					{Name: "removedProps", Type: "a(ias)"},
				},
			},
			{
				Name: "LayoutUpdated",
				Args: []introspect.Arg{
					{Name: "revision", Type: "u"},
					{Name: "parent", Type: "i"},
				},
			},
			{
				Name: "ItemActivationRequested",
				Args: []introspect.Arg{
					{Name: "id", Type: "i"},
					{Name: "timestamp", Type: "u"},
				},
			},
		},
		Properties: props.Introspection(MenuInterface),
	}
}

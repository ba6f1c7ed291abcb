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
	StatusNotifierItemInterface = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      = "/StatusNotifierItem"
)

type ItemCategory string

// StatusNotifierItem categories.
const (
	// The item describes the status of a generic application, for instance the
	// current state of a media player.
	ItemCategoryApplicationStatus ItemCategory = "ApplicationStatus"

	// The item describes the status of communication oriented applications, like
	// an instant messenger or an email client.
	ItemCategoryCommunications ItemCategory = "Communications"

	// The item describes services of the system not seen as a stand alone
	// application by the user, such as an indicator for the activity of a disk
	// indexing service.
	ItemCategorySystemServices ItemCategory = "SystemServices"

	// The item describes the state and control of a particular hardware, such as
	// an indicator of the battery charge or sound card volume control.
	ItemCategoryHardware ItemCategory = "Hardware"
)

// parseItemCategory returns the category with the given name, falling back to
// [ItemCategoryApplicationStatus].
func parseItemCategory(name string) ItemCategory {
	switch ItemCategory(name) {
	case ItemCategoryCommunications, ItemCategorySystemServices, ItemCategoryHardware:
		return ItemCategory(name)
	default:
		return ItemCategoryApplicationStatus
	}
}

type ItemStatus string

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user, it can be
	// considered an "idle" status and is likely that visualizations will choose
	// to hide it.
	ItemStatusPassive ItemStatus = "Passive"

	// The item is active, is more important that the item will be shown in some
	// way to the user.
	ItemStatusActive ItemStatus = "Active"

	// The item carries really important information for the user, such as battery
	// charge running out and is wants to incentive the direct user intervention.
	ItemStatusNeedsAttention ItemStatus = "NeedsAttention"
)

// propertySetter updates exported properties. It is implemented by
// [prop.Properties].
type propertySetter interface {
	SetMust(iface, property string, v any)
}

// toolTipStruct is the wire form of the ToolTip property, (sa(iiay)ss).
type toolTipStruct struct {
	IconName    string
	IconPixmap  []pixmapStruct
	Title       string
	Description string
}

// statusNotifierItem serves the org.kde.StatusNotifierItem interface.
type statusNotifierItem[T any] struct {
	path     dbus.ObjectPath
	menuPath dbus.ObjectPath
	id       string
	title    string
	category ItemCategory
	emitter  signalEmitter
	callback *callbackFunc[T]
	log      zerolog.Logger

	// activated is set after the first activation. Hosts activate the item
	// once when they build the menu, so that activation is not a click.
	activated atomic.Bool

	mu      sync.Mutex
	props   propertySetter
	tooltip string
	icon    IconSet
}

func newStatusNotifierItem[T any](
	cfg Config,
	emitter signalEmitter,
	tooltip string,
	icon *Icon,
	callback *callbackFunc[T],
	logger zerolog.Logger,
) *statusNotifierItem[T] {
	item := &statusNotifierItem[T]{
		path:     dbus.ObjectPath(cfg.ItemPath),
		menuPath: dbus.ObjectPath(cfg.MenuPath),
		id:       cfg.ID,
		title:    cfg.Title,
		category: parseItemCategory(cfg.Category),
		emitter:  emitter,
		callback: callback,
		log:      logger.With().Str("component", "item").Logger(),
		tooltip:  tooltip,
	}

	if icon != nil {
		item.icon = IconSet{icon}
	}

	return item
}

// Activate implements org.kde.StatusNotifierItem.Activate.
func (item *statusNotifierItem[T]) Activate(x, y int32) *dbus.Error {
	item.log.Trace().Int32("x", x).Int32("y", y).Msg("activate")

	if item.activated.Swap(true) {
		item.callback.call(TrayEvent[T](ClickDouble))
	}

	return nil
}

// ContextMenu implements org.kde.StatusNotifierItem.ContextMenu.
func (item *statusNotifierItem[T]) ContextMenu(x, y int32) *dbus.Error {
	item.log.Trace().Int32("x", x).Int32("y", y).Msg("context menu")
	item.callback.call(TrayEvent[T](ClickRight))

	return nil
}

// SecondaryActivate implements org.kde.StatusNotifierItem.SecondaryActivate.
func (item *statusNotifierItem[T]) SecondaryActivate(x, y int32) *dbus.Error {
	item.log.Debug().Int32("x", x).Int32("y", y).Msg("secondary activate")
	return nil
}

// Scroll implements org.kde.StatusNotifierItem.Scroll.
func (item *statusNotifierItem[T]) Scroll(delta int32, orientation string) *dbus.Error {
	item.log.Debug().Int32("delta", delta).Str("orientation", orientation).Msg("scroll")
	return nil
}

// setTooltip replaces the tooltip and emits NewToolTip.
func (item *statusNotifierItem[T]) setTooltip(tooltip string) error {
	item.mu.Lock()
	item.tooltip = tooltip

	if item.props != nil {
		item.props.SetMust(StatusNotifierItemInterface, "ToolTip", item.toolTipLocked())
	}
	item.mu.Unlock()

	if err := item.emitter.Emit(item.path, StatusNotifierItemInterface+".NewToolTip"); err != nil {
		return fmt.Errorf("new tooltip: %w", err)
	}

	return nil
}

// setIcon replaces the icon and emits NewIcon. A nil icon removes it.
func (item *statusNotifierItem[T]) setIcon(icon *Icon) error {
	item.mu.Lock()
	item.icon = nil

	if icon != nil {
		item.icon = IconSet{icon}
	}

	if item.props != nil {
		item.props.SetMust(StatusNotifierItemInterface, "IconPixmap", item.icon.dbusValue())
	}
	item.mu.Unlock()

	if err := item.emitter.Emit(item.path, StatusNotifierItemInterface+".NewIcon"); err != nil {
		return fmt.Errorf("new icon: %w", err)
	}

	return nil
}

func (item *statusNotifierItem[T]) toolTipLocked() toolTipStruct {
	return toolTipStruct{
		IconPixmap: []pixmapStruct{},
		Title:      item.tooltip,
	}
}

// setProperties binds the exported properties, so that updates are visible
// to Get and GetAll.
func (item *statusNotifierItem[T]) setProperties(props propertySetter) {
	item.mu.Lock()
	defer item.mu.Unlock()

	item.props = props
}

func (item *statusNotifierItem[T]) properties() prop.Map {
	item.mu.Lock()
	defer item.mu.Unlock()

	constant := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Emit: prop.EmitConst}
	}

	return prop.Map{
		StatusNotifierItemInterface: map[string]*prop.Prop{
			"Category":            constant(string(item.category)),
			"Id":                  constant(item.id),
			"Title":               constant(item.title),
			"Status":              constant(string(ItemStatusActive)),
			"WindowId":            constant(int32(0)),
			"IconThemePath":       constant(""),
			"ItemIsMenu":          constant(false),
			"Menu":                constant(item.menuPath),
			"IconName":            constant(""),
			"OverlayIconName":     constant(""),
			"OverlayIconPixmap":   constant([]pixmapStruct{}),
			"AttentionIconName":   constant(""),
			"AttentionIconPixmap": constant([]pixmapStruct{}),
			"AttentionMovieName":  constant(""),
			"IconPixmap": {
				Value: item.icon.dbusValue(),
				Emit:  prop.EmitFalse,
			},
			"ToolTip": {
				Value: item.toolTipLocked(),
				Emit:  prop.EmitFalse,
			},
		},
	}
}

func (item *statusNotifierItem[T]) introspection(props *prop.Properties) introspect.Interface {
	signal := func(name string, args ...introspect.Arg) introspect.Signal {
		return introspect.Signal{Name: name, Args: args}
	}

	return introspect.Interface{
		Name:    StatusNotifierItemInterface,
		Methods: introspect.Methods(item),
		Signals: []introspect.Signal{
			signal("NewTitle"),
			signal("NewIcon"),
			signal("NewAttentionIcon"),
			signal("NewOverlayIcon"),
			signal("NewToolTip"),
			signal("NewStatus", introspect.Arg{Name: "status", Type: "s"}),
		},
		Properties: props.Introspection(StatusNotifierItemInterface),
	}
}

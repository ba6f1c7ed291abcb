package trayicon

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// trayCounter makes names of trays unique within the process.
var trayCounter atomic.Uint32

// itemName returns the bus name of the n-th tray of the process.
func itemName(pid int, n uint32) string {
	return fmt.Sprintf("%s-%d-%d", StatusNotifierItemInterface, pid, n)
}

// Builder configures a [Tray].
type Builder[T any] struct {
	menu    *Menu[T]
	tooltip string
	icon    *Icon
	cfg     Config
	logger  *zerolog.Logger
}

// NewBuilder returns a builder of a tray without menu, tooltip and icon.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{cfg: DefaultConfig()}
}

// WithMenu sets the menu of the tray. The tray is created with an empty menu
// if it is not set.
func (b *Builder[T]) WithMenu(menu *Menu[T]) *Builder[T] {
	b.menu = menu
	return b
}

// WithTooltip sets the tooltip shown when hovering the tray icon. Whether and
// how it is shown depends on the host.
func (b *Builder[T]) WithTooltip(tooltip string) *Builder[T] {
	b.tooltip = tooltip
	return b
}

// WithIcon sets the icon of the tray.
func (b *Builder[T]) WithIcon(icon *Icon) *Builder[T] {
	b.icon = icon
	return b
}

// WithID sets the application identifier reported to the host.
func (b *Builder[T]) WithID(id string) *Builder[T] {
	b.cfg.ID = id
	return b
}

// WithTitle sets the application title reported to the host.
func (b *Builder[T]) WithTitle(title string) *Builder[T] {
	b.cfg.Title = title
	return b
}

// WithConfig replaces the configuration of the tray.
func (b *Builder[T]) WithConfig(cfg Config) *Builder[T] {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger of the tray. The global logger of
// [github.com/rs/zerolog/log] is used by default.
func (b *Builder[T]) WithLogger(logger zerolog.Logger) *Builder[T] {
	b.logger = &logger
	return b
}

// Build connects to the session bus and publishes the tray.
//
// The callback is called with every click on the tray icon and its menu. It
// is called from the goroutine that dispatches D-Bus calls, so it should
// return quickly. It may update the tray.
func (b *Builder[T]) Build(callback func(Event[T])) (*Tray[T], error) {
	if !supportedPlatform(runtime.GOOS) {
		return nil, platformError("build", ErrUnsupportedPlatform)
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, customError("build", err)
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, platformError("connect session bus", err)
	}

	t, err := newTray(conn, b, callback)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return t, nil
}

// supportedPlatform reports whether the tray can be published on goos.
func supportedPlatform(goos string) bool {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return true
	default:
		return false
	}
}

// Tray is a tray icon published on the session bus.
//
// Updates are applied asynchronously, in the order they are requested.
type Tray[T any] struct {
	name    string
	cfg     Config
	conn    *dbus.Conn
	log     zerolog.Logger
	item    *statusNotifierItem[T]
	menu    *dbusMenu[T]
	updates *updateQueue
	signals chan *dbus.Signal

	closeOnce sync.Once
	closeErr  error
}

func newTray[T any](conn *dbus.Conn, b *Builder[T], callback func(Event[T])) (*Tray[T], error) {
	logger := log.Logger
	if b.logger != nil {
		logger = *b.logger
	}

	name := itemName(os.Getpid(), trayCounter.Add(1))
	logger = logger.Level(b.cfg.Level()).With().Str("tray", name).Logger()

	cb := newCallback(callback)

	t := &Tray[T]{
		name:    name,
		cfg:     b.cfg,
		conn:    conn,
		log:     logger.With().Str("component", "tray").Logger(),
		item:    newStatusNotifierItem(b.cfg, conn, b.tooltip, b.icon, cb, logger),
		menu:    newDBusMenu(dbus.ObjectPath(b.cfg.MenuPath), conn, b.menu, cb, logger),
		signals: make(chan *dbus.Signal, 16),
	}

	if err := t.publish(); err != nil {
		return nil, err
	}

	t.updates = newUpdateQueue(t.log)

	return t, nil
}

// publish exports the item and the menu, registers the item in the watcher,
// and keeps it registered when the watcher restarts.
func (t *Tray[T]) publish() error {
	reply, err := t.conn.RequestName(t.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return platformError("request name", err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return platformError("request name", fmt.Errorf("%w: %s", ErrNameTaken, t.name))
	}

	itemPath := dbus.ObjectPath(t.cfg.ItemPath)
	if err := t.export(t.item, itemPath, StatusNotifierItemInterface, t.item.properties(), func(props *prop.Properties) introspect.Interface {
		t.item.setProperties(props)
		return t.item.introspection(props)
	}); err != nil {
		return err
	}

	menuPath := dbus.ObjectPath(t.cfg.MenuPath)
	if err := t.export(t.menu, menuPath, MenuInterface, t.menu.properties(), t.menu.introspection); err != nil {
		return err
	}

	if err := t.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, t.cfg.WatcherName),
	); err != nil {
		return platformError("watch watcher", err)
	}

	t.conn.Signal(t.signals)

	if err := t.register(); err != nil {
		return platformError("register item", err)
	}

	go t.watch()

	t.log.Debug().Msg("tray published")

	return nil
}

// export exports v together with its properties and introspection data.
func (t *Tray[T]) export(
	v any,
	path dbus.ObjectPath,
	iface string,
	props prop.Map,
	describe func(*prop.Properties) introspect.Interface,
) error {
	if err := t.conn.Export(v, path, iface); err != nil {
		return platformError("export "+iface, err)
	}

	exported, err := prop.Export(t.conn, path, props)
	if err != nil {
		return platformError("export properties of "+iface, err)
	}

	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			prop.IntrospectData,
			describe(exported),
		},
	}

	if err := t.conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return platformError("export introspection of "+iface, err)
	}

	return nil
}

// register registers the item in the watcher.
func (t *Tray[T]) register() error {
	return t.conn.Object(t.cfg.WatcherName, StatusNotifierWatcherPath).Call(
		StatusNotifierWatcherInterface+".RegisterStatusNotifierItem",
		0,
		t.name,
	).Err
}

// watch registers the item again whenever the watcher gets a new owner.
func (t *Tray[T]) watch() {
	for signal := range t.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}

		name, _ := signal.Body[0].(string)
		newOwner, _ := signal.Body[2].(string)

		if name != t.cfg.WatcherName || newOwner == "" {
			continue
		}

		t.log.Debug().Str("owner", newOwner).Msg("watcher restarted, registering again")

		if err := t.register(); err != nil {
			t.log.Warn().Err(err).Msg("failed to register item")
		}
	}
}

// Name returns the bus name of the tray.
func (t *Tray[T]) Name() string {
	return t.name
}

// SetMenu replaces the menu. A nil menu removes all items.
func (t *Tray[T]) SetMenu(menu *Menu[T]) {
	t.push("menu", func() error {
		return t.menu.update(menu)
	})
}

// SetTooltip replaces the tooltip. A nil tooltip removes it.
func (t *Tray[T]) SetTooltip(tooltip *string) {
	text := ""
	if tooltip != nil {
		text = *tooltip
	}

	t.SetTooltipText(text)
}

// SetTooltipText replaces the tooltip with text.
func (t *Tray[T]) SetTooltipText(text string) {
	t.push("tooltip", func() error {
		return t.item.setTooltip(text)
	})
}

// SetIcon replaces the icon. A nil icon removes it.
func (t *Tray[T]) SetIcon(icon *Icon) {
	t.push("icon", func() error {
		return t.item.setIcon(icon)
	})
}

func (t *Tray[T]) push(name string, apply func() error) {
	if !t.updates.push(name, apply) {
		t.log.Warn().Err(ErrClosed).Str("update", name).Msg("failed to send update")
	}
}

// Close removes the tray from the session bus and closes the connection.
func (t *Tray[T]) Close() error {
	t.closeOnce.Do(func() {
		t.updates.close()

		var errs []error

		if err := t.conn.RemoveMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, t.cfg.WatcherName),
		); err != nil {
			errs = append(errs, err)
		}

		t.conn.RemoveSignal(t.signals)
		close(t.signals)

		if _, err := t.conn.ReleaseName(t.name); err != nil {
			errs = append(errs, err)
		}

		if err := t.conn.Close(); err != nil {
			errs = append(errs, err)
		}

		t.closeErr = errors.Join(errs...)
		t.log.Debug().Err(t.closeErr).Msg("tray closed")
	})

	return t.closeErr
}

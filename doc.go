// Package trayicon publishes a tray icon with a declarative menu on the
// session bus, using the [StatusNotifierItem] and com.canonical.dbusmenu
// protocols.
//
// # Usage
//
// A tray is created with a [Builder]. Every button of the menu carries a
// signal value of the caller's type, which is handed back when the button is
// clicked:
//
//	type Action int
//
//	tray, err := trayicon.NewBuilder[Action]().
//		WithTooltip("Example").
//		WithMenu(trayicon.NewMenu(
//			trayicon.Button("Quit", ActionQuit),
//		)).
//		Build(func(e trayicon.Event[Action]) {
//			if e.Kind == trayicon.EventMenu && e.Signal == ActionQuit {
//				os.Exit(0)
//			}
//		})
//
// The menu is replaced as a whole with [Tray.SetMenu]. Only the parts that
// differ from the previous menu are sent to the host.
//
// The package also contains the other side of the protocols: [Watcher], [Host],
// [RemoteItem] and [RemoteMenu] can be used to inspect trays published by other
// applications, and [Mirror] keeps a copy of a remote menu up to date.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package trayicon

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/trayicon"
)

func newInspectCommand() *cobra.Command {
	var follow bool

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print tray icons registered in the watcher and their menus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), follow)
		},
	}

	inspectCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep running and print menus whenever they change")

	return inspectCmd
}

func runInspect(ctx context.Context, out io.Writer, follow bool) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	ins := newInspector(out, follow)
	defer ins.close()

	host := trayicon.NewHost(conn, os.Getpid(), cfg.WatcherName)
	host.OnRegistered(ins.add)
	host.OnUnregistered(func(identifier string, _ *trayicon.RemoteItem) {
		ins.remove(identifier)
	})

	if err := host.Listen(); err != nil {
		return err
	}
	defer host.Close()

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	return nil
}

// followedMenu is the part of [trayicon.RemoteMenu] the inspector relies on.
type followedMenu interface {
	OnLayoutUpdate(callback func(revision uint32, parentID int32))
	OnPropertiesUpdate(callback func(updated []*trayicon.UpdatedProperties, removed []*trayicon.RemovedProperties))
	Close() error
}

// inspector prints items and, when following, their menus on every change.
type inspector struct {
	out    io.Writer
	follow bool

	mu    sync.Mutex
	menus map[string]followedMenu
}

func newInspector(out io.Writer, follow bool) *inspector {
	return &inspector{
		out:    out,
		follow: follow,
		menus:  make(map[string]followedMenu),
	}
}

func (ins *inspector) add(identifier string, item *trayicon.RemoteItem) {
	menu, err := item.Menu()
	if err != nil {
		log.Debug().Err(err).Str("item", identifier).Msg("No menu")
		ins.print(func() { printItem(ins.out, identifier, item) })
		return
	}

	mirror, err := menu.Mirror()
	if err != nil {
		log.Warn().Err(err).Str("item", identifier).Msg("Failed to get menu layout")
		ins.print(func() { printItem(ins.out, identifier, item) })
		_ = menu.Close()
		return
	}

	ins.print(func() {
		printItem(ins.out, identifier, item)
		printLayout(ins.out, mirror.Root())
	})

	if !ins.follow {
		_ = menu.Close()
		return
	}

	ins.watch(identifier, menu, mirror)
}

// watch prints the menu of identifier whenever its layout or properties
// change, until the item is removed.
func (ins *inspector) watch(identifier string, menu followedMenu, mirror *trayicon.Mirror) {
	ins.mu.Lock()
	if previous, ok := ins.menus[identifier]; ok {
		_ = previous.Close()
	}
	ins.menus[identifier] = menu
	ins.mu.Unlock()

	menu.OnLayoutUpdate(func(revision uint32, parentID int32) {
		if err := mirror.LayoutUpdated(revision, parentID); err != nil {
			log.Warn().Err(err).Str("item", identifier).Msg("Failed to update menu layout")
			return
		}

		ins.printMenu(identifier, menu, mirror)
	})

	menu.OnPropertiesUpdate(func(updated []*trayicon.UpdatedProperties, removed []*trayicon.RemovedProperties) {
		mirror.PropertiesUpdated(updated, removed)
		ins.printMenu(identifier, menu, mirror)
	})
}

// printMenu prints the mirrored menu unless the item was removed meanwhile.
func (ins *inspector) printMenu(identifier string, menu followedMenu, mirror *trayicon.Mirror) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	if ins.menus[identifier] != menu {
		return
	}

	fmt.Fprintf(ins.out, "~ %s revision %d\n", identifier, mirror.Revision())
	printLayout(ins.out, mirror.Root())
}

func (ins *inspector) remove(identifier string) {
	ins.mu.Lock()
	menu, ok := ins.menus[identifier]
	delete(ins.menus, identifier)
	fmt.Fprintf(ins.out, "- %s\n", identifier)
	ins.mu.Unlock()

	if ok {
		if err := menu.Close(); err != nil {
			log.Debug().Err(err).Str("item", identifier).Msg("Failed to close menu")
		}
	}
}

// close stops following all menus.
func (ins *inspector) close() {
	ins.mu.Lock()
	menus := ins.menus
	ins.menus = make(map[string]followedMenu)
	ins.mu.Unlock()

	for _, menu := range menus {
		_ = menu.Close()
	}
}

func (ins *inspector) print(fn func()) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	fn()
}

func printItem(out io.Writer, identifier string, item *trayicon.RemoteItem) {
	fmt.Fprintf(out, "+ %s\n", identifier)
	fmt.Fprintf(out, "  id: %s\n  title: %s\n  tooltip: %s\n  status: %s\n", item.ID, item.Title, item.Tooltip, item.Status)

	if icon := item.IconPixmap.Largest(); icon != nil {
		fmt.Fprintf(out, "  icon: %dx%d\n", icon.Width, icon.Height)
	}
}

func printLayout(out io.Writer, root *trayicon.LayoutNode) {
	root.Walk(func(node *trayicon.LayoutNode, depth int) {
		if depth == 0 {
			return
		}

		indent := strings.Repeat("  ", depth+1)

		switch {
		case node.Properties[trayicon.PropertyType] == "separator":
			fmt.Fprintf(out, "%s----\n", indent)
		case node.Properties[trayicon.PropertyToggleType] != nil:
			mark := " "
			if state, _ := node.Properties[trayicon.PropertyToggleState].(int32); state == 1 {
				mark = "x"
			}

			fmt.Fprintf(out, "%s[%s] %v (%d)\n", indent, mark, node.Properties[trayicon.PropertyLabel], node.ID)
		default:
			fmt.Fprintf(out, "%s%v (%d)\n", indent, node.Properties[trayicon.PropertyLabel], node.ID)
		}
	})
}

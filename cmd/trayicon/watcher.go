package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/trayicon"
)

func newWatcherCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watcher",
		Short: "Run a StatusNotifierWatcher on the session bus",
		Long: `Run a StatusNotifierWatcher for desktops that do not provide one.
Only one watcher can run on the session bus at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatcher(cmd.Context())
		},
	}
}

func runWatcher(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	watcher := trayicon.NewWatcher(conn)
	if err := watcher.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().
		Strs("items", watcher.Items()).
		Strs("hosts", watcher.Hosts()).
		Msg("Stopping watcher")

	return watcher.Close()
}

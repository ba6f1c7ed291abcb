package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/trayicon"
)

type action int

const (
	actionProfile action = iota
	actionOpen
	actionQuit
)

// demoSignal is attached to the buttons of the demo menu.
type demoSignal struct {
	Action  action
	Profile int
}

const profiles = 5

func newDemoCommand() *cobra.Command {
	var tooltip string

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Publish a tray icon with a profile switcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), tooltip)
		},
	}

	demoCmd.Flags().StringVar(&tooltip, "tooltip", "Demo System Tray", "Initial tooltip")

	return demoCmd
}

func runDemo(ctx context.Context, tooltip string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	selected := 0
	events := make(chan trayicon.Event[demoSignal], 16)

	tray, err := trayicon.NewBuilder[demoSignal]().
		WithConfig(cfg).
		WithTooltip(tooltip).
		WithMenu(demoMenu(selected)).
		Build(func(e trayicon.Event[demoSignal]) {
			select {
			case events <- e:
			default:
				log.Warn().Msg("Dropping tray event")
			}
		})
	if err != nil {
		return err
	}
	defer tray.Close()

	log.Info().Str("name", tray.Name()).Msg("Tray published")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil

		case e := <-events:
			if e.Kind == trayicon.EventTray {
				log.Info().Stringer("click", e.Click).Msg("Tray clicked")
				continue
			}

			log.Info().Interface("signal", e.Signal).Msg("Menu clicked")

			switch e.Signal.Action {
			case actionProfile:
				if selected == e.Signal.Profile {
					continue
				}

				selected = e.Signal.Profile
				tray.SetTooltipText(fmt.Sprintf("Active Profile: %d", selected+1))
				tray.SetMenu(demoMenu(selected))

			case actionQuit:
				return nil
			}
		}
	}
}

func demoMenu(selected int) *trayicon.Menu[demoSignal] {
	buttons := make([]trayicon.MenuItem[demoSignal], 0, profiles)

	for i := range profiles {
		buttons = append(buttons, trayicon.CheckButton(
			fmt.Sprintf("Profile %d", i+1),
			demoSignal{Action: actionProfile, Profile: i},
			selected == i,
		))
	}

	return trayicon.NewMenu(
		trayicon.Submenu("Profiles", buttons...),
		trayicon.Separator[demoSignal](),
		trayicon.Button("Open", demoSignal{Action: actionOpen}),
		trayicon.Button("Quit", demoSignal{Action: actionQuit}),
	)
}

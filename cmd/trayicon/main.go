package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelepuginivan/trayicon"
)

var (
	cfg      trayicon.Config
	logLevel string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trayicon",
		Short: "Tray icons on the session bus",
		Long: `trayicon publishes and inspects StatusNotifierItem tray icons.

Configuration is read from TRAYICON_* environment variables and from a .env
file in the working directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := trayicon.LoadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel = logLevel
				if err := loaded.Validate(); err != nil {
					return err
				}
			}

			cfg = loaded

			zerolog.SetGlobalLevel(cfg.Level())
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newWatcherCommand())

	return rootCmd
}

package main

import (
	"github.com/DoyleJ11/dexrush-backend/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:           "dexrush",
		Short:         "Race your friends to name every species before the clock runs out.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(".env")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.AddCommand(newWatchCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("dexrush v{{.Version}}\n")
	return cmd
}

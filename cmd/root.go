package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app := newApp()

	rootCmd := &cobra.Command{
		Use:           "seedpool",
		Short:         "seedpool: an entropy pool seed service",
		Long:          "seedpool keeps an in-memory entropy pool fed by system and media collectors and serves signed random seeds over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (default: ./seedpool.toml, then ~/.config/seedpool/seedpool.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newSeedCmd(app),
		newStatsCmd(app),
		newKeysCmd(app),
		newConfigCmd(app),
	)

	return rootCmd
}

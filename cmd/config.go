package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/seedpool/internal/config"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	cmd.AddCommand(
		newConfigInitCmd(app),
		newConfigShowCmd(app),
	)

	return cmd
}

func newConfigInitCmd(app *app) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file populated with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path = strings.TrimSpace(path)
			if path == "" {
				path = app.configPath
			}
			if path == "" {
				path = config.DefaultPath()
			}

			if err := config.WriteFile(path, config.Default(), force); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Destination (default: --config, then ~/.config/seedpool/seedpool.toml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd(app *app) *cobra.Command {
	var yamlMode bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults, file and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}

			encode := config.EncodeTOML
			if yamlMode {
				encode = config.EncodeYAML
			}
			data, err := encode(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cfg.File != "" && !yamlMode {
				fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&yamlMode, "yaml", false, "Print as YAML instead of TOML")

	return cmd
}

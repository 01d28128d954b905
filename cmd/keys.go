package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	tomlstore "github.com/bnema/seedpool/internal/adapters/credentials/toml"
	"github.com/bnema/seedpool/internal/domain"
)

const generatedKeyBytes = 32

func newKeysCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys in the keys file",
	}

	cmd.AddCommand(
		newKeysAddCmd(app),
		newKeysListCmd(app),
		newKeysRemoveCmd(app),
	)

	return cmd
}

func newKeysAddCmd(app *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an API key; a random key is generated when --key is omitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.keysStore()
			if err != nil {
				return err
			}

			if strings.TrimSpace(key) == "" {
				key, err = generateKey()
				if err != nil {
					return err
				}
			}

			cred := domain.Credential{
				Name:      strings.TrimSpace(args[0]),
				Key:       key,
				CreatedAt: app.now().UTC(),
			}
			if err := store.Add(cmd.Context(), cred); err != nil {
				return fmt.Errorf("add key %q: %w", cred.Name, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "added key %q to %s\n", cred.Name, store.Path())
			_, err = fmt.Fprintln(out, cred.Key)
			return err
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Key value (default: 32 random bytes, hex encoded)")

	return cmd
}

func newKeysListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List key names known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			store, fileStore, err := wireCredentials(cfg)
			if err != nil {
				return err
			}

			creds, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			fileCreds, err := fileStore.List(cmd.Context())
			if err != nil {
				return err
			}
			fromFile := make(map[string]bool, len(fileCreds))
			for _, c := range fileCreds {
				fromFile[c.Name] = true
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tCREATED\tKEY")
			for _, c := range creds {
				source := "config"
				if fromFile[c.Name] {
					source = "keys file"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, source, formatCreated(c.CreatedAt), maskKey(c.Key))
			}
			return tw.Flush()
		},
	}
}

func newKeysRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove an API key from the keys file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.keysStore()
			if err != nil {
				return err
			}
			if err := store.Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove key %q: %w", args[0], err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed key %q\n", args[0])
			return err
		},
	}
}

func (a *app) keysStore() (*tomlstore.Store, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	return tomlstore.NewStore(cfg.Auth.KeysFile)
}

func generateKey() (string, error) {
	buf := make([]byte, generatedKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 8) + key[len(key)-4:]
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

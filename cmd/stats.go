package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bnema/seedpool/internal/adapters/httpapi"
	statusadapter "github.com/bnema/seedpool/internal/adapters/render/status"
	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/config"
)

const statsPath = "/api/entropy-stats"

var errMissingAPIKey = errors.New("api key is required: pass --key or set SEEDPOOL_API_KEY")

func newStatsCmd(app *app) *cobra.Command {
	var (
		serverURL string
		key       string
		jsonMode  bool
		yamlMode  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entropy pool statistics from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonMode && yamlMode {
				return errors.New("--json and --yaml are mutually exclusive")
			}

			cfg, err := app.config()
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = localURL(cfg.Server.Addr)
			}
			serverURL = trimURL(serverURL)
			if key == "" {
				key = defaultClientKey(cfg)
			}
			if key == "" {
				return errMissingAPIKey
			}

			// Structured output is meant for pipes, so it skips the spinner.
			var stats application.Stats
			if jsonMode || yamlMode {
				stats, err = app.fetchStats(cmd.Context(), serverURL, key)
			} else {
				stats, err = app.fetchStatsWithSpinner(cmd.Context(), cmd.ErrOrStderr(), serverURL, key)
			}
			if err != nil {
				return err
			}

			return app.writeStatsOutput(cmd.OutOrStdout(), stats, serverURL, cfg, jsonMode, yamlMode)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "Server base URL (default: derived from server.addr)")
	cmd.Flags().StringVar(&key, "key", envOrDefault("SEEDPOOL_API_KEY", ""), "API key sent in the X-API-Key header")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print statistics as JSON")
	cmd.Flags().BoolVar(&yamlMode, "yaml", false, "Print statistics as YAML")

	return cmd
}

// defaultClientKey picks the development key when it is still configured so a
// fresh install can query its own server.
func defaultClientKey(cfg config.Config) string {
	if key, ok := cfg.Auth.APIKeys[config.DevKeyName]; ok {
		return key
	}
	return ""
}

func (a *app) fetchStats(ctx context.Context, baseURL, key string) (application.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+statsPath, nil)
	if err != nil {
		return application.Stats{}, fmt.Errorf("build stats request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(httpapi.HeaderAPIKey, key)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return application.Stats{}, fmt.Errorf("request stats: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return application.Stats{}, fmt.Errorf("read stats response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return application.Stats{}, fmt.Errorf("stats request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var stats application.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return application.Stats{}, fmt.Errorf("decode stats response: %w", err)
	}

	return stats, nil
}

func (a *app) writeStatsOutput(w io.Writer, stats application.Stats, source string, cfg config.Config, jsonMode, yamlMode bool) error {
	switch {
	case jsonMode:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case yamlMode:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("encode stats yaml: %w", err)
		}
		return enc.Close()
	}

	rendered, err := a.statusRenderer(stats, statusadapter.RenderOptions{
		Now:        a.now(),
		StaleAfter: cfg.Refresh.Interval,
		Source:     source,
	})
	if err != nil {
		return fmt.Errorf("render stats: %w", err)
	}

	_, err = fmt.Fprintln(w, rendered)
	return err
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/logging"
)

type seedOutput struct {
	Seed      string `json:"seed"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
	RequestID string `json:"requestId"`
	Degraded  bool   `json:"degraded,omitempty"`
}

func newSeedCmd(app *app) *cobra.Command {
	var (
		size     int
		entropy  string
		purpose  string
		key      string
		refresh  bool
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Produce a seed locally without a running server",
		Long:  "seed bootstraps a private entropy pool, optionally runs one refresh cycle over the configured collectors, and extracts a single seed from it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}

			var sizePtr *int
			if cmd.Flags().Changed("size") {
				sizePtr = &size
			}
			req, err := domain.ParseSeedRequest(sizePtr, entropy, purpose)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !refresh {
				logger = logging.Discard()
			}

			svc, err := wireServices(cfg, logger, nil)
			if err != nil {
				return err
			}

			svc.manager.Bootstrap()
			if refresh {
				if err := svc.manager.Refresh(cmd.Context()); err != nil && !errors.Is(err, domain.ErrRefreshInProgress) {
					logger.Warn("refresh failed, extracting from bootstrap bytes", "error", err)
				}
			}

			result, err := svc.manager.Extract(cmd.Context(), req, key)
			if err != nil {
				return fmt.Errorf("extract seed: %w", err)
			}

			return writeSeedOutput(cmd.OutOrStdout(), result, jsonMode)
		},
	}

	cmd.Flags().IntVar(&size, "size", domain.DefaultSeedSize, "Seed size in bytes (1-128, larger values are clamped)")
	cmd.Flags().StringVar(&entropy, "entropy", "", "Hex-encoded client entropy folded into the seed")
	cmd.Flags().StringVar(&purpose, "purpose", string(domain.PurposeGeneral), "Purpose tag (login, startup, ... are latency critical)")
	cmd.Flags().StringVar(&key, "key", envOrDefault("SEEDPOOL_API_KEY", ""), "Key used to sign the seed")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Run one collector refresh cycle before extracting")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the seed as JSON")

	return cmd
}

func writeSeedOutput(w io.Writer, result domain.SeedResult, jsonMode bool) error {
	if !jsonMode {
		_, err := fmt.Fprintln(w, result.SeedHex())
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(seedOutput{
		Seed:      result.SeedHex(),
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339Nano),
		Signature: result.Signature,
		RequestID: result.RequestID,
		Degraded:  result.Degraded,
	})
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/observability"
	"github.com/pinmap/pinmap/internal/output"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to coordinates",
	Long:  "Resolve an address to candidate coordinates through the configured provider, best match first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json")
	geocodeCmd.Flags().Bool("no-cache", false, "Skip geocode cache lookup")
	geocodeCmd.Flags().Int("limit", 0, "Maximum candidates (0 uses the configured limit)")
}

func runGeocode(cmd *cobra.Command, args []string) error {
	address := strings.TrimSpace(args[0])
	if address == "" {
		return errors.New("address is required")
	}

	formatValue, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}
	if format != output.FormatTable && format != output.FormatJSON {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	if limit > 0 {
		cfg.Geocoder.Limit = limit
	}

	geocoder, err := buildGeocoder(cfg, db, !noCache)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	places, provenance, err := geocoder.Geocode(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNoResults) {
			return fmt.Errorf("no results for %q", address)
		}
		return err
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"query":      address,
			"provider":   geocoder.Provider(),
			"places":     places,
			"provenance": provenance,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Place", "Latitude", "Longitude"})
	for i, place := range places {
		t.AppendRow(table.Row{i + 1, place.DisplayName, fmt.Sprintf("%.6f", place.Lat), fmt.Sprintf("%.6f", place.Long)})
	}
	footer := geocoder.Provider()
	if provenance != nil && provenance.FromCache {
		footer += " (cached)"
	}
	t.AppendFooter(table.Row{"", footer, "", ""})
	fmt.Println(t.Render())

	observability.CLILogger.Debug("Geocode complete",
		zap.String("address", address),
		zap.Int("places", len(places)),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	return nil
}

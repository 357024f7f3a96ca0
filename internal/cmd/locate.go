package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/output"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Estimate the caller's position from its public IP",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		if _, err := config.Load(); err != nil {
			return err
		}
		cfg := config.GetConfig()
		if cfg == nil {
			return errors.New("config not loaded")
		}

		location, err := buildLocator(cfg).Locate(cmd.Context())
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(location, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		parts := make([]string, 0, 3)
		if location.City != "" {
			parts = append(parts, location.City)
		}
		if location.Region != "" {
			parts = append(parts, location.Region)
		}
		if location.Country != "" {
			parts = append(parts, location.Country)
		}
		place := strings.Join(parts, ", ")
		if place == "" {
			place = "(unknown)"
		}

		fmt.Printf("%s\n", place)
		fmt.Printf("Position: %.4f, %.4f\n", location.Position.Lat, location.Position.Long)
		if location.Query != "" {
			fmt.Printf("IP: %s\n", location.Query)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
	locateCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json")
}

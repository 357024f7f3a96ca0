package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/core/engine"
	"github.com/pinmap/pinmap/internal/metrics"
	"github.com/pinmap/pinmap/internal/observability"
	"github.com/pinmap/pinmap/internal/output"
	"github.com/pinmap/pinmap/internal/render"
)

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Compose a map view and render it",
	Long: `Compose a map view from literal coordinates, geocoded addresses, or a
saved JSON document, then render the result.

Markers come from repeatable flags or a markers file:

  pinmap draw --marker "52.516,13.377,Brandenburg Gate" --address "Paris, France"
  pinmap draw --markers-file markers.yaml --output-format html --out map.html
  pinmap draw --from document.json --output-format png --out map.png`,
	RunE: runDraw,
}

func init() {
	rootCmd.AddCommand(drawCmd)

	drawCmd.Flags().String("from", "", "JSON map document file to hydrate ('-' for stdin)")
	drawCmd.Flags().String("markers-file", "", "Markers file (YAML or JSON)")
	drawCmd.Flags().StringArray("marker", nil, "Literal marker 'lat,long[,label]' (repeatable)")
	drawCmd.Flags().StringArray("address", nil, "Address marker (repeatable)")
	drawCmd.Flags().Float64("lat", core.DefaultLat, "Center latitude")
	drawCmd.Flags().Float64("long", core.DefaultLong, "Center longitude")
	drawCmd.Flags().Int("zoom", core.DefaultZoom, "Zoom level (0-19)")
	drawCmd.Flags().String("center-address", "", "Geocode this address for the center before drawing")
	drawCmd.Flags().Bool("locate", false, "Center the view on the caller's IP-estimated position")
	drawCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json, markdown, geojson, html, png")
	drawCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	drawCmd.Flags().String("out-dir", "", "Write output to a directory")
	drawCmd.Flags().Bool("no-cache", false, "Skip geocode cache lookup")
}

// drawFormats beyond the tabular formatters.
const (
	drawFormatHTML = "html"
	drawFormatPNG  = "png"
)

func runDraw(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return err
	}
	formatValue = strings.ToLower(strings.TrimSpace(formatValue))

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	startedAt := time.Now()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	orchestrator, err := buildOrchestrator(cfg, db, !noCache)
	if err != nil {
		return err
	}

	view, batch, err := composeView(ctx, cmd, cfg, orchestrator)
	if err != nil {
		return err
	}

	outPath, err := resolveDrawOutput(cmd, formatValue)
	if err != nil {
		return err
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	switch formatValue {
	case drawFormatHTML:
		if err := writeLeafletPage(sink.writer, cfg, view); err != nil {
			return err
		}
	case drawFormatPNG:
		if err := writeStaticImage(sink.writer, cfg, view); err != nil {
			return err
		}
	default:
		format, err := output.ParseFormat(formatValue)
		if err != nil {
			return err
		}
		formatter := output.NewFormatter(format)
		rendered, err := formatter.FormatDraw(view, batch)
		if err != nil {
			return err
		}
		if rendered != "" {
			if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
				return err
			}
		}
	}

	metrics.RecordMapDrawn("cli")
	logDrawOutcome(batch, startedAt)
	return nil
}

// composeView builds the map view either by hydrating a document file or from
// flag and config inputs.
func composeView(ctx context.Context, cmd *cobra.Command, cfg *config.Config, orchestrator *engine.Orchestrator) (*core.MapView, *core.BatchResult, error) {
	fromPath, err := cmd.Flags().GetString("from")
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(fromPath) != "" {
		data, err := readInputFile(fromPath)
		if err != nil {
			return nil, nil, err
		}
		return orchestrator.Hydrate(ctx, data)
	}

	doc, err := documentFromFlags(ctx, cmd, cfg, orchestrator)
	if err != nil {
		return nil, nil, err
	}
	return orchestrator.Draw(ctx, doc)
}

// documentFromFlags assembles a map document from the center flags, the
// configured initial view, and the marker inputs.
func documentFromFlags(ctx context.Context, cmd *cobra.Command, cfg *config.Config, orchestrator *engine.Orchestrator) (*core.MapDocument, error) {
	doc := &core.MapDocument{
		Position: core.DocumentPosition{
			Lat:  cfg.Map.Lat,
			Long: cfg.Map.Long,
			Zoom: cfg.Map.Zoom,
		},
	}
	if doc.Position.Zoom == 0 {
		doc.Position.Zoom = core.DefaultZoom
	}

	if cmd.Flags().Changed("lat") {
		doc.Position.Lat, _ = cmd.Flags().GetFloat64("lat")
	}
	if cmd.Flags().Changed("long") {
		doc.Position.Long, _ = cmd.Flags().GetFloat64("long")
	}
	if cmd.Flags().Changed("zoom") {
		doc.Position.Zoom, _ = cmd.Flags().GetInt("zoom")
	}

	centerAddress, err := cmd.Flags().GetString("center-address")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(centerAddress) == "" {
		centerAddress = cfg.Map.Address
	}

	useLocate, err := cmd.Flags().GetBool("locate")
	if err != nil {
		return nil, err
	}

	switch {
	case useLocate:
		location, err := orchestrator.Locate(ctx)
		if err != nil {
			return nil, fmt.Errorf("locate center: %w", err)
		}
		doc.Position.Lat = location.Position.Lat
		doc.Position.Long = location.Position.Long
	case strings.TrimSpace(centerAddress) != "":
		places, _, err := orchestrator.Geocoder.Geocode(ctx, centerAddress)
		if err != nil {
			return nil, fmt.Errorf("resolve center address: %w", err)
		}
		if len(places) == 0 {
			return nil, fmt.Errorf("resolve center address: %w", core.ErrNoResults)
		}
		doc.Position.Lat = places[0].Lat
		doc.Position.Long = places[0].Long
	}

	specs, err := collectMarkerSpecs(cmd)
	if err != nil {
		return nil, err
	}
	doc.Markers = specs

	return doc, nil
}

// collectMarkerSpecs merges --marker, --address, and --markers-file inputs in
// that order.
func collectMarkerSpecs(cmd *cobra.Command) ([]core.MarkerSpec, error) {
	specs := make([]core.MarkerSpec, 0)

	literals, err := cmd.Flags().GetStringArray("marker")
	if err != nil {
		return nil, err
	}
	for _, literal := range literals {
		spec, err := parseLiteralMarker(literal)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	addresses, err := cmd.Flags().GetStringArray("address")
	if err != nil {
		return nil, err
	}
	for _, address := range addresses {
		trimmed := strings.TrimSpace(address)
		if trimmed == "" {
			continue
		}
		specs = append(specs, core.MarkerSpec{Address: trimmed})
	}

	markersFile, err := cmd.Flags().GetString("markers-file")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(markersFile) != "" {
		fromFile, err := readMarkersFile(markersFile)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fromFile...)
	}

	return specs, nil
}

// parseLiteralMarker parses "lat,long[,label]".
func parseLiteralMarker(value string) (core.MarkerSpec, error) {
	parts := strings.SplitN(value, ",", 3)
	if len(parts) < 2 {
		return core.MarkerSpec{}, fmt.Errorf("invalid marker %q: expected lat,long[,label]", value)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.MarkerSpec{}, fmt.Errorf("invalid marker latitude %q: %w", parts[0], err)
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.MarkerSpec{}, fmt.Errorf("invalid marker longitude %q: %w", parts[1], err)
	}

	spec := core.MarkerSpec{Lat: &lat, Long: &long}
	if len(parts) == 3 {
		spec.Label = strings.TrimSpace(parts[2])
	}
	return spec, nil
}

// markersFileEntry mirrors core.MarkerSpec with yaml tags so marker files can
// be written in either YAML or JSON.
type markersFileEntry struct {
	Address   string   `yaml:"address" json:"address"`
	Lat       *float64 `yaml:"lat" json:"lat"`
	Long      *float64 `yaml:"long" json:"long"`
	Label     string   `yaml:"label" json:"label"`
	PopupText string   `yaml:"popup_text" json:"popupText"`
	IconURL   string   `yaml:"icon_url" json:"icon_url"`
}

type markersFileDoc struct {
	Markers []markersFileEntry `yaml:"markers" json:"markers"`
}

func readMarkersFile(path string) ([]core.MarkerSpec, error) {
	data, err := readInputFile(path)
	if err != nil {
		return nil, err
	}

	// yaml.v3 also accepts JSON input, so a single decode path covers both.
	var doc markersFileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse markers file %s: %w", path, err)
	}
	if len(doc.Markers) == 0 {
		return nil, fmt.Errorf("markers file %s contains no markers", path)
	}

	specs := make([]core.MarkerSpec, 0, len(doc.Markers))
	for _, entry := range doc.Markers {
		spec := core.MarkerSpec{
			Address:   strings.TrimSpace(entry.Address),
			Lat:       entry.Lat,
			Long:      entry.Long,
			Label:     entry.Label,
			PopupText: entry.PopupText,
		}
		if strings.TrimSpace(entry.IconURL) != "" {
			spec.Icon = &core.IconSpec{URL: strings.TrimSpace(entry.IconURL)}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func readInputFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path) // #nosec G304 -- user-supplied input path
}

func writeLeafletPage(w io.Writer, cfg *config.Config, view *core.MapView) error {
	page, err := buildLeafletRenderer(cfg).Render(view)
	if err != nil {
		return err
	}
	_, err = w.Write(page)
	return err
}

func writeStaticImage(w io.Writer, cfg *config.Config, view *core.MapView) error {
	img, err := buildStaticRenderer(cfg).Render(view)
	if err != nil {
		return err
	}
	return render.EncodeImage(w, img, "png", 0)
}

// resolveDrawOutput applies --out/--out-dir, deriving a filename from the
// format when only a directory is given.
func resolveDrawOutput(cmd *cobra.Command, formatValue string) (string, error) {
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return "", err
	}
	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return "", err
	}

	outPath = strings.TrimSpace(outPath)
	outDir = strings.TrimSpace(outDir)
	if outPath != "" && outDir != "" {
		return "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	if outDir == "" {
		return outPath, nil
	}

	outDir, err = ensureOutDir(outDir)
	if err != nil {
		return "", err
	}

	ext := formatValue
	switch formatValue {
	case drawFormatHTML, drawFormatPNG:
		// extension matches the format name
	default:
		format, err := output.ParseFormat(formatValue)
		if err != nil {
			return "", err
		}
		ext = outputExtension(format)
	}
	return filepath.Join(outDir, fmt.Sprintf("map.%s", ext)), nil
}

func logDrawOutcome(batch *core.BatchResult, startedAt time.Time) {
	if batch == nil {
		return
	}
	observability.CLILogger.Info(
		"Draw complete",
		zap.Int("added", batch.Added),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
}

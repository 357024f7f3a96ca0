package cmd

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pinmap/pinmap/internal/render"
)

var thumbCmd = &cobra.Command{
	Use:   "thumb <image>",
	Short: "Generate a thumbnail for a rendered map image",
	Long:  "Generate a smaller thumbnail (png/jpeg) of a rendered map image for easier review.",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumb,
}

func init() {
	rootCmd.AddCommand(thumbCmd)

	thumbCmd.Flags().String("out", "", "Output path (defaults to <name>.thumbnail.<ext>)")
	thumbCmd.Flags().Int("max-size", 256, "Max thumbnail dimension (64-1024)")
	thumbCmd.Flags().String("format", "jpeg", "Thumbnail format: jpeg or png")
	thumbCmd.Flags().Int("jpeg-quality", 80, "JPEG quality (1-100)")
}

func runThumb(cmd *cobra.Command, args []string) error {
	inPath := strings.TrimSpace(args[0])
	outPath, _ := cmd.Flags().GetString("out")
	maxSize, _ := cmd.Flags().GetInt("max-size")
	format, _ := cmd.Flags().GetString("format")
	jpegQuality, _ := cmd.Flags().GetInt("jpeg-quality")

	format = strings.ToLower(strings.TrimSpace(format))
	if maxSize < 64 || maxSize > 1024 {
		return errors.New("--max-size must be between 64 and 1024")
	}

	if strings.TrimSpace(outPath) == "" {
		base := strings.TrimSuffix(inPath, filepath.Ext(inPath))
		ext := "jpg"
		if format == "png" {
			ext = "png"
		}
		outPath = fmt.Sprintf("%s.thumbnail.%s", base, ext)
	}

	inFile, err := os.Open(inPath) // #nosec G304 -- user-supplied input path
	if err != nil {
		return err
	}
	defer inFile.Close() // nolint:errcheck

	src, _, err := image.Decode(inFile)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inPath, err)
	}

	thumb, err := render.Thumbnail(src, maxSize)
	if err != nil {
		return err
	}

	outFile, err := os.Create(outPath) // #nosec G304 -- user-supplied output path
	if err != nil {
		return err
	}
	defer outFile.Close() // nolint:errcheck

	if err := render.EncodeImage(outFile, thumb, format, jpegQuality); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

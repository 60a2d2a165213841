package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// convertHEICtoPNG converts a HEIC/HEIF photo to PNG so it can be decoded.
// converter: "magick" | "heif-convert" | "sips".
//
// Returns (outPath, warnings, cleanup, err). cleanup is non-nil whenever a temp dir was created.
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in string) (string, []string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "iv-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn("failed to remove heic temp dir", "dir", tmpDir, "error", err)
		}
	}
	out := filepath.Join(tmpDir, "photo.png")

	var args []string
	switch converter {
	case "magick", "heif-convert":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", nil, cleanup, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: magick | heif-convert | sips")
	}

	if _, errb, err := r.Run(ctx, logger, converter, args...); err != nil {
		return "", []string{string(errb)}, cleanup, fmt.Errorf("%s convert failed: %w", converter, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	logger.Debug("converted heic", "in", in, "out", out, "converter", converter)
	return out, nil, cleanup, nil
}

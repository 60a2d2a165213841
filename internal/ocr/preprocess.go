package ocr

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"math"
	"os"

	"github.com/disintegration/imaging"
)

// preprocess writes an OCR-friendly copy of the image: bounded height,
// greyscale, stretched contrast, sharpened. Returns the temp PNG path.
func (e *Extractor) preprocess(path string) (string, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	img := PrepareForOCR(src, e.cfg.MaxImageHeight)

	f, err := os.CreateTemp(e.cfg.TempDir, "iv-prep-*.png")
	if err != nil {
		return "", err
	}
	out := f.Name()
	if err := f.Close(); err != nil {
		e.removeArtifact(out)
		return "", err
	}
	if err := imaging.Save(img, out); err != nil {
		e.removeArtifact(out)
		return "", fmt.Errorf("write preprocessed image: %w", err)
	}
	return out, nil
}

// PrepareForOCR applies the in-memory preprocessing chain. Images are never enlarged.
func PrepareForOCR(src image.Image, maxHeight int) *image.NRGBA {
	img := src
	if maxHeight > 0 && src.Bounds().Dy() > maxHeight {
		img = imaging.Resize(src, 0, maxHeight, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	return imaging.Sharpen(stretchContrast(gray), 1.0)
}

// stretchContrast maps the luminance range of a greyscale image onto 0..255.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(math.Round(float64(c.R-lo) * scale))
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func (e *Extractor) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("failed to remove temp artifact", "path", path, "error", err)
	}
}

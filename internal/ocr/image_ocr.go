package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/constants"
)

// RecognizeImage preprocesses the photo, then runs tesseract for text and
// word-level confidences. The preprocessed artifact is always removed.
func (e *Extractor) RecognizeImage(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{Method: MethodImageOCR, Language: e.cfg.Language, Pages: 1}

	src := path
	if constants.IsHEICExt(filepath.Ext(path)) {
		out, warns, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path)
		if cleanup != nil {
			defer cleanup()
		}
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return res, err
		}
		src = out
	}

	prepped, err := e.preprocess(src)
	if err != nil {
		return res, fmt.Errorf("preprocess image: %w", err)
	}
	defer e.removeArtifact(prepped)

	txt, warns, err := e.tesseractOCR(ctx, prepped)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)

	conf, words, err := e.tesseractTSVConfidence(ctx, prepped)
	if err != nil {
		// text is still usable; a missing confidence scores as 0
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.Confidence = conf
	res.Words = words
	res.Duration = time.Since(start)

	e.logger.Debug("image ocr done",
		"path", path,
		"chars", len(res.Text),
		"words", words,
		"confidence", conf,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) tesseractArgs(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, extra...)
}

// tesseractOCR runs `tesseract <file> stdout -l <lang>`.
func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.logger, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns the mean word confidence (0..100).
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, int, error) {
	out, _, err := e.runner.Run(ctx, e.logger, e.cfg.Tesseract, e.tesseractArgs(path, "tsv")...)
	if err != nil {
		return 0, 0, fmt.Errorf("tesseract tsv: %w", err)
	}
	mean, n := MeanWordConfidence(string(out))
	return mean, n, nil
}

// MeanWordConfidence averages the conf column over recognized words of a
// tesseract TSV dump. Rows without text or with conf -1 are layout rows.
func MeanWordConfidence(tsv string) (float64, int) {
	var sum float64
	var n int
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		// level page block par line word left top width height conf text
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if strings.TrimSpace(cols[11]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/pipeline"
)

func main() {
	common.LoadDotEnv(nil)
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "inspect <certificate.pdf|photo.jpg>")
		os.Exit(2)
	}
	path, err := filepath.Abs(os.Args[1])
	if err != nil {
		logger.Error("invalid path", "arg", os.Args[1], "error", err)
		os.Exit(2)
	}
	fi, err := os.Stat(path)
	if err != nil {
		logger.Error("cannot read file", "path", path, "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.FileTimeout)
	defer cancel()

	p := pipeline.NewFromConfig(cfg.OCR, logger)

	start := time.Now()
	res, err := p.Analyze(ctx, async.File{
		OriginalName: fi.Name(),
		StoredName:   fi.Name(),
		Path:         path,
		Size:         fi.Size(),
		MimeType:     constants.MimeForExt(filepath.Ext(path)),
	})
	dur := time.Since(start)
	if err != nil {
		logger.Error("verification failed", "file", fi.Name(), "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}
	if err := res.Validate(); err != nil {
		logger.Warn("result does not match schema", "error", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	logger.Info("verification OK",
		"file", fi.Name(),
		"status", res.Status,
		"confidence", res.Confidence,
		"duration_ms", dur.Milliseconds(),
	)
}

package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
)

// FSIngestor reads candidate documents from the local filesystem.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> upload set
	logger      *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{logger: logger}
}

// Inspect hashes one file and describes it as queue input.
func (i *FSIngestor) Inspect(ctx context.Context, path string) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Candidate{}, err
	}
	ext := filepath.Ext(abs)
	if !AllowedExt(i.AllowedExts, ext) {
		return Candidate{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Candidate{}, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("close file error", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Candidate{}, fmt.Errorf("hash %s: %w", abs, err)
	}

	name := filepath.Base(abs)
	return Candidate{
		File: async.File{
			OriginalName: name,
			StoredName:   name,
			Path:         abs,
			Size:         n,
			MimeType:     constants.MimeForExt(ext),
		},
		HashHex: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// CollectDirectory walks root and returns one File per distinct content, in
// walk order. Files whose content was already seen are counted but not returned.
func (i *FSIngestor) CollectDirectory(ctx context.Context, root string, skipHidden bool) ([]async.File, []Candidate, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		files []async.File
		seen  []Candidate
		stats DirStats
	)
	hashes := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			seen = append(seen, Candidate{File: async.File{Path: path}, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(i.AllowedExts, filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		c, err := i.Inspect(ctx, path)
		if err != nil {
			seen = append(seen, Candidate{File: async.File{Path: path}, Err: err.Error()})
			stats.Failed++
			return nil
		}
		stats.Succeeded++
		if first, dup := hashes[c.HashHex]; dup {
			c.Deduplicated = true
			stats.Deduplicated++
			i.logger.Debug("skipping duplicate content", "path", c.File.Path, "same_as", first)
		} else {
			hashes[c.HashHex] = c.File.Path
			files = append(files, c.File)
		}
		seen = append(seen, c)
		return nil
	})
	if err != nil {
		return files, seen, stats, fmt.Errorf("walk: %w", err)
	}
	return files, seen, stats, nil
}

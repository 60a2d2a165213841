package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/inspection-verifier/constants"
)

// AllowedExt checks ext against exts, or the upload extensions when exts is nil.
func AllowedExt(exts map[string]struct{}, ext string) bool {
	if exts == nil {
		exts = constants.AllowedExtensions
	}
	_, ok := exts[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && strings.HasPrefix(base, ".")
}

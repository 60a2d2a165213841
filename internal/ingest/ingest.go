// Package ingest turns local files into queue input for batch verification.
package ingest

import (
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
)

// Candidate is one discovered file and its content hash.
type Candidate struct {
	File         async.File
	HashHex      string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

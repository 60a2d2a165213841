package constants

import "strings"

// DocumentType classifies an input file for extraction and scoring.
type DocumentType string

const (
	PDF     DocumentType = "PDF"
	IMAGE   DocumentType = "IMAGE"
	UNKNOWN DocumentType = "UNKNOWN"
)

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
)

// Upload limits enforced by the HTTP layer.
const (
	DefaultMaxFilesPerJob = 5
	DefaultMaxFileSize    = 10 << 20
)

// AllowedExtensions holds the file extensions accepted for verification uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
}

// AllowedMimeTypes holds the upload mime types accepted by the API.
var AllowedMimeTypes = map[string]struct{}{
	MimePDF:     {},
	MimeJPEG:    {},
	"image/jpg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMime lowercases a mime type and drops any parameters.
func NormalizeMime(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// DocumentTypeForMime maps application/pdf to PDF and image/* to IMAGE.
func DocumentTypeForMime(mime string) DocumentType {
	m := NormalizeMime(mime)
	switch {
	case m == MimePDF:
		return PDF
	case strings.HasPrefix(m, "image/"):
		return IMAGE
	default:
		return UNKNOWN
	}
}

// MimeForExt guesses the mime type of a local file from its extension.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MimePDF
	case "jpg", "jpeg":
		return MimeJPEG
	case "png":
		return "image/png"
	case "heic":
		return "image/heic"
	case "heif":
		return "image/heif"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// IsHEICExt reports whether the extension needs conversion before decoding.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

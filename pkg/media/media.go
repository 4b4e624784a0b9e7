package media

import (
	"mime"
	"path/filepath"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind is the presentation class of a file. It is decided once, when the
// file is first seen, and carried with it from then on.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindPDF
	KindWord
)

// Icon names, as used by the lucide icon set
const (
	IconFile        = "file"
	IconFileText    = "file-text"
	IconImage       = "image"
	IconSpreadsheet = "file-spreadsheet"
	IconArchive     = "file-archive"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Classify returns the kind of a file from its declared media type, falling
// back to the filename extension when the media type is missing or generic.
func Classify(mediaType, name string) Kind {
	mediaType = baseType(mediaType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case mediaType == "application/pdf":
		return KindPDF
	case mediaType == "application/msword",
		mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindWord
	}

	// Extension fallback for platforms with a sparse mime database
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".doc", ".docx":
		return KindWord
	case ".jpg", ".jpeg", ".png":
		return KindImage
	}
	return KindOther
}

// Previewable reports whether a local preview can be rendered for the kind.
func (k Kind) Previewable() bool {
	return k == KindImage || k == KindPDF
}

// Icon returns the icon name for a media type.
func Icon(mediaType string) string {
	mediaType = strings.ToLower(mediaType)
	switch {
	case strings.Contains(mediaType, "pdf"):
		return IconFileText
	case strings.Contains(mediaType, "image"):
		return IconImage
	case strings.Contains(mediaType, "word"), strings.Contains(mediaType, "document"):
		return IconFileText
	case strings.Contains(mediaType, "sheet"), strings.Contains(mediaType, "excel"):
		return IconSpreadsheet
	case strings.Contains(mediaType, "zip"):
		return IconArchive
	default:
		return IconFile
	}
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindWord:
		return "word"
	default:
		return "other"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func baseType(v string) string {
	if v == "" {
		return ""
	}
	if t, _, err := mime.ParseMediaType(v); err == nil {
		return t
	}
	return strings.ToLower(strings.TrimSpace(v))
}

package textextract

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDOCX        Format = "docx"
	FormatDOC         Format = "doc"
	FormatImage       Format = "image"
	FormatTXT         Format = "txt"
	FormatUnsupported Format = "unsupported"
)

var ErrUnsupportedFormat = errors.New("unsupported file type")

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/msword": FormatDOC,
	"text/plain":         FormatTXT,
	"image/png":          FormatImage,
	"image/jpeg":         FormatImage,
	"image/jpg":          FormatImage,
	"image/tiff":         FormatImage,
	"image/bmp":          FormatImage,
	"image/webp":         FormatImage,
	"image/gif":          FormatImage,
}

var extFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOC,
	".txt":  FormatTXT,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
	".bmp":  FormatImage,
	".webp": FormatImage,
	".gif":  FormatImage,
}

// genericMIME types carry no format information, so the extension decides.
var genericMIME = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/zip":          true,
}

// Detect classifies a file by its declared MIME type and filename. A specific
// MIME type wins over the extension; unknown combinations are rejected.
func Detect(mimeType, filename string) (Format, error) {
	mt := normalizeMIME(mimeType)
	if !genericMIME[mt] {
		if f, ok := mimeFormats[mt]; ok {
			return f, nil
		}
		return FormatUnsupported, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return FormatUnsupported, fmt.Errorf("%w: no MIME type or extension for %q", ErrUnsupportedFormat, filename)
	}
	return FormatUnsupported, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// MIMEType returns the canonical MIME type for a format.
func MIMEType(f Format) string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatDOC:
		return "application/msword"
	case FormatTXT:
		return "text/plain"
	case FormatImage:
		return "image/png"
	}
	return "application/octet-stream"
}

func normalizeMIME(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return s
}

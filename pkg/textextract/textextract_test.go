package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		filename string
		want     Format
		wantErr  bool
	}{
		{name: "pdf by mime", mime: "application/pdf", filename: "cv.pdf", want: FormatPDF},
		{name: "mime wins over extension", mime: "application/pdf", filename: "cv.docx", want: FormatPDF},
		{name: "mime with parameters", mime: "text/plain; charset=utf-8", filename: "cv", want: FormatTXT},
		{name: "docx by extension with generic mime", mime: "application/octet-stream", filename: "Resume.DOCX", want: FormatDOCX},
		{name: "legacy doc", mime: "application/msword", filename: "cv.doc", want: FormatDOC},
		{name: "image by mime", mime: "image/jpeg", filename: "scan", want: FormatImage},
		{name: "image by extension", mime: "", filename: "scan.tiff", want: FormatImage},
		{name: "unknown mime", mime: "application/x-rar", filename: "cv.pdf", want: FormatUnsupported, wantErr: true},
		{name: "unknown extension", mime: "", filename: "cv.pages", want: FormatUnsupported, wantErr: true},
		{name: "nothing to go on", mime: "", filename: "cv", want: FormatUnsupported, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.mime, tt.filename)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses spaces and tabs", in: "Jane \t  Doe", want: "Jane Doe"},
		{name: "normalizes line endings", in: "a\r\nb\rc", want: "a\nb\nc"},
		{name: "clamps blank lines", in: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "blank lines made of spaces", in: "a\n  \n \n  \nb", want: "a\n\nb"},
		{name: "strips control characters", in: "Go\x00lang\x07 dev\u200b", want: "Golang dev"},
		{name: "non-breaking space", in: "Senior\u00a0Engineer", want: "Senior Engineer"},
		{name: "trims", in: "\n\n  Summary  \n\n", want: "Summary"},
		{name: "keeps replacement characters", in: "caf�", want: "caf�"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cleanup(tt.in))
		})
	}
}

func TestCleanupIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Jane Doe\r\n\r\n\r\n  Software   Engineer \t\n\n\n\nSkills:\tGo,  SQL\x0c",
		" \n  x \n\n\n y\u0000",
		"line\n \n \n \nline",
	}
	for _, in := range inputs {
		once := Cleanup(in)
		assert.Equal(t, once, Cleanup(once), "input %q", in)
	}
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, "Jane Doe", "Experience", "Built payment systems in Go &amp; Rust")

	out, err := ExtractDOCX(data)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nExperience\nBuilt payment systems in Go & Rust", Cleanup(out.Content))
	assert.Equal(t, 1, out.Pages)
}

func TestExtractDOCXStructuralErrors(t *testing.T) {
	var se *StructuralError

	_, err := ExtractDOCX([]byte("definitely not a zip archive"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &se))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("content.txt")
	require.NoError(t, zw.Close())

	_, err = ExtractDOCX(buf.Bytes())
	require.Error(t, err)
	assert.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	_, err := ExtractPDF([]byte("%PDF-1.4 truncated"))
	require.Error(t, err)
	var se *StructuralError
	assert.True(t, errors.As(err, &se))
}

func TestCountPDFPages(t *testing.T) {
	data := []byte("1 0 obj << /Type /Pages /Kids [2 0 R 3 0 R] >> 2 0 obj << /Type /Page >> 3 0 obj <</Type/Page/Parent 1 0 R>>")
	assert.Equal(t, 2, CountPDFPages(data))
	assert.Equal(t, 1, CountPDFPages([]byte("%PDF-1.4")))
}

func TestExtractTXT(t *testing.T) {
	out, err := ExtractTXT([]byte("\xef\xbb\xbfJane Doe\nGo developer"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo developer", out.Content)

	out, err = ExtractTXT([]byte("caf\xe9"))
	require.NoError(t, err)
	assert.Equal(t, "caf�", out.Content)
}

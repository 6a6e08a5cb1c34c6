package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

type ExtractedText struct {
	Content string
	Pages   int
}

// StructuralError means the file could not be opened as the claimed format
// (damaged, truncated or not the format at all).
type StructuralError struct {
	Format Format
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid %s structure: %v", e.Format, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

var ErrProtected = errors.New("document is password protected")

var rePDFPage = regexp.MustCompile(`/Type\s*/Page(?:[^s]|$)`)

// ExtractPDF reads the text layer of a PDF. The pdf package panics on some
// malformed inputs; those are reported as structural errors.
func ExtractPDF(data []byte) (out *ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &StructuralError{Format: FormatPDF, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
			return nil, fmt.Errorf("%w: %v", ErrProtected, err)
		}
		return nil, &StructuralError{Format: FormatPDF, Err: err}
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{Content: buf.String(), Pages: numPages}, nil
}

// CountPDFPages estimates the page count from raw page objects. It is used
// when the text layer cannot be parsed; at least one page is assumed.
func CountPDFPages(data []byte) int {
	n := len(rePDFPage.FindAllIndex(data, -1))
	if n == 0 {
		return 1
	}
	return n
}

// ExtractDOCX reads word/document.xml from an Office Open XML package,
// keeping paragraph, tab and line breaks.
func ExtractDOCX(data []byte) (*ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &StructuralError{Format: FormatDOCX, Err: err}
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &StructuralError{Format: FormatDOCX, Err: fmt.Errorf("open document.xml: %w", err)}
		}
		defer rc.Close()

		text, err := wordprocessingText(rc)
		if err != nil {
			return nil, &StructuralError{Format: FormatDOCX, Err: fmt.Errorf("read document.xml: %w", err)}
		}
		return &ExtractedText{Content: text, Pages: 1}, nil
	}

	return nil, &StructuralError{Format: FormatDOCX, Err: errors.New("word/document.xml not found")}
}

func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return buf.String(), nil
}

// ExtractTXT decodes plain text as UTF-8. Invalid sequences become U+FFFD so
// the validator can flag them.
func ExtractTXT(data []byte) (*ExtractedText, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return &ExtractedText{Content: s, Pages: 1}, nil
}

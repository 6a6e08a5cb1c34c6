package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/pkg/textextract"
)

const (
	shortTextChars      = 50
	unbrokenTextChars   = 500
	scanSuspectChars    = 200
	lowOCRConfidencePct = 80.0
)

// Validation is the quality verdict on extracted text. Warnings never fail
// the pipeline; only completely empty text is invalid.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Warnings []string `json:"warnings"`
}

func Validate(text string, meta models.ExtractionMetadata) Validation {
	n := utf8.RuneCountInString(text)
	v := Validation{IsValid: n > 0}

	if n == 0 {
		v.Warnings = append(v.Warnings, "No text could be extracted from the document.")
		return v
	}
	if n < shortTextChars {
		v.Warnings = append(v.Warnings, fmt.Sprintf("Extracted text is very short (%d characters).", n))
	}
	if n > unbrokenTextChars && !strings.Contains(text, "\n") {
		v.Warnings = append(v.Warnings, "Extracted text has no line breaks; document formatting may have been lost.")
	}
	if strings.ContainsAny(text, "�□■") {
		v.Warnings = append(v.Warnings, "Extracted text contains replacement characters; the document may have encoding issues.")
	}
	if meta.Format == string(textextract.FormatPDF) && meta.Pages == 1 && n < scanSuspectChars {
		v.Warnings = append(v.Warnings, "Single-page PDF with very little text; the document may be a scan.")
	}
	if meta.OCRConfidence != nil && *meta.OCRConfidence < lowOCRConfidencePct {
		v.Warnings = append(v.Warnings, fmt.Sprintf("Low OCR confidence (%.0f%%); some text may be misrecognized.", *meta.OCRConfidence))
	}
	return v
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

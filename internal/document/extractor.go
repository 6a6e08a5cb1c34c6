package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/nikhilbhutani/resumeflow/internal/apperr"
	"github.com/nikhilbhutani/resumeflow/internal/models"
	"github.com/nikhilbhutani/resumeflow/internal/ocr"
	"github.com/nikhilbhutani/resumeflow/pkg/textextract"
)

// MinPDFTextLength is the text-layer length below which a PDF is treated as
// image-based and sent through OCR.
const MinPDFTextLength = 100

// ScannedPDFPlaceholder stands in for the text of an image-based PDF that
// OCR could not read.
const ScannedPDFPlaceholder = "[This PDF appears to be image-based and its text could not be recognized automatically. Upload a text-based PDF or DOCX for full results.]"

const (
	MethodPDFText        = "pdf-text"
	MethodPDFOCR         = "pdf-ocr"
	MethodPDFPlaceholder = "pdf-placeholder"
	MethodDOCX           = "docx"
	MethodDOCLegacy      = "doc-legacy"
	MethodImageOCR       = "image-ocr"
	MethodText           = "txt"
)

const LegacyFormatWarning = "format: legacy .doc file, extraction fidelity may be reduced; convert to DOCX for best results"

type OCR interface {
	RecognizePDF(ctx context.Context, data []byte) (*ocr.Result, error)
	RecognizeImage(ctx context.Context, data []byte) (*ocr.Result, error)
}

type Result struct {
	Text     string
	Metadata models.ExtractionMetadata
}

type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format textextract.Format) (*Result, error)
}

type Engine struct {
	ocr     OCR
	pdfText func([]byte) (*textextract.ExtractedText, error)
	logger  *slog.Logger
}

func NewEngine(o OCR, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ocr: o, pdfText: textextract.ExtractPDF, logger: logger}
}

// Extract turns file bytes into cleaned text. It returns either non-empty
// text or a classified *apperr.Error.
func (e *Engine) Extract(ctx context.Context, data []byte, format textextract.Format) (*Result, error) {
	if len(data) == 0 {
		return nil, apperr.Newf(apperr.KindEmptyDocument, apperr.PhaseTextExtraction, "file is empty")
	}

	var (
		res *Result
		err error
	)
	switch format {
	case textextract.FormatPDF:
		res, err = e.extractPDF(ctx, data)
	case textextract.FormatDOCX:
		res, err = e.extractDOCX(data)
	case textextract.FormatDOC:
		res, err = e.extractDOC(data)
	case textextract.FormatImage:
		res, err = e.extractImage(ctx, data)
	case textextract.FormatTXT:
		res, err = e.extractTXT(data)
	default:
		return nil, apperr.Newf(apperr.KindUnsupportedFileType, apperr.PhaseTextExtraction, "unsupported format %q", format)
	}
	if err != nil {
		return nil, apperr.Classify(err, apperr.PhaseTextExtraction)
	}

	if res.Text == "" {
		return nil, apperr.Newf(apperr.KindEmptyDocument, apperr.PhaseTextExtraction, "no text extracted from %s", format)
	}
	res.Metadata.Format = string(format)
	res.Metadata.CharCount = utf8.RuneCountInString(res.Text)
	res.Metadata.WordCount = countWords(res.Text)
	return res, nil
}

func (e *Engine) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	out, err := e.pdfText(data)

	var se *textextract.StructuralError
	switch {
	case errors.Is(err, textextract.ErrProtected):
		return nil, apperr.New(apperr.KindProtectedDocument, apperr.PhaseTextExtraction, err)
	case errors.As(err, &se):
		e.logger.Warn("pdf text layer unreadable, trying ocr", "error", err)
		return e.ocrFallback(ctx, data, "", textextract.CountPDFPages(data), err)
	case err != nil:
		return nil, err
	}

	text := textextract.Cleanup(out.Content)
	if utf8.RuneCountInString(text) < MinPDFTextLength {
		e.logger.Info("pdf text layer too short, trying ocr", "chars", utf8.RuneCountInString(text), "pages", out.Pages)
		return e.ocrFallback(ctx, data, text, max(out.Pages, 1), nil)
	}

	return &Result{
		Text:     text,
		Metadata: models.ExtractionMetadata{Method: MethodPDFText, Pages: out.Pages},
	}, nil
}

// ocrFallback rasterizes and OCRs a PDF whose text layer was short or
// unreadable. When OCR fails the primary text, or a placeholder, is kept
// with a processing note; a structurally broken PDF fails instead.
func (e *Engine) ocrFallback(ctx context.Context, data []byte, primary string, pages int, structErr error) (*Result, error) {
	var ocrErr error
	if e.ocr == nil {
		ocrErr = ocr.ErrUnavailable
	} else {
		res, err := e.ocr.RecognizePDF(ctx, data)
		if err == nil {
			if text := textextract.Cleanup(res.Text); text != "" {
				meta := models.ExtractionMetadata{
					Method:         MethodPDFOCR,
					Pages:          res.Pages,
					ProcessingNote: "Text was recognized with OCR because the PDF has little or no text layer.",
					Warnings:       res.Warnings,
				}
				if res.Confidence >= 0 {
					conf := res.Confidence
					meta.OCRConfidence = &conf
				}
				return &Result{Text: text, Metadata: meta}, nil
			}
			err = errors.New("ocr returned no text")
		}
		ocrErr = err
	}

	if structErr != nil && !scanLike(data) {
		return nil, apperr.New(apperr.KindCorruptedFile, apperr.PhaseTextExtraction,
			fmt.Errorf("%w; ocr fallback: %v", structErr, ocrErr))
	}

	e.logger.Warn("ocr fallback failed, keeping best-effort text", "error", ocrErr, "structural_error", structErr != nil)
	meta := models.ExtractionMetadata{
		Method:         MethodPDFText,
		Pages:          pages,
		ProcessingNote: fmt.Sprintf("Document appears to be image-based; OCR could not extract text (%v).", ocrErr),
	}
	if primary == "" {
		meta.Method = MethodPDFPlaceholder
		primary = ScannedPDFPlaceholder
	}
	return &Result{Text: primary, Metadata: meta}, nil
}

// smallPDFBytes is the size below which a PDF with a valid header but an
// unreadable body is treated as a bare scan rather than a damaged file.
const smallPDFBytes = 4 << 10

// scanLike reports whether bytes the PDF reader rejected still look like an
// image-only PDF: a real %PDF- header and either a tiny body or embedded
// image objects. Anything else is a damaged file.
func scanLike(data []byte) bool {
	head := bytes.TrimLeft(data[:min(len(data), 1024)], " \t\r\n")
	if !bytes.HasPrefix(head, []byte("%PDF-")) {
		return false
	}
	return len(data) <= smallPDFBytes || bytes.Contains(data, []byte("/Image"))
}

func (e *Engine) extractDOCX(data []byte) (*Result, error) {
	out, err := textextract.ExtractDOCX(data)
	if err != nil {
		return nil, apperr.New(apperr.KindCorruptedFile, apperr.PhaseTextExtraction, err)
	}
	return &Result{
		Text:     textextract.Cleanup(out.Content),
		Metadata: models.ExtractionMetadata{Method: MethodDOCX, Pages: out.Pages},
	}, nil
}

// extractDOC reads a legacy .doc with the DOCX extractor. Only .doc files
// that are really Office Open XML packages succeed.
func (e *Engine) extractDOC(data []byte) (*Result, error) {
	out, err := textextract.ExtractDOCX(data)
	if err != nil {
		return nil, apperr.New(apperr.KindExtractionFailed, apperr.PhaseTextExtraction, err).
			WithMessage("This legacy .doc file could not be read.").
			WithRecovery("Open the file in a word processor, save it as DOCX or PDF, and re-upload.")
	}
	return &Result{
		Text: textextract.Cleanup(out.Content),
		Metadata: models.ExtractionMetadata{
			Method:   MethodDOCLegacy,
			Pages:    out.Pages,
			Legacy:   true,
			Warnings: []string{LegacyFormatWarning},
		},
	}, nil
}

func (e *Engine) extractImage(ctx context.Context, data []byte) (*Result, error) {
	if e.ocr == nil {
		return nil, apperr.New(apperr.KindOCRFailed, apperr.PhaseTextExtraction, ocr.ErrUnavailable)
	}
	res, err := e.ocr.RecognizeImage(ctx, data)
	if err != nil {
		return nil, apperr.New(apperr.KindOCRFailed, apperr.PhaseTextExtraction, err)
	}

	meta := models.ExtractionMetadata{Method: MethodImageOCR, Pages: 1, Warnings: res.Warnings}
	if res.Confidence >= 0 {
		conf := res.Confidence
		meta.OCRConfidence = &conf
	}
	return &Result{Text: textextract.Cleanup(res.Text), Metadata: meta}, nil
}

func (e *Engine) extractTXT(data []byte) (*Result, error) {
	out, err := textextract.ExtractTXT(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:     textextract.Cleanup(out.Content),
		Metadata: models.ExtractionMetadata{Method: MethodText, Pages: 1},
	}, nil
}

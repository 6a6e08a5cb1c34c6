// Package ocr recognizes text in scanned PDFs and images with tesseract.
// PDFs are rasterized with pdftoppm first.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/resumeflow/internal/config"
)

var ErrUnavailable = errors.New("ocr: tesseract is not available")

type Result struct {
	Text  string
	Pages int
	// Confidence is the mean word confidence in 0..100, or -1 when unknown.
	Confidence float64
	Warnings   []string
}

type Engine struct {
	cfg    config.OCRConfig
	runner Runner
	logger *slog.Logger
}

func New(cfg config.OCRConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(cfg, execRunner{timeout: cfg.Timeout, logger: logger}, logger)
}

func NewWithRunner(cfg config.OCRConfig, runner Runner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Engine{cfg: cfg, runner: runner, logger: logger}
}

func (e *Engine) Available(ctx context.Context) bool {
	_, _, err := e.runner.Run(ctx, e.cfg.Tesseract, "--version")
	return err == nil
}

// RecognizeImage runs a full OCR pass over one image.
func (e *Engine) RecognizeImage(ctx context.Context, data []byte) (*Result, error) {
	if !e.Available(ctx) {
		return nil, ErrUnavailable
	}

	dir, err := os.MkdirTemp("", "resume-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp dir: %w", err)
	}
	defer e.removeAll(dir)

	path := filepath.Join(dir, "image")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("ocr write image: %w", err)
	}

	text, conf, warns, err := e.recognize(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Pages: 1, Confidence: conf, Warnings: warns}, nil
}

// RecognizePDF rasterizes each page and OCRs it. Pages that fail are skipped
// with a warning; the call fails only when no page produced text.
func (e *Engine) RecognizePDF(ctx context.Context, data []byte) (*Result, error) {
	if !e.Available(ctx) {
		return nil, ErrUnavailable
	}

	dir, err := os.MkdirTemp("", "resume-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp dir: %w", err)
	}
	defer e.removeAll(dir)

	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("ocr write pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	if _, _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, rasterArgs(e.cfg.DPI, e.cfg.MaxPages, in, prefix)...); err != nil {
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return nil, errors.New("pdftoppm produced no page images")
	}

	var (
		b        strings.Builder
		warns    []string
		confSum  float64
		confSeen int
	)
	for _, img := range pages {
		txt, conf, w, err := e.recognize(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, fmt.Sprintf("%s: %v", filepath.Base(img), err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
		if conf >= 0 {
			confSum += conf
			confSeen++
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		return nil, fmt.Errorf("ocr recognized no text on %d pages", len(pages))
	}

	res := &Result{Text: b.String(), Pages: len(pages), Confidence: -1, Warnings: warns}
	if confSeen > 0 {
		res.Confidence = confSum / float64(confSeen)
	}
	return res, nil
}

func (e *Engine) recognize(ctx context.Context, path string) (string, float64, []string, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, recognizeArgs(path, e.cfg.Lang, false)...)
	if err != nil {
		return "", 0, nil, fmt.Errorf("recognize %s: %w", filepath.Base(path), err)
	}

	conf, err := e.tsvConfidence(ctx, path)
	if err != nil {
		return string(out), -1, []string{err.Error()}, nil
	}
	return string(out), conf, nil, nil
}

// tsvConfidence runs tesseract in TSV mode and returns the mean word
// confidence in 0..100, or -1 when no word carried a confidence.
func (e *Engine) tsvConfidence(ctx context.Context, path string) (float64, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, recognizeArgs(path, e.cfg.Lang, true)...)
	if err != nil {
		return -1, fmt.Errorf("tesseract tsv: %w", err)
	}
	return MeanConfidence(string(out)), nil
}

// MeanConfidence averages the conf column of tesseract TSV output, skipping
// the header and non-word rows (conf -1).
func MeanConfidence(tsv string) float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return -1
	}
	return sum / n
}

func (e *Engine) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("failed to remove ocr temp dir", "dir", dir, "error", err)
	}
}

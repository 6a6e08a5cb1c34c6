package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Runner executes the OCR toolchain. Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ToolError is a failed pdftoppm or tesseract run. ExitCode is -1 when the
// process never exited on its own (missing binary, killed on timeout).
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited %d: %v", e.Tool, e.ExitCode, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// stderrLimit caps how much diagnostic output a run keeps. tesseract can be
// very chatty on noisy scans.
const stderrLimit = 8 << 10

type execRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	errb := &cappedBuffer{limit: stderrLimit}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = errb

	start := time.Now()
	err := cmd.Run()
	log := r.logger.With("tool", filepath.Base(name), "duration_ms", time.Since(start).Milliseconds())
	if err == nil {
		log.Debug("ocr tool finished", "stdout_bytes", out.Len())
		return out.Bytes(), errb.Bytes(), nil
	}

	te := &ToolError{Tool: filepath.Base(name), ExitCode: -1, Stderr: errb.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = ctxErr
	}
	log.Warn("ocr tool failed", "exit_code", te.ExitCode, "error", te.Err, "stderr", te.Stderr)
	return out.Bytes(), errb.Bytes(), te
}

// cappedBuffer keeps the first limit bytes written and counts the rest.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	keep := min(max(c.limit-c.buf.Len(), 0), len(p))
	c.buf.Write(p[:keep])
	c.dropped += len(p) - keep
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }

func (c *cappedBuffer) String() string {
	s := string(bytes.TrimSpace(c.buf.Bytes()))
	if c.dropped > 0 {
		s += fmt.Sprintf("...(%d bytes truncated)", c.dropped)
	}
	return s
}

// rasterArgs renders in as PNGs named <prefix>-N.png. With maxPages set only
// pages 1..maxPages are rendered, so a long scan costs no more than the
// pages OCR will read.
func rasterArgs(dpi, maxPages int, in, prefix string) []string {
	args := []string{"-r", strconv.Itoa(dpi)}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	return append(args, "-png", in, prefix)
}

// recognizeArgs reads path to stdout as plain text, or as word-level TSV
// carrying per-word confidence.
func recognizeArgs(path, lang string, tsv bool) []string {
	args := []string{path, "stdout", "-l", lang}
	if tsv {
		args = append(args, "tsv")
	}
	return args
}

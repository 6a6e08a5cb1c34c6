package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRasterArgs(t *testing.T) {
	assert.Equal(t, []string{"-r", "300", "-f", "1", "-l", "3", "-png", "in.pdf", "page"},
		rasterArgs(300, 3, "in.pdf", "page"))
	assert.Equal(t, []string{"-r", "150", "-png", "in.pdf", "page"},
		rasterArgs(150, 0, "in.pdf", "page"))
}

func TestRecognizeArgs(t *testing.T) {
	assert.Equal(t, []string{"p.png", "stdout", "-l", "deu"}, recognizeArgs("p.png", "deu", false))
	assert.Equal(t, "tsv", recognizeArgs("p.png", "eng", true)[4])
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, "abcd", string(b.Bytes()))
	assert.Equal(t, "abcd...(4 bytes truncated)", b.String())
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := execRunner{logger: discardLogger()}
	_, _, err := r.Run(context.Background(), "resumeflow-no-such-tool")

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "resumeflow-no-such-tool", te.Tool)
	assert.Equal(t, -1, te.ExitCode)
}

func TestExecRunnerExitCodeAndStderr(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := execRunner{logger: discardLogger()}
	_, stderr, err := r.Run(context.Background(), "sh", "-c", "echo 'bad page' >&2; exit 3")

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, te.ExitCode)
	assert.Equal(t, "bad page", te.Stderr)
	assert.Equal(t, "bad page\n", string(stderr))
	assert.True(t, strings.HasPrefix(te.Error(), "sh exited 3"))
}

func TestExecRunnerTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	r := execRunner{timeout: 50 * time.Millisecond, logger: discardLogger()}
	_, _, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

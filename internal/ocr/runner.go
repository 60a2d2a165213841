package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stderrLogCap bounds how much tool stderr lands in a single log record.
const stderrLogCap = 8 << 10

// Runner executes the external OCR/PDF binaries. Tests plug in a fake.
type Runner interface {
	Run(ctx context.Context, logger *slog.Logger, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

// Run executes name with args. A missing binary and a run cut short by ctx
// come back as distinct errors so callers can degrade to another engine.
func (execRunner) Run(ctx context.Context, logger *slog.Logger, name string, args ...string) ([]byte, []byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		logger.Warn("ocr tool unavailable", "cmd", name, "error", err)
		return nil, nil, fmt.Errorf("%s unavailable: %w", name, err)
	}

	start := time.Now()
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	attrs := []any{"cmd", name, "args", strings.Join(args, " "), "duration_ms", time.Since(start).Milliseconds()}

	switch {
	case err != nil && ctx.Err() != nil:
		// the process was killed by the deadline; report that rather than the signal
		err = fmt.Errorf("%s: %w", name, ctx.Err())
		logger.Warn("exec interrupted", append(attrs, "error", err)...)
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			attrs = append(attrs, "exit_code", exitErr.ExitCode())
		}
		logger.Error("exec failed", append(attrs, "error", err, "stderr", truncate(errb.String(), stderrLogCap))...)
	default:
		logger.Debug("exec ok", append(attrs, "stdout_bytes", out.Len(), "stderr_bytes", errb.Len())...)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner invokes the ffmpeg binary. The zero value is not usable; create
// one with NewRunner.
type Runner struct {
	binary string
}

// NewRunner creates a runner for the given ffmpeg binary. An empty binary
// name means "ffmpeg" resolved from PATH.
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{binary: binary}
}

// Capture grabs a single frame from a camera stream into spec.OutputPath.
// Cancelling the context kills the ffmpeg process.
func (r *Runner) Capture(ctx context.Context, spec CaptureSpec) error {
	return r.run(ctx, BuildCaptureArgs(spec))
}

// Encode renders frames matching spec.FramePattern into a video at
// spec.OutputPath. Cancelling the context kills the ffmpeg process.
func (r *Runner) Encode(ctx context.Context, spec EncodeSpec) error {
	return r.run(ctx, BuildEncodeArgs(spec))
}

func (r *Runner) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", r.binary, err, lastStderrLine(&stderr))
	}
	return nil
}

// lastStderrLine extracts the final non-empty stderr line, which is where
// ffmpeg puts the actual failure reason.
func lastStderrLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}

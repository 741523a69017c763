package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ToolError is a failed external tool invocation.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Run executes name with args and returns stdout. The context bounds the
// process; when it expires the error wraps ctx.Err().
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return RunIn(ctx, "", name, args...)
}

// RunIn is Run with a working directory.
func RunIn(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("running tool")
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ToolError{Tool: name, Err: fmt.Errorf("timed out after %v: %w", time.Since(start).Round(time.Millisecond), ctxErr)}
	}
	if err != nil {
		return nil, &ToolError{Tool: name, Err: err, Stderr: trimOutput(stderr.String())}
	}
	log.Debug().Str("tool", name).Dur("duration", time.Since(start)).Msg("tool finished")
	return stdout.Bytes(), nil
}

// Available reports whether every binary is on PATH.
func Available(binaries ...string) error {
	var missing []string
	for _, b := range binaries {
		if _, err := exec.LookPath(b); err != nil {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", exec.ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// IsMissingTool reports whether err came from a binary that is not installed.
func IsMissingTool(err error) bool { return errors.Is(err, exec.ErrNotFound) }

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		return s[:400] + "..."
	}
	return s
}

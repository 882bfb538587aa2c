// Package execx runs external tools as argument-vector subprocesses with
// captured output. Commands are never passed through a shell; callers build
// argv directly from resolved paths.
package execx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrToolInvocation is returned when an external tool exits non-zero or
// cannot be started at all.
var ErrToolInvocation = errors.Base("tool invocation failed")

// Result holds the captured output of one subprocess run.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Run executes argv[0] with argv[1:], blocking until the process exits.
// Stdout and stderr are captured; a non-zero exit wraps ErrToolInvocation
// with the tool's stderr included for diagnosis.
func Run(ctx context.Context, argv ...string) (Result, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Strs("argv", argv).Msg("running tool")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()},
			errors.Errorf("%s: %s: %w: %w", strings.Join(argv, " "), firstLine(stderr.Bytes()), err, ErrToolInvocation)
	}
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// RunToFile executes argv with stdout redirected to the named file,
// creating or truncating it. Stderr is still captured for error reporting.
func RunToFile(ctx context.Context, outPath string, argv ...string) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Strs("argv", argv).Str("stdout", outPath).Msg("running tool with redirected output")

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Errorf("creating %q: %w", outPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Errorf("%s: %s: %w: %w", strings.Join(argv, " "), firstLine(stderr.Bytes()), err, ErrToolInvocation)
	}
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		s = "(no stderr)"
	}
	return s
}

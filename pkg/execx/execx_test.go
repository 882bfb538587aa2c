package execx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(res.Stdout))
}

func TestRun_NonZeroExit(t *testing.T) {
	_, err := Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolInvocation)
	assert.Contains(t, err.Error(), "oops")
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := Run(context.Background(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolInvocation)
}

func TestRunToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	err := RunToFile(context.Background(), out, "sh", "-c", "printf compiled")
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(got))
}

func TestRunToFile_FailureStillReportsStderr(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	err := RunToFile(context.Background(), out, "sh", "-c", "echo bad input >&2; exit 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolInvocation)
	assert.Contains(t, err.Error(), "bad input")
}

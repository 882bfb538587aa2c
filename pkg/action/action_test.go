package action

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delphi-ops/deploykit/pkg/config"
	"github.com/delphi-ops/deploykit/pkg/header"
	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/pathspec"
	"github.com/delphi-ops/deploykit/pkg/report"
)

// testEnv builds an Env rooted at a fresh workspace with a quiet reporter.
func testEnv(t *testing.T) *Env {
	t.Helper()
	cfg := &config.Config{
		DatabasePath:    "unused.db",
		SharedExportDir: filepath.Join(t.TempDir(), "exports"),
	}
	require.NoError(t, cfg.Validate())

	return &Env{
		RepoLink:  "https://github.com/owner/repo",
		Commit:    "abc1234",
		Workspace: t.TempDir(),
		Config:    cfg,
		Reporter:  report.New(io.Discard, zerolog.Nop()),
		Header:    header.New(),
	}
}

func writeWorkspaceFile(t *testing.T, env *Env, rel, content string) string {
	t.Helper()
	path := filepath.Join(env.Workspace, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// stubTool drops a fake executable onto PATH for the duration of the test.
func stubTool(t *testing.T, name, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestExecute_CopyAndMove(t *testing.T) {
	t.Run("copy_keeps_source", func(t *testing.T) {
		env := testEnv(t)
		writeWorkspaceFile(t, env, "a.txt", "payload")
		dst := filepath.Join(t.TempDir(), "out", "a.txt")

		err := Execute(context.Background(), env, instruction.Action{
			Kind: instruction.KindCopy, Src: "a.txt", Dst: dst,
		})
		require.NoError(t, err)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))
		assert.FileExists(t, filepath.Join(env.Workspace, "a.txt"))
	})

	t.Run("move_removes_source_after_copy", func(t *testing.T) {
		env := testEnv(t)
		writeWorkspaceFile(t, env, "a.txt", "payload")
		dst := filepath.Join(t.TempDir(), "a.txt")

		err := Execute(context.Background(), env, instruction.Action{
			Kind: instruction.KindMove, Src: "a.txt", Dst: dst,
		})
		require.NoError(t, err)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))
		assert.NoFileExists(t, filepath.Join(env.Workspace, "a.txt"))
	})

	t.Run("source_outside_workspace_rejected", func(t *testing.T) {
		env := testEnv(t)
		outside := filepath.Join(t.TempDir(), "secret.txt")
		require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

		err := Execute(context.Background(), env, instruction.Action{
			Kind: instruction.KindCopy, Src: outside, Dst: filepath.Join(t.TempDir(), "out.txt"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, pathspec.ErrPathEscape)
	})
}

func TestExecute_CopyWithMatch(t *testing.T) {
	env := testEnv(t)
	writeWorkspaceFile(t, env, "src/a.js", "a")
	writeWorkspaceFile(t, env, "src/b.js", "b")
	writeWorkspaceFile(t, env, "src/c.txt", "c")
	dstDir := filepath.Join(t.TempDir(), "out")

	err := Execute(context.Background(), env, instruction.Action{
		Kind: instruction.KindCopy, Src: "src", Dst: dstDir, Match: `\.js$`,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dstDir, "a.js"))
	assert.FileExists(t, filepath.Join(dstDir, "b.js"))
	assert.NoFileExists(t, filepath.Join(dstDir, "c.txt"))
}

func TestExecute_CopyWithHeaderAndKeywords(t *testing.T) {
	env := testEnv(t)
	writeWorkspaceFile(t, env, "app.js", "var host = '__HOST__';\n")
	writeWorkspaceFile(t, env, "values.json", `[["__HOST__", "prod.example.com"]]`)
	dst := filepath.Join(t.TempDir(), "app.js")

	err := Execute(context.Background(), env, instruction.Action{
		Kind:             instruction.KindCopy,
		Src:              "app.js",
		Dst:              dst,
		AddHeaderComment: true,
		ReplaceKeywords:  instruction.TemplateList{"values.json"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	text := string(got)
	assert.True(t, strings.HasPrefix(text, "/*"), "header comment expected")
	assert.Contains(t, text, "var host = 'prod.example.com';")
	assert.NotContains(t, text, "__HOST__")

	// workspace source is untouched
	orig, err := os.ReadFile(filepath.Join(env.Workspace, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "var host = '__HOST__';\n", string(orig))
}

func TestExecute_PrivilegedDestinationIsStaged(t *testing.T) {
	// sudo stub strips "-u <user>" and runs the wrapped command directly
	stubTool(t, "sudo", `shift; shift; exec "$@"`)

	env := testEnv(t)
	privRoot := t.TempDir()
	env.Config.PrivilegedPrefixes = []string{privRoot + "/"}
	env.Config.StagingDir = t.TempDir()
	env.Config.PrivilegedUser = "webadmin"

	writeWorkspaceFile(t, env, "index.html", "<html></html>")
	dst := filepath.Join(privRoot, "site", "index.html")

	err := Execute(context.Background(), env, instruction.Action{
		Kind: instruction.KindCopy, Src: "index.html", Dst: dst,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	// staged intermediate is moved away, not left behind
	assert.NoFileExists(t, filepath.Join(env.Config.StagingDir, "index.html__tmp"))
}

func TestExecute_UnsupportedKind(t *testing.T) {
	env := testEnv(t)
	err := Execute(context.Background(), env, instruction.Action{Kind: instruction.Kind("frobnicate")})
	require.Error(t, err)
	assert.ErrorIs(t, err, instruction.ErrInvalidAction)
}

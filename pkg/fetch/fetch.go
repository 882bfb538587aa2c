// Package fetch populates a workspace directory with a deployable unit's
// files, either by cloning a repository or by extracting a local archive.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/execx"
)

// ErrFetch is returned when a unit's files cannot be obtained.
var ErrFetch = errors.Base("fetch failed")

// Result describes a successfully fetched unit.
type Result struct {
	URL    string // provenance URL recorded in headers
	Commit string // commit hash, or content hash for archives
}

// Fetcher populates an existing empty workspace directory.
type Fetcher interface {
	Fetch(ctx context.Context, workspace string) (Result, error)
}

// GitFetcher clones a GitHub repository. The clone is bounded by Timeout;
// a clone that does not finish in time fails the unit.
type GitFetcher struct {
	Owner   string
	Name    string
	Timeout time.Duration
}

var _ Fetcher = (*GitFetcher)(nil)

// URL returns the clone URL for the repository.
func (f *GitFetcher) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", f.Owner, f.Name)
}

// Fetch clones the repository into workspace and resolves HEAD.
func (f *GitFetcher) Fetch(ctx context.Context, workspace string) (Result, error) {
	logger := zerolog.Ctx(ctx)
	url := f.URL()

	cloneCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		cloneCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	if _, err := execx.Run(cloneCtx, "git", "clone", url, workspace); err != nil {
		return Result{}, errors.Errorf("cloning %s: %w: %w", url, err, ErrFetch)
	}

	out, err := execx.Run(ctx, "git", "--git-dir", filepath.Join(workspace, ".git"), "rev-parse", "HEAD")
	if err != nil {
		return Result{}, errors.Errorf("resolving HEAD of %s: %w: %w", url, err, ErrFetch)
	}
	commit := strings.TrimSpace(string(out.Stdout))
	logger.Info().Str("commit", commit).Msg("most recent commit")

	// strip the .git suffix for the provenance link
	return Result{URL: strings.TrimSuffix(url, ".git"), Commit: commit}, nil
}

// ArchiveFetcher extracts a local tar/zip package. The archive's SHA-1 is
// the unit's content identity.
type ArchiveFetcher struct {
	Path string
}

var _ Fetcher = (*ArchiveFetcher)(nil)

// Fetch extracts the archive into workspace. When extraction yields exactly
// one top-level directory its contents are flattened up to the workspace
// root, so instruction documents nested by "zip a repo" layouts are found.
func (f *ArchiveFetcher) Fetch(ctx context.Context, workspace string) (Result, error) {
	logger := zerolog.Ctx(ctx)

	hash, err := hashFile(f.Path)
	if err != nil {
		return Result{}, errors.Errorf("hashing %q: %w: %w", f.Path, err, ErrFetch)
	}
	logger.Info().Str("sha1", hash).Msg("package content hash")

	if err := extract(f.Path, workspace); err != nil {
		return Result{}, errors.Errorf("extracting %q: %w: %w", f.Path, err, ErrFetch)
	}
	if err := flattenSingleDir(workspace); err != nil {
		return Result{}, errors.Errorf("flattening %q: %w: %w", workspace, err, ErrFetch)
	}

	return Result{URL: "file://" + f.Path, Commit: hash}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// flattenSingleDir moves the contents of a lone top-level directory up to
// root and removes the emptied directory.
func flattenSingleDir(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	inner := filepath.Join(root, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(inner, child.Name()), filepath.Join(root, child.Name())); err != nil {
			return err
		}
	}
	return os.Remove(inner)
}

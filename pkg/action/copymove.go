package action

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/execx"
	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/pathspec"
	"github.com/delphi-ops/deploykit/pkg/template"
)

// 📋 copyMove handles the copy and move actions. With a match expression
// src and dst name directories and the single-file logic runs once per
// matched immediate child; otherwise they name files directly.
func copyMove(ctx context.Context, env *Env, a instruction.Action, isMove bool) error {
	src, err := env.resolve(ctx, a.Src)
	if err != nil {
		return err
	}
	dst, err := env.resolve(ctx, a.Dst)
	if err != nil {
		return err
	}

	sources := []pathspec.ResolvedPath{src}
	destinations := []pathspec.ResolvedPath{dst}

	if a.Match != "" {
		re, err := regexp.Compile(a.Match)
		if err != nil {
			return errors.Errorf("compiling match expression %q: %w", a.Match, err)
		}
		sources = sources[:0]
		destinations = destinations[:0]

		entries, err := os.ReadDir(src.Abs)
		if err != nil {
			return errors.Errorf("listing %q: %w", src.Abs, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || !re.MatchString(name) {
				continue
			}
			matchedSrc, err := pathspec.Resolve(ctx, name, src.Abs, nil)
			if err != nil {
				return err
			}
			matchedDst, err := pathspec.Resolve(ctx, name, dst.Abs, nil)
			if err != nil {
				return err
			}
			sources = append(sources, matchedSrc)
			destinations = append(destinations, matchedDst)
		}
	}

	for i := range sources {
		if err := copySingle(ctx, env, a, sources[i], destinations[i], isMove); err != nil {
			return err
		}
	}
	return nil
}

// 📄 copySingle applies the single-file copy/move logic: containment check
// on the source, optional header injection and keyword replacement, then
// the direct or staged copy, and for move the removal of the original.
func copySingle(ctx context.Context, env *Env, a instruction.Action, src, dst pathspec.ResolvedPath, isMove bool) error {
	verb := "copy"
	if isMove {
		verb = "move"
	}
	env.Reporter.Action(verb, src.Base, dst.Base)

	if err := pathspec.CheckWithin(src, env.Workspace); err != nil {
		return err
	}
	original := src

	if a.AddHeaderComment {
		withHeader, err := env.Header.Inject(ctx, env.RepoLink, env.Commit, src, dst.Ext)
		if err != nil {
			return err
		}
		src = withHeader
	}

	if len(a.ReplaceKeywords) > 0 {
		templates := make([]pathspec.ResolvedPath, 0, len(a.ReplaceKeywords))
		for _, name := range a.ReplaceKeywords {
			t, err := env.resolve(ctx, name)
			if err != nil {
				return err
			}
			templates = append(templates, t)
		}
		pairs, err := template.LoadPairs(templates)
		if err != nil {
			return err
		}
		valued, err := template.Apply(ctx, src, pairs)
		if err != nil {
			return err
		}
		src = valued
	}

	if env.Config.IsPrivileged(dst.Abs) {
		if err := stagedCopy(ctx, env, src, dst); err != nil {
			return err
		}
	} else {
		env.Reporter.Detail("%s -> %s", src.Abs, dst.Abs)
		if err := os.MkdirAll(dst.Dir, 0o755); err != nil {
			return errors.Errorf("creating %q: %w", dst.Dir, err)
		}
		if err := copyFile(src.Abs, dst.Abs); err != nil {
			return err
		}
	}

	if isMove {
		if err := os.Remove(original.Abs); err != nil {
			return errors.Errorf("removing moved source %q: %w", original.Abs, err)
		}
	}
	return nil
}

// 🔒 stagedCopy places a file into a privileged destination: copy into the
// neutral staging directory first, then let the privileged user create the
// destination directory and move the file into place.
func stagedCopy(ctx context.Context, env *Env, src, dst pathspec.ResolvedPath) error {
	tmp, err := pathspec.Resolve(ctx, src.Base+"__tmp", env.Config.StagingDir, nil)
	if err != nil {
		return err
	}
	env.Reporter.Detail("%s -> %s (staged)", src.Abs, tmp.Abs)
	if err := os.MkdirAll(filepath.Dir(tmp.Abs), 0o755); err != nil {
		return errors.Errorf("creating staging dir %q: %w", filepath.Dir(tmp.Abs), err)
	}
	if err := copyFile(src.Abs, tmp.Abs); err != nil {
		return err
	}

	user := env.Config.PrivilegedUser
	if _, err := execx.Run(ctx, "sudo", "-u", user, "mkdir", "-p", dst.Dir); err != nil {
		return err
	}
	if _, err := execx.Run(ctx, "sudo", "-u", user, "mv", "-f", tmp.Abs, dst.Abs); err != nil {
		return err
	}
	return nil
}

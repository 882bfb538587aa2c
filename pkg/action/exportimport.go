package action

import (
	"context"
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

// 📤 exportFile places a file in the shared export directory so other
// units can import it. This is the single-file copy logic with a
// predefined destination; headers and keyword replacement still apply.
func exportFile(ctx context.Context, env *Env, a instruction.Action) error {
	src, err := env.resolve(ctx, a.Src)
	if err != nil {
		return err
	}

	name := a.Name
	if name == "" {
		name = src.Base
	}
	named, err := pathspec.Resolve(ctx, name, "", nil)
	if err != nil {
		return err
	}
	dst, err := pathspec.Resolve(ctx, named.Base, env.Config.SharedExportDir, env.Subs)
	if err != nil {
		return err
	}

	return copySingle(ctx, env, a, src, dst, false)
}

// 📥 importFile links a destination to a file previously exported into the
// shared directory. Creating the same link twice is an idempotent success;
// a non-link object at the destination is a conflict every time.
func importFile(ctx context.Context, env *Env, a instruction.Action) error {
	dst, err := env.resolve(ctx, a.Dst)
	if err != nil {
		return err
	}

	name := a.Name
	if name == "" {
		name = dst.Base
	}
	named, err := pathspec.Resolve(ctx, name, "", nil)
	if err != nil {
		return err
	}
	src, err := pathspec.Resolve(ctx, named.Base, env.Config.SharedExportDir, env.Subs)
	if err != nil {
		return err
	}

	env.Reporter.Action("import", src.Abs, dst.Abs)

	if err := os.MkdirAll(dst.Dir, 0o755); err != nil {
		return errors.Errorf("creating %q: %w", dst.Dir, err)
	}

	info, lerr := os.Lstat(dst.Abs)
	switch {
	case lerr != nil && os.IsNotExist(lerr):
		if err := os.Symlink(src.Abs, dst.Abs); err != nil {
			return errors.Errorf("creating symlink %q: %w", dst.Abs, err)
		}
		env.Reporter.Detail("created symlink")
		return nil
	case lerr != nil:
		return errors.Errorf("inspecting %q: %w", dst.Abs, lerr)
	case info.Mode()&os.ModeSymlink != 0:
		env.Reporter.Detail("symlink with destination name already exists")
		return nil
	default:
		return errors.Errorf("import destination %q: %w", dst.Abs, ErrDestinationConflict)
	}
}

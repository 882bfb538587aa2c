// Package action implements the closed set of deployment actions an
// instruction document may request: copy, move, compile-coffee,
// minimize-js, export and import.
package action

import (
	"context"
	"io"
	"os"

	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/config"
	"github.com/delphi-ops/deploykit/pkg/header"
	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/pathspec"
	"github.com/delphi-ops/deploykit/pkg/report"
)

// ErrDestinationConflict is returned when an import finds a non-link
// object already occupying its destination.
var ErrDestinationConflict = errors.Base("object with destination name already exists")

// 🔧 Env carries everything an executor needs for one unit of work.
type Env struct {
	RepoLink  string                 // provenance URL for headers
	Commit    string                 // commit or content hash for headers
	Workspace string                 // the unit's workspace root
	Subs      pathspec.Substitutions // path placeholder substitutions
	Config    *config.Config
	Reporter  *report.Reporter
	Header    *header.Injector
}

// 🏃 Execute dispatches one well-formed action row to its executor.
// Side effects are filesystem mutations and subprocess invocations;
// success is a silent return.
func Execute(ctx context.Context, env *Env, a instruction.Action) error {
	switch a.Kind {
	case instruction.KindCopy:
		return copyMove(ctx, env, a, false)
	case instruction.KindMove:
		return copyMove(ctx, env, a, true)
	case instruction.KindCompileCoffee:
		return compileCoffee(ctx, env, a)
	case instruction.KindMinimizeJS:
		return minimizeJS(ctx, env, a)
	case instruction.KindExport:
		return exportFile(ctx, env, a)
	case instruction.KindImport:
		return importFile(ctx, env, a)
	default:
		return errors.Errorf("unsupported action %q: %w", a.Kind, instruction.ErrInvalidAction)
	}
}

// resolve is the package-wide shorthand for resolving a logical name
// against the unit's workspace with its substitution map.
func (env *Env) resolve(ctx context.Context, name string) (pathspec.ResolvedPath, error) {
	return pathspec.Resolve(ctx, name, env.Workspace, env.Subs)
}

// copyFile copies content and permissions; destinations are truncated.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("stating %q: %w", src, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode()&0o777)
	if err != nil {
		return errors.Errorf("creating %q: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Errorf("copying %q to %q: %w", src, dst, err)
	}
	return nil
}

package action

import (
	"context"

	"github.com/delphi-ops/deploykit/pkg/execx"
	"github.com/delphi-ops/deploykit/pkg/instruction"
	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

// ☕ compileCoffee transpiles a CoffeeScript file. Without an explicit dst
// the output lands next to the source with its extension replaced by "js".
func compileCoffee(ctx context.Context, env *Env, a instruction.Action) error {
	src, err := env.resolve(ctx, a.Src)
	if err != nil {
		return err
	}

	var dst pathspec.ResolvedPath
	if a.Dst != "" {
		dst, err = env.resolve(ctx, a.Dst)
	} else {
		base := src.Base
		if src.Ext != "" {
			base = base[:len(base)-len(src.Ext)] + "js"
		} else {
			base += ".js"
		}
		dst, err = pathspec.Resolve(ctx, base, src.Dir, nil)
	}
	if err != nil {
		return err
	}

	if err := pathspec.CheckWithin(src, env.Workspace); err != nil {
		return err
	}

	env.Reporter.Action(string(a.Kind), src.Base, dst.Base)
	return execx.RunToFile(ctx, dst.Abs, "coffee", "-c", "-p", src.Abs)
}

// 🗜️ minimizeJS minifies a JavaScript file, overwriting the source when no
// dst is given.
func minimizeJS(ctx context.Context, env *Env, a instruction.Action) error {
	src, err := env.resolve(ctx, a.Src)
	if err != nil {
		return err
	}

	dst := src
	if a.Dst != "" {
		dst, err = env.resolve(ctx, a.Dst)
		if err != nil {
			return err
		}
	}

	if err := pathspec.CheckWithin(src, env.Workspace); err != nil {
		return err
	}

	env.Reporter.Action(string(a.Kind), src.Base, dst.Base)
	_, err = execx.Run(ctx, "uglifyjs", src.Abs, "-c", "-m", "-o", dst.Abs)
	return err
}

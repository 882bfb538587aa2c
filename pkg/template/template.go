// Package template rewrites literal keywords inside file contents using
// key/value pairs loaded from template-definition files.
package template

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

// Pair is one keyword replacement: every literal occurrence of Key becomes
// Value.
type Pair struct {
	Key   string
	Value string
}

// LoadPairs reads an ordered list of template-definition files and
// concatenates their pairs in file order. Each file is a JSON array of
// [key, value] string pairs. Two files may define the same key; the later
// pair simply applies after the earlier one, no conflict is detected.
func LoadPairs(files []pathspec.ResolvedPath) ([]Pair, error) {
	var pairs []Pair
	for _, f := range files {
		data, err := os.ReadFile(f.Abs)
		if err != nil {
			return nil, errors.Errorf("reading template %q: %w", f.Abs, err)
		}
		var raw [][2]string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Errorf("parsing template %q: %w", f.Abs, err)
		}
		for _, kv := range raw {
			pairs = append(pairs, Pair{Key: kv[0], Value: kv[1]})
		}
	}
	return pairs, nil
}

// Apply writes a copy of src with every pair applied to every line, in pair
// order, and returns the path of the derived file. The input file is never
// mutated; the derived file lives next to it with a "__valued" suffix.
func Apply(ctx context.Context, src pathspec.ResolvedPath, pairs []Pair) (pathspec.ResolvedPath, error) {
	logger := zerolog.Ctx(ctx)

	dst, err := pathspec.Resolve(ctx, src.Abs+"__valued", "", nil)
	if err != nil {
		return pathspec.ResolvedPath{}, err
	}
	logger.Debug().Int("pairs", len(pairs)).Str("src", src.Abs).Str("dst", dst.Abs).Msg("replacing keywords")

	in, err := os.Open(src.Abs)
	if err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("opening %q: %w", src.Abs, err)
	}
	defer in.Close()

	out, err := os.Create(dst.Abs)
	if err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("creating %q: %w", dst.Abs, err)
	}
	defer out.Close()

	// Lines keep their terminators so the derived file is byte-identical to
	// the source everywhere no keyword matched.
	w := bufio.NewWriter(out)
	r := bufio.NewReader(in)
	for {
		line, readErr := r.ReadString('\n')
		if line != "" {
			for _, p := range pairs {
				line = strings.ReplaceAll(line, p.Key, p.Value)
			}
			if _, err := w.WriteString(line); err != nil {
				return pathspec.ResolvedPath{}, errors.Errorf("writing %q: %w", dst.Abs, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return pathspec.ResolvedPath{}, errors.Errorf("reading %q: %w", src.Abs, readErr)
		}
	}
	if err := w.Flush(); err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("flushing %q: %w", dst.Abs, err)
	}
	return dst, nil
}

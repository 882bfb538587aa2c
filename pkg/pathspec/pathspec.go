// Package pathspec resolves logical file names from instruction documents
// into absolute path descriptors and enforces workspace containment.
package pathspec

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrPathEscape is returned when a resolved path is not contained in the
// workspace it must stay inside of.
var ErrPathEscape = errors.Base("path escapes workspace")

// ResolvedPath is an absolute path split into its reusable parts.
// Ext is everything after the first dot of the base name, so
// "foo.min.js" has Ext "min.js". It is empty when the name has no dot.
type ResolvedPath struct {
	Abs  string // canonical absolute path
	Dir  string // containing directory
	Base string // base name
	Ext  string // suffix after the first dot of Base, or ""
}

// Substitution is one placeholder replacement. The key is written without
// delimiters; it appears in logical names as [[key]].
type Substitution struct {
	Key   string
	Value string
}

// Substitutions is an ordered list of placeholder replacements. Order is
// observable whenever one value contains another key's placeholder, so
// instruction documents keep their object order here instead of a map.
type Substitutions []Substitution

// UnmarshalJSON decodes a JSON object of string values, preserving the
// order its keys appear in the document.
func (s *Substitutions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Errorf("parsing substitutions: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("substitutions must be an object with string values")
	}

	var out Substitutions
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Errorf("parsing substitutions: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("substitution keys must be strings")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return errors.Errorf("substitution value for %q must be a string: %w", key, err)
		}
		out = append(out, Substitution{Key: key, Value: value})
	}
	*s = out
	return nil
}

// Resolve turns a logical name into a ResolvedPath. Every substitution is
// applied as a literal [[key]] find/replace, in list order, before the name
// is joined with base (when non-empty) and canonicalized. Each substitution
// made is reported at debug level.
func Resolve(ctx context.Context, name, base string, subs Substitutions) (ResolvedPath, error) {
	logger := zerolog.Ctx(ctx)

	substituted := name
	for _, sub := range subs {
		pattern := "[[" + sub.Key + "]]"
		if strings.Contains(substituted, pattern) {
			substituted = strings.ReplaceAll(substituted, pattern, sub.Value)
			logger.Debug().Str("key", sub.Key).Str("value", sub.Value).Msg("substituted path placeholder")
		}
	}
	if substituted != name {
		logger.Debug().Str("from", name).Str("to", substituted).Msg("resolved substituted name")
		name = substituted
	}

	// An absolute name stands on its own; base only anchors relative ones.
	if base != "" && !filepath.IsAbs(name) {
		name = filepath.Join(base, name)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return ResolvedPath{}, errors.Errorf("canonicalizing %q: %w", name, err)
	}

	dir, baseName := filepath.Split(abs)
	dir = filepath.Clean(dir)

	ext := ""
	if i := strings.Index(baseName, "."); i >= 0 {
		ext = baseName[i+1:]
	}

	return ResolvedPath{Abs: abs, Dir: dir, Base: baseName, Ext: ext}, nil
}

// CheckWithin confirms that p lies inside root. The check is a plain string
// prefix test against the canonicalized root; symlink-based escapes are out
// of scope here.
func CheckWithin(p ResolvedPath, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.Errorf("canonicalizing root %q: %w", root, err)
	}
	if p.Abs == absRoot || strings.HasPrefix(p.Abs, absRoot+string(filepath.Separator)) {
		return nil
	}
	return errors.Errorf("file %q is not inside %q: %w", p.Abs, absRoot, ErrPathEscape)
}

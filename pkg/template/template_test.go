package template

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

func writeTemplate(t *testing.T, dir, name string, pairs [][2]string) pathspec.ResolvedPath {
	t.Helper()
	data, err := json.Marshal(pairs)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	p, err := pathspec.Resolve(context.Background(), path, "", nil)
	require.NoError(t, err)
	return p
}

func writeSource(t *testing.T, dir, content string) pathspec.ResolvedPath {
	t.Helper()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	p, err := pathspec.Resolve(context.Background(), path, "", nil)
	require.NoError(t, err)
	return p
}

func TestLoadPairs_OrderAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTemplate(t, dir, "a.json", [][2]string{{"A", "1"}})
	b := writeTemplate(t, dir, "b.json", [][2]string{{"B", "2"}, {"A", "override"}})

	pairs, err := LoadPairs([]pathspec.ResolvedPath{a, b})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, Pair{"A", "1"}, pairs[0])
	assert.Equal(t, Pair{"B", "2"}, pairs[1])
	assert.Equal(t, Pair{"A", "override"}, pairs[2])
}

func TestLoadPairs_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "pairs"}`), 0o644))
	p, err := pathspec.Resolve(context.Background(), path, "", nil)
	require.NoError(t, err)

	_, err = LoadPairs([]pathspec.ResolvedPath{p})
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pairs   []Pair
		want    string
	}{
		{
			name:    "multi_key_single_line",
			content: "A and B\n",
			pairs:   []Pair{{"A", "1"}, {"B", "2"}},
			want:    "1 and 2\n",
		},
		{
			name:    "later_pair_rewrites_earlier_output",
			content: "A\n",
			pairs:   []Pair{{"A", "B"}, {"B", "C"}},
			want:    "C\n",
		},
		{
			name:    "no_trailing_newline_preserved",
			content: "KEY at end",
			pairs:   []Pair{{"KEY", "value"}},
			want:    "value at end",
		},
		{
			name:    "untouched_lines_identical",
			content: "one\ntwo\nthree\n",
			pairs:   []Pair{{"absent", "x"}},
			want:    "one\ntwo\nthree\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeSource(t, t.TempDir(), tt.content)

			dst, err := Apply(context.Background(), src, tt.pairs)
			require.NoError(t, err)
			assert.Equal(t, src.Abs+"__valued", dst.Abs)

			got, err := os.ReadFile(dst.Abs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))

			// input must be untouched
			orig, err := os.ReadFile(src.Abs)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(orig))
		})
	}
}

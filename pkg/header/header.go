// Package header prepends a provenance "DO NOT EDIT" banner to deployed
// files, using a comment syntax selected by the destination extension.
package header

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/delphi-ops/deploykit/pkg/pathspec"
)

const bannerWidth = 55

// from the command line, run: figlet "DO NOT EDIT"
var bannerLines = []string{
	` ____   ___    _   _  ___ _____   _____ ____ ___ _____ `,
	`|  _ \ / _ \  | \ | |/ _ \_   _| | ____|  _ \_ _|_   _|`,
	`| | | | | | | |  \| | | | || |   |  _| | | | | |  | |  `,
	`| |_| | |_| | | |\  | |_| || |   | |___| |_| | |  | |  `,
	`|____/ \___/  |_| \_|\___/ |_|   |_____|____/___| |_|  `,
}

// Injector writes provenance headers. The zero value is not usable; call
// New. Now is injectable so tests get a stable timestamp.
type Injector struct {
	Now func() time.Time
}

func New() *Injector {
	return &Injector{Now: time.Now}
}

// wrapper holds the comment syntax for one family of file extensions.
type wrapper struct {
	preBlock  string
	postBlock string
	preLine   string
	postLine  string
}

const trailingBlanks = "\n\n\n"

// wrapperFor picks the comment syntax for a destination extension, or
// ok=false when the extension has no known comment syntax.
func wrapperFor(ext string) (wrapper, bool) {
	switch strings.ToLower(ext) {
	case "html", "xml":
		return wrapper{preBlock: "<!--\n", postBlock: "-->\n" + trailingBlanks}, true
	case "js", "min.js", "css", "c", "cpp", "h", "hpp", "java":
		return wrapper{preBlock: "/*\n", postBlock: "*/\n" + trailingBlanks}, true
	case "py", "r", "coffee", "htaccess":
		return wrapper{preLine: "# ", postLine: " #", postBlock: trailingBlanks}, true
	case "php":
		// no whitespace may leak outside the php tags
		return wrapper{preBlock: "<?php /*\n", postBlock: "*/\n" + trailingBlanks + "?>"}, true
	default:
		return wrapper{}, false
	}
}

// center pads a line to the shared banner width. Every generated header
// line passes through here so the layout stays uniform.
func center(line string) string {
	pad := bannerWidth - len(line)
	if pad <= 0 {
		return line
	}
	left := pad / 2
	return strings.Repeat(" ", left) + line + strings.Repeat(" ", pad-left)
}

// Inject writes a copy of src carrying the banner and returns its path.
// When dstExt has no known comment syntax the original file is returned
// unchanged and the skip is reported, which is not an error.
func (h *Injector) Inject(ctx context.Context, repoLink, commit string, src pathspec.ResolvedPath, dstExt string) (pathspec.ResolvedPath, error) {
	logger := zerolog.Ctx(ctx)

	w, ok := wrapperFor(dstExt)
	if !ok {
		logger.Warn().Str("ext", dstExt).Str("file", src.Abs).Msg("skipped header for unrecognized file extension")
		return src, nil
	}

	now := h.Now().Truncate(time.Second)
	meta := []string{
		"",
		"Automatically generated from sources at:",
		repoLink,
		"",
		fmt.Sprintf("Commit hash: %s", commit),
		fmt.Sprintf("Deployed at: %s (%d)", now.Format("2006-01-02 15:04:05"), now.Unix()),
	}

	dst, err := pathspec.Resolve(ctx, src.Abs+"__header", "", nil)
	if err != nil {
		return pathspec.ResolvedPath{}, err
	}
	logger.Debug().Str("src", src.Abs).Str("dst", dst.Abs).Msg("adding header")

	out, err := os.Create(dst.Abs)
	if err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("creating %q: %w", dst.Abs, err)
	}
	defer out.Close()

	buf := bufio.NewWriter(out)
	buf.WriteString(w.preBlock)
	lines := append(append([]string{}, bannerLines...), centered(meta)...)
	for _, line := range lines {
		buf.WriteString(w.preLine + line + w.postLine + "\n")
	}
	buf.WriteString(w.postBlock)

	in, err := os.Open(src.Abs)
	if err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("opening %q: %w", src.Abs, err)
	}
	defer in.Close()
	if _, err := io.Copy(buf, in); err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("copying %q: %w", src.Abs, err)
	}
	if err := buf.Flush(); err != nil {
		return pathspec.ResolvedPath{}, errors.Errorf("flushing %q: %w", dst.Abs, err)
	}
	return dst, nil
}

func centered(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = center(line)
	}
	return out
}

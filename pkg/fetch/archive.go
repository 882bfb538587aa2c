package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// extract unpacks a tar, tar.gz/tgz or zip archive into dir. Entry paths
// are containment-checked against dir before anything is written.
func extract(path, dir string) error {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(path, dir)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(path, dir, false)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTar(path, dir, true)
	default:
		return errors.Errorf("unsupported archive format %q", filepath.Ext(path))
	}
}

// safeTarget joins name under dir and rejects entries that would land
// outside of it.
func safeTarget(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if target != dir && !strings.HasPrefix(target, dir+string(filepath.Separator)) {
		return "", errors.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

func extractTar(path, dir string, gzipped bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Errorf("reading archive: %w", err)
		}

		target, err := safeTarget(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Errorf("creating directory %q: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Errorf("creating directory for %q: %w", target, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return errors.Errorf("creating symlink %q: %w", target, err)
			}
		}
	}
}

func extractZip(path, dir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := safeTarget(dir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Errorf("creating directory %q: %w", target, err)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return errors.Errorf("opening entry %q: %w", entry.Name, err)
		}
		err = writeEntry(target, rc, entry.Mode()&0o777)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Errorf("creating directory for %q: %w", target, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.Errorf("creating %q: %w", target, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return errors.Errorf("writing %q: %w", target, err)
	}
	return nil
}

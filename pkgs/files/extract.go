package files

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// ArchiveFormat names a supported archive type.
type ArchiveFormat int

const (
	Unknown ArchiveFormat = iota
	Tar
	TarGz
	TarXz
	TarBz2
	Zip
)

// DetectFormat guesses the archive format from a file or URL path.
func DetectFormat(name string) ArchiveFormat {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return TarGz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return TarXz
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return TarBz2
	case strings.HasSuffix(name, ".tar"):
		return Tar
	case strings.HasSuffix(name, ".zip"):
		return Zip
	}
	return Unknown
}

// Extract unpacks archive into dest. With stripRoot, the single
// top-level directory every entry lives under is dropped; an archive
// with more than one top-level entry is then an error.
func Extract(archive string, format ArchiveFormat, dest string, stripRoot bool) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if format == Zip {
		return extractZip(archive, dest, stripRoot)
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case Tar:
		r = f
	case TarGz:
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", archive, err)
		}
		defer zr.Close()
		r = zr
	case TarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", archive, err)
		}
		r = xr
	case TarBz2:
		r = bzip2.NewReader(f)
	default:
		return fmt.Errorf("%s: unsupported archive format", archive)
	}
	return extractTar(r, dest, stripRoot)
}

// stripper maps archive entry names to paths relative to dest.
type stripper struct {
	enabled bool
	root    string
}

// rel returns the destination path of name, or "" when the entry is
// the stripped root itself.
func (s *stripper) rel(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
	if name == "" {
		return "", nil
	}
	if s.enabled {
		first, rest, _ := strings.Cut(name, "/")
		switch {
		case s.root == "":
			s.root = first
		case s.root != first:
			return "", fmt.Errorf("cannot strip root: archive has more than one top-level entry (%s, %s)", s.root, first)
		}
		name = rest
	}
	if name == "" {
		return "", nil
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("entry %q escapes the destination", name)
	}
	return filepath.FromSlash(name), nil
}

func extractTar(r io.Reader, dest string, stripRoot bool) error {
	tr := tar.NewReader(r)
	s := &stripper{enabled: stripRoot}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		// names are sanitized below
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}
		rel, err := s.rel(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if err := checkParents(dest, rel); err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if !localLink(rel, hdr.Linkname) {
				return fmt.Errorf("symlink %s -> %s escapes the destination", rel, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			linkRel, err := s.rel(hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Link(filepath.Join(dest, linkRel), target); err != nil {
				return err
			}
		}
	}
}

func extractZip(archive, dest string, stripRoot bool) error {
	zr, err := zip.OpenReader(archive)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return err
	}
	defer zr.Close()
	s := &stripper{enabled: stripRoot}
	for _, f := range zr.File {
		rel, err := s.rel(f.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if err := checkParents(dest, rel); err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		perm := f.Mode().Perm()
		if perm == 0 {
			perm = 0o644
		}
		err = writeEntry(target, rc, perm)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// localLink reports whether a symlink at rel pointing to linkname
// resolves inside the destination.
func localLink(rel, linkname string) bool {
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return false
	}
	return filepath.IsLocal(filepath.Join(filepath.Dir(rel), filepath.FromSlash(linkname)))
}

// checkParents refuses entries whose parent directories in dest include
// a symlink, so an earlier entry cannot redirect later writes.
func checkParents(dest, rel string) error {
	dir := dest
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	for _, p := range parts {
		if p == "." || p == "" {
			continue
		}
		dir = filepath.Join(dir, p)
		fi, err := os.Lstat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("entry %q is written through symlink %s", filepath.ToSlash(rel), filepath.ToSlash(p))
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

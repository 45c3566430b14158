package files

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// Copy copies the files under src whose path relative to src matches
// pattern into dst; "COPYING*" selects top-level files only, "**/COPYING*"
// any depth. With
// keepPath the relative directory structure is preserved, otherwise
// files land directly in dst. It returns the copied destination paths.
// A missing src copies nothing.
func Copy(pattern, src, dst string, keepPath bool) ([]string, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, nil
	}
	var copied []string
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil || !ok {
			return err
		}
		target := filepath.Join(dst, filepath.Base(rel))
		if keepPath {
			target = filepath.Join(dst, rel)
		}
		if err := copyFile(p, target, d); err != nil {
			return err
		}
		copied = append(copied, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("copy %s from %s: %w", pattern, src, err)
	}
	return copied, nil
}

func copyFile(src, dst string, d fs.DirEntry) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if d.Type()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		os.Remove(dst)
		return os.Symlink(link, dst)
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Rmdir removes a directory tree. A missing directory is not an error.
func Rmdir(dir string) error {
	return os.RemoveAll(dir)
}

// Rm removes the files under root whose base name matches pattern,
// descending into subdirectories when recursive is set.
func Rm(pattern, root string, recursive bool) error {
	if !recursive {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ok, err := doublestar.Match(pattern, e.Name())
			if err != nil {
				return fmt.Errorf("rm %s: %w", pattern, err)
			}
			if ok {
				if err := os.Remove(filepath.Join(root, e.Name())); err != nil {
					return err
				}
			}
		}
		return nil
	}
	var matches []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := doublestar.Match(pattern, d.Name())
		if ok {
			matches = append(matches, p)
		}
		return err
	})
	if err != nil {
		return err
	}
	for _, p := range matches {
		if err := os.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// CollectLibs returns the library names found in the libdirs of folder,
// e.g. "boost_system" for libboost_system.so.1.81.0, sorted.
func CollectLibs(folder string, libDirs []string) ([]string, error) {
	seen := map[string]bool{}
	for _, dir := range libDirs {
		entries, err := os.ReadDir(filepath.Join(folder, dir))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if name, ok := libName(e.Name()); ok {
				seen[name] = true
			}
		}
	}
	libs := make([]string, 0, len(seen))
	for name := range seen {
		libs = append(libs, name)
	}
	sort.Strings(libs)
	return libs, nil
}

func libName(file string) (string, bool) {
	base := file
	if i := strings.Index(base, ".so"); i > 0 && (len(base) == i+3 || base[i+3] == '.') {
		base = base[:i]
		return strings.TrimPrefix(base, "lib"), strings.HasPrefix(file, "lib")
	}
	for _, ext := range []string{".dll.a", ".a", ".dylib", ".lib"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			if ext == ".lib" {
				return base, base != ""
			}
			if !strings.HasPrefix(base, "lib") {
				return "", false
			}
			base = strings.TrimPrefix(base, "lib")
			// libfoo.1.2.dylib
			if ext == ".dylib" {
				base, _, _ = strings.Cut(base, ".")
			}
			return base, base != ""
		}
	}
	return "", false
}

// WriteFS writes the files of fsys under root into dest, replacing
// existing ones. Recipes use it to lay out embedded test projects.
func WriteFS(fsys fs.FS, root, dest string) error {
	fsys, err := fs.Sub(fsys, root)
	if err != nil {
		return err
	}
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, b, 0o644)
	})
}

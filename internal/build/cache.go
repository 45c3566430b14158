package build

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Workspace directory layout:
//
//	home/
//	  <name>/
//	    .cache.json               # maps "version-pkgid" to a buildEntry
//	    .cache.lock
//	    <version>/<pkgid>/
//	      .lock                   # held while the package is built
//	      src/ build/ gen/ p/
//	      test/                   # consumer project of Builder.Test
const cacheFile = ".cache.json"

// buildEntry contains metadata about a single successful build.
type buildEntry struct {
	Settings  string              `json:"settings"`
	Options   string              `json:"options"`
	Info      *recipe.PackageInfo `json:"info"`
	BuildTime time.Time           `json:"build_time"`
}

// buildCache maps "version-pkgid" keys to their build entries.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

func cacheKey(version, pkgID string) string {
	return version + "-" + pkgID
}

func (c *buildCache) get(version, pkgID string) (*buildEntry, bool) {
	entry, ok := c.Cache[cacheKey(version, pkgID)]
	return entry, ok
}

func (c *buildCache) set(version, pkgID string, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[cacheKey(version, pkgID)] = entry
}

// cacheDir returns the package-level directory for cache storage: home/<name>.
func (b *Builder) cacheDir(name string) string {
	return filepath.Join(b.home, name)
}

// loadCache reads the cache file of a package. A missing file is an
// empty cache.
func (b *Builder) loadCache(name string) (*buildCache, error) {
	data, err := os.ReadFile(filepath.Join(b.cacheDir(name), cacheFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &buildCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// saveCache writes the cache file of a package atomically.
func (b *Builder) saveCache(name string, cache *buildCache) error {
	dir := b.cacheDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}

// lookupCache returns the entry of a built package, or nil.
func (b *Builder) lookupCache(ref recipe.Ref, pkgID string) (*buildEntry, error) {
	cache, err := b.loadCache(ref.Name)
	if err != nil {
		return nil, err
	}
	entry, _ := cache.get(ref.Version, pkgID)
	return entry, nil
}

// recordBuild adds an entry under the package's cache lock, so builds
// of other versions in other processes are not lost.
func (b *Builder) recordBuild(ref recipe.Ref, pkgID string, entry *buildEntry) error {
	dir := b.cacheDir(ref.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(dir, ".cache.lock")).Lock()
	if err != nil {
		return err
	}
	defer unlock()

	cache, err := b.loadCache(ref.Name)
	if err != nil {
		return err
	}
	cache.set(ref.Version, pkgID, entry)
	return b.saveCache(ref.Name, cache)
}

package build

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goplus/llarhub/recipe"
)

func TestSaveAndLoadCache(t *testing.T) {
	b := NewBuilder(Config{Home: t.TempDir()})

	now := time.Now().Truncate(time.Second)
	info := recipe.NewPackageInfo()
	info.CppInfo.Libs = []string{"boost_system"}
	cache := &buildCache{}
	cache.set("1.81.0", "abc", &buildEntry{Options: "shared=True", Info: info, BuildTime: now})

	if err := b.saveCache("boost", cache); err != nil {
		t.Fatalf("saveCache failed: %v", err)
	}
	loaded, err := b.loadCache("boost")
	if err != nil {
		t.Fatalf("loadCache failed: %v", err)
	}
	entry, ok := loaded.get("1.81.0", "abc")
	if !ok {
		t.Fatalf("entry missing from %+v", loaded.Cache)
	}
	if entry.Options != "shared=True" || entry.Info.CppInfo.Libs[0] != "boost_system" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.BuildTime.Truncate(time.Second).Equal(now) {
		t.Errorf("BuildTime mismatch: got %v, want %v", entry.BuildTime, now)
	}
}

func TestLoadCache_NotExist(t *testing.T) {
	b := NewBuilder(Config{Home: t.TempDir()})
	cache, err := b.loadCache("zlib")
	if err != nil {
		t.Fatalf("loadCache of a new package: %v", err)
	}
	if len(cache.Cache) != 0 {
		t.Errorf("new package has entries: %+v", cache.Cache)
	}
}

func TestLoadCache_InvalidJSON(t *testing.T) {
	b := NewBuilder(Config{Home: t.TempDir()})
	dir := b.cacheDir("zlib")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, cacheFile), []byte("invalid json"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := b.loadCache("zlib"); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestRecordBuildKeepsOtherEntries(t *testing.T) {
	b := NewBuilder(Config{Home: t.TempDir()})
	gcc11, gcc12 := recipe.MustParseRef("gcc/11.3.0"), recipe.MustParseRef("gcc/12.2.0")
	if err := b.recordBuild(gcc11, "id1", &buildEntry{Settings: "os=Linux"}); err != nil {
		t.Fatal(err)
	}
	if err := b.recordBuild(gcc12, "id2", &buildEntry{Settings: "os=Linux"}); err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		ref recipe.Ref
		id  string
	}{{gcc11, "id1"}, {gcc12, "id2"}} {
		entry, err := b.lookupCache(tt.ref, tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if entry == nil {
			t.Errorf("%s %s not cached", tt.ref, tt.id)
		}
	}
	if entry, _ := b.lookupCache(gcc12, "id1"); entry != nil {
		t.Errorf("lookupCache(gcc/12.2.0, id1) = %+v, want nil", entry)
	}
}

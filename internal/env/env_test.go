package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "hub")
	t.Setenv(HomeVar, home)

	dir, err := WorkDir()
	if err != nil {
		t.Fatalf("WorkDir() returned error: %v", err)
	}
	if dir != home {
		t.Errorf("WorkDir() = %q, want %q", dir, home)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("WorkDir() created a file instead of a directory")
	}
	if mode := info.Mode().Perm(); mode != 0o700 {
		t.Errorf("Directory has permissions %v, want %v", mode, os.FileMode(0o700))
	}
}

func TestWorkDirDefault(t *testing.T) {
	t.Setenv(HomeVar, "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		t.Skipf("os.UserCacheDir() returned error: %v", err)
	}
	dir, err := WorkDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(userCacheDir, ".llar", "hub"); dir != want {
		t.Errorf("WorkDir() = %q, want %q", dir, want)
	}
}

func TestSubdirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeVar, home)
	for name, fn := range map[string]func() (string, error){
		"packages":  PackagesDir,
		"profiles":  ProfilesDir,
		"downloads": DownloadsDir,
	} {
		dir, err := fn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if want := filepath.Join(home, name); dir != want {
			t.Errorf("%s dir = %q, want %q", name, dir, want)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s dir not created: %v", name, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	f := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(f, []byte("LLARHUB_TEST_A=from-file\nLLARHUB_TEST_B=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLARHUB_TEST_A", "preset")
	t.Setenv("LLARHUB_TEST_B", "")
	os.Unsetenv("LLARHUB_TEST_B")

	if err := LoadDotEnv(f, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("LLARHUB_TEST_A"); got != "preset" {
		t.Errorf("LLARHUB_TEST_A = %q, .env must not override", got)
	}
	if got := os.Getenv("LLARHUB_TEST_B"); got != "from-file" {
		t.Errorf("LLARHUB_TEST_B = %q, want from-file", got)
	}
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCmdString(t *testing.T) {
	c := &Cmd{Name: "configure", Args: []string{"--prefix=/opt", "--with-pkgversion=llarhub GCC 12.2.0", ""}}
	want := `configure --prefix=/opt "--with-pkgversion=llarhub GCC 12.2.0" ""`
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCmdGetenv(t *testing.T) {
	c := &Cmd{Env: []string{"A=1", "CFLAGS=-O3 -fPIC"}}
	if got := c.Getenv("CFLAGS"); got != "-O3 -fPIC" {
		t.Errorf("Getenv(CFLAGS) = %q", got)
	}
	if got := c.Getenv("B"); got != "" {
		t.Errorf("Getenv(B) = %q, want empty", got)
	}
}

func TestRecorder(t *testing.T) {
	boom := errors.New("boom")
	r := &Recorder{Hook: func(c *Cmd) error {
		if c.Name == "fail" {
			return boom
		}
		return nil
	}}
	ctx := context.Background()
	if err := r.Run(ctx, &Cmd{Name: "make", Args: []string{"-j4"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(ctx, &Cmd{Name: "fail"}); !errors.Is(err, boom) {
		t.Fatalf("Run(fail) = %v, want %v", err, boom)
	}
	if diff := cmp.Diff([]string{"make -j4", "fail"}, r.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeEnv(t *testing.T) {
	got := MergeEnv([]string{"PATH=/bin", "HOME=/root", "broken"}, []string{"PATH=/opt/bin:/bin", "CC=gcc"})
	want := []string{"CC=gcc", "HOME=/root", "PATH=/opt/bin:/bin"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestExecRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	var out bytes.Buffer
	e := &Exec{Stdout: &out}
	err := e.Run(context.Background(), &Cmd{
		Name: "sh",
		Args: []string{"-c", "echo $GREETING"},
		Env:  []string{"GREETING=hello"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}

	if err := e.Run(context.Background(), &Cmd{Name: "sh", Args: []string{"-c", "exit 3"}}); err == nil {
		t.Error("Run(exit 3) error = nil, want error")
	}
}

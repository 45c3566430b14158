// Package runner executes the external tools recipes drive (configure,
// make, cmake, compilers) and lets tests record them instead.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Cmd is one command invocation.
type Cmd struct {
	Dir  string
	Env  []string // complete environment; nil inherits the process environment
	Name string
	Args []string
}

// String renders the command line the way a shell user would type it.
func (c *Cmd) String() string {
	parts := make([]string, 0, 1+len(c.Args))
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Getenv looks key up in the command environment.
func (c *Cmd) Getenv(key string) string {
	for _, kv := range c.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Exec runs commands as child processes.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    *zap.Logger
}

func (e *Exec) Run(ctx context.Context, c *Cmd) error {
	if e.Log != nil {
		e.Log.Debug("run", zap.String("cmd", c.String()), zap.String("dir", c.Dir))
	}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = orDefault(e.Stdout, os.Stdout)
	cmd.Stderr = orDefault(e.Stderr, os.Stderr)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", c.String(), err)
	}
	return nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// Recorder records commands without running them. Hook, when set, is
// called for each command and its error is returned.
type Recorder struct {
	Hook func(*Cmd) error

	mu   sync.Mutex
	cmds []*Cmd
}

func (r *Recorder) Run(ctx context.Context, c *Cmd) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()
	if r.Hook != nil {
		return r.Hook(c)
	}
	return nil
}

// Cmds returns the recorded commands in call order.
func (r *Recorder) Cmds() []*Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Cmd, len(r.cmds))
	copy(out, r.cmds)
	return out
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	cmds := r.Cmds()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// MergeEnv returns base with every entry of override replacing or
// extending it, sorted by key.
func MergeEnv(base []string, override []string) []string {
	envMap := make(map[string]string, len(base)+len(override))
	for _, list := range [][]string{base, override} {
		for _, kv := range list {
			if k, v, ok := strings.Cut(kv, "="); ok {
				envMap[k] = v
			}
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// Package vcs fetches sources kept in version control.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// VCS checks out recipe sources.
type VCS interface {
	// Sync makes dir a checkout of ref (branch, tag or commit) of
	// remote, fetching only that revision. dir is created when missing;
	// an existing checkout is moved to ref, discarding local changes.
	Sync(ctx context.Context, remote, ref, dir string) error

	// Head returns the commit checked out in dir.
	Head(ctx context.Context, dir string) (string, error)
}

type gitVCS struct {
	git string
	// env is appended to the process environment of every git command.
	env []string
}

// GitOption configures the git VCS.
type GitOption func(*gitVCS)

// WithGitPath sets the git executable.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// NewGitVCS returns a VCS backed by the git command. Git never prompts
// for credentials: a source that needs them fails instead of hanging a
// build.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{
		git: "git",
		env: []string{"GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true"},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) Sync(ctx context.Context, remote, ref, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if _, err := g.cmd(ctx, dir, "init", "--quiet"); err != nil {
			return fmt.Errorf("init %s: %w", dir, err)
		}
	}
	if _, err := g.cmd(ctx, dir, "fetch", "--quiet", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("fetch %s %s: %w", remote, ref, err)
	}
	if _, err := g.cmd(ctx, dir, "checkout", "--quiet", "--force", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitmodules")); err == nil {
		if _, err := g.cmd(ctx, dir, "submodule", "update", "--quiet", "--init", "--recursive", "--depth", "1"); err != nil {
			return fmt.Errorf("submodules of %s %s: %w", remote, ref, err)
		}
	}
	return nil
}

func (g *gitVCS) Head(ctx context.Context, dir string) (string, error) {
	out, err := g.cmd(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// cmd runs git in dir and returns its standard output. A failure is
// reported with git's own message when it printed one.
func (g *gitVCS) cmd(ctx context.Context, dir string, args ...string) (string, error) {
	c := exec.CommandContext(ctx, g.git, args...)
	c.Dir = dir
	c.Env = append(os.Environ(), g.env...)
	var stdout, stderr bytes.Buffer
	c.Stdout, c.Stderr = &stdout, &stderr
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

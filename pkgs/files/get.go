// Package files implements the file operations recipes perform: fetching
// and unpacking sources, copying and removing files, patching files in
// place and collecting library names.
package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goplus/llarhub/internal/vcs"
	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
	"go.uber.org/zap"
)

// Getter retrieves recipe sources.
type Getter struct {
	// Client downloads archives. The zero value uses a transport with
	// compression disabled, so .tar.gz files are stored as served.
	Client *http.Client
	// VCS syncs git sources.
	VCS vcs.VCS
	// CacheDir, when set, keeps verified archives by checksum so a
	// rebuild does not download them again.
	CacheDir string
}

type getterKey struct{}

// WithGetter returns a context whose Get calls use g.
func WithGetter(ctx context.Context, g *Getter) context.Context {
	return context.WithValue(ctx, getterKey{}, g)
}

func getterFrom(ctx context.Context) *Getter {
	if g, ok := ctx.Value(getterKey{}).(*Getter); ok && g != nil {
		return g
	}
	return &Getter{}
}

// Get retrieves src into dest using the Getter carried by ctx.
func Get(ctx context.Context, c *recipe.Context, src recipe.Source, dest string) error {
	return getterFrom(ctx).Get(ctx, c.Logger(), src, dest)
}

// Get retrieves src into dest: a git checkout, or the first archive
// mirror that downloads and verifies, unpacked.
func (g *Getter) Get(ctx context.Context, log *zap.Logger, src recipe.Source, dest string) error {
	if src.Git != "" {
		v := g.VCS
		if v == nil {
			v = vcs.NewGitVCS()
		}
		if err := v.Sync(ctx, src.Git, src.Ref, dest); err != nil {
			return err
		}
		if head, err := v.Head(ctx, dest); err == nil {
			log.Info("source checked out", zap.String("git", src.Git), zap.String("ref", src.Ref), zap.String("commit", head))
		}
		return nil
	}
	if len(src.URLs) == 0 {
		return errors.New("get: source has no url")
	}
	if src.SHA256 == "" {
		log.Warn("no sha256 for source, integrity is not verified", zap.Strings("url", src.URLs))
	}

	var errs []error
	for _, u := range src.URLs {
		archive, cleanup, err := g.fetch(ctx, log, u, src.SHA256)
		if err != nil {
			log.Warn("mirror failed", zap.String("url", u), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		err = Extract(archive, DetectFormat(urlPath(u)), dest, src.ShouldStripRoot())
		cleanup()
		if err != nil {
			return fmt.Errorf("extract %s: %w", u, err)
		}
		return nil
	}
	return fmt.Errorf("get: all mirrors failed: %w", errors.Join(errs...))
}

func urlPath(u string) string {
	if parsed, err := url.Parse(u); err == nil {
		return parsed.Path
	}
	return u
}

// fetch returns a local verified copy of the archive at u.
func (g *Getter) fetch(ctx context.Context, log *zap.Logger, u, sum string) (string, func(), error) {
	noop := func() {}
	if g.CacheDir != "" && sum != "" {
		cached := filepath.Join(g.CacheDir, strings.ToLower(sum)+"-"+path.Base(urlPath(u)))
		if got, err := hashFile(cached); err == nil && strings.EqualFold(got, sum) {
			log.Debug("using cached archive", zap.String("path", cached))
			return cached, noop, nil
		}
		if err := os.MkdirAll(g.CacheDir, 0o755); err != nil {
			return "", nil, err
		}
		if err := g.download(ctx, log, u, sum, cached); err != nil {
			return "", nil, err
		}
		return cached, noop, nil
	}

	tmp, err := os.CreateTemp("", "llarhub-src-*-"+path.Base(urlPath(u)))
	if err != nil {
		return "", nil, err
	}
	tmp.Close()
	cleanup := func() { os.Remove(tmp.Name()) }
	if err := g.download(ctx, log, u, sum, tmp.Name()); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

func (g *Getter) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return &http.Client{Transport: t}
}

// download writes u to dest atomically, checking sum when given.
func (g *Getter) download(ctx context.Context, log *zap.Logger, u, sum, dest string) error {
	log.Info("downloading", zap.String("url", u))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := g.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return fmt.Errorf("%s: unexpected HTTP status: got %d (%v), want %d", u, got, resp.Status, want)
	}

	f, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		return fmt.Errorf("%s: %w", u, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); sum != "" && !strings.EqualFold(got, sum) {
		return fmt.Errorf("%s: sha256 mismatch: got %s, want %s", u, got, sum)
	}
	return f.CloseAtomicallyReplace()
}

func hashFile(fn string) (string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

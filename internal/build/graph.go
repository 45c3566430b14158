package build

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/goplus/llarhub/recipe"
	"go.uber.org/zap"
)

// prebuiltID is the package ID of requirements taken from the profile's
// [packages] table.
const prebuiltID = "prebuilt"

// node is one package of the dependency graph.
type node struct {
	pkg    *Package
	recipe recipe.Recipe
	ctx    *recipe.Context
	// build is set for packages of the build context: tool requirements
	// and their own requirements.
	build    bool
	requires []*node
	tools    []*node
	level    int
}

// dependency returns n as a consumer sees it.
func (n *node) dependency(tool bool) *recipe.Dependency {
	return &recipe.Dependency{
		Ref:           n.pkg.Ref,
		PackageFolder: n.pkg.Folder,
		Info:          n.pkg.Info,
		Options:       n.pkg.Options,
		Build:         tool,
	}
}

// hostClosure returns the host requirements of n, transitive ones
// included.
func (n *node) hostClosure() []*node {
	var out []*node
	seen := map[*node]bool{}
	var walk func(*node)
	walk = func(n *node) {
		for _, d := range n.requires {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			walk(d)
		}
	}
	walk(n)
	return out
}

// graph resolves the packages of one Create, Test or Info call.
type graph struct {
	b     *Builder
	nodes map[string]*node
	stack []string
	// order lists nodes with requirements first.
	order []*node
}

func newGraph(b *Builder) *graph {
	return &graph{b: b, nodes: map[string]*node{}}
}

func nodeKey(name string, build bool) string {
	if build {
		return "build:" + name
	}
	return name
}

// resolve loads ref and, recursively, its requirements. Each context
// holds one version per package name.
func (g *graph) resolve(ref recipe.Ref, build bool, options map[string]string) (*node, error) {
	key := nodeKey(ref.Name, build)
	if i := slices.Index(g.stack, key); i >= 0 {
		cycle := append(slices.Clone(g.stack[i:]), key)
		return nil, fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	if n, ok := g.nodes[key]; ok {
		if n.pkg.Ref != ref {
			return nil, fmt.Errorf("conflicting versions of %s: %s and %s", ref.Name, n.pkg.Ref.Version, ref.Version)
		}
		return n, nil
	}

	g.stack = append(g.stack, key)
	n, err := g.load(ref, build, options)
	g.stack = g.stack[:len(g.stack)-1]
	if err != nil {
		return nil, err
	}
	g.nodes[key] = n
	g.order = append(g.order, n)
	return n, nil
}

func (g *graph) load(ref recipe.Ref, build bool, options map[string]string) (*node, error) {
	b := g.b
	hostSettings := b.prof.Settings
	buildSettings := b.prof.BuildSettings()
	if build {
		hostSettings = buildSettings
	}

	r, err := b.lookup(ref.Name)
	if err != nil {
		prefix, ok := b.prof.Packages[ref.Name]
		if !ok {
			return nil, fmt.Errorf("%s: %w, and the profile has no [packages] entry for it", ref, err)
		}
		b.log.Debug("using prebuilt package", zap.Stringer("ref", ref), zap.String("prefix", prefix))
		return &node{
			pkg: &Package{
				Ref:      ref,
				ID:       prebuiltID,
				Folder:   prefix,
				Settings: hostSettings,
				Options:  recipe.NewOptions(nil),
				Info:     recipe.NewPackageInfo(),
				Prebuilt: true,
			},
			build: build,
		}, nil
	}

	meta := r.Metadata()
	opts := recipe.NewOptions(meta.Options)
	// "*:" keys only apply to packages that declare the option; a
	// package specific key for an undeclared option is an error.
	own := b.prof.PackageOptions(ref.Name)
	for k, v := range b.prof.OptionsFor(ref.Name) {
		if _, ok := own[k]; !ok && !opts.Has(k) {
			continue
		}
		if err := opts.Set(k, v); err != nil {
			return nil, fmt.Errorf("%s: profile: %w", ref, err)
		}
	}
	for k, v := range options {
		if err := opts.Set(k, v); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
	}
	settings := hostSettings
	if len(meta.Settings) > 0 {
		settings = settings.Only(meta.Settings...)
	}
	c := &recipe.Context{
		Ref:           ref,
		Settings:      settings,
		SettingsBuild: buildSettings,
		Options:       opts,
		Deps:          map[string]*recipe.Dependency{},
		BuildDeps:     map[string]*recipe.Dependency{},
		Env:           b.prof.Env(),
		DryRun:        b.dryRun,
		Jobs:          b.prof.Jobs,
		Log:           b.log,
		Runner:        b.runner,
		Stdout:        b.stdout,
		Stderr:        b.stderr,
	}
	if dp, ok := r.(recipe.DataProvider); ok {
		c.Data = dp.Data()
	}
	if h, ok := r.(recipe.Configurer); ok {
		if err := h.Configure(c); err != nil {
			return nil, fmt.Errorf("%s: configure: %w", ref, err)
		}
	}

	reqs := &recipe.Requirements{}
	if h, ok := r.(recipe.Requirer); ok {
		h.Requirements(c, reqs)
	}
	if h, ok := r.(recipe.BuildRequirer); ok {
		h.BuildRequirements(c, reqs)
	}
	n := &node{recipe: r, ctx: c, build: build}
	for _, req := range reqs.List() {
		dep, err := g.resolve(req.Ref, build || req.Build, nil)
		if err != nil {
			return nil, err
		}
		if req.Build {
			n.tools = append(n.tools, dep)
		} else {
			n.requires = append(n.requires, dep)
		}
		n.level = max(n.level, dep.level+1)
	}

	if h, ok := r.(recipe.Validator); ok {
		if err := h.Validate(c); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
	}

	info := &recipe.IDInfo{Settings: c.Settings, Options: opts.Clone()}
	for _, d := range n.requires {
		info.Requires = append(info.Requires, d.pkg.Ref)
	}
	if h, ok := r.(recipe.PackageIDer); ok {
		h.PackageID(info)
	}
	id := packageID(info)
	root := filepath.Join(b.home, ref.Name, ref.Version, id)
	c.Folders = recipe.Folders{
		Source:     filepath.Join(root, "src"),
		Build:      filepath.Join(root, "build"),
		Generators: filepath.Join(root, "gen"),
		Package:    filepath.Join(root, "p"),
	}
	n.pkg = &Package{
		Ref:      ref,
		ID:       id,
		Folder:   c.Folders.Package,
		Settings: c.Settings,
		Options:  opts,
	}
	return n, nil
}

// packageID hashes what identifies a binary: the settings and options
// left after the PackageID hook and the direct requirements.
func packageID(info *recipe.IDInfo) string {
	refs := make([]string, len(info.Requires))
	for i, r := range info.Requires {
		refs[i] = r.String()
	}
	sort.Strings(refs)

	h := sha1.New()
	fmt.Fprintf(h, "[settings]\n%s\n", info.Settings)
	if info.Options != nil {
		fmt.Fprintf(h, "[options]\n%s\n", info.Options)
	}
	fmt.Fprintf(h, "[requires]\n%s\n", strings.Join(refs, "\n"))
	return hex.EncodeToString(h.Sum(nil))
}

// levels groups nodes by depth; every node comes after its
// requirements.
func (g *graph) levels() [][]*node {
	var out [][]*node
	for _, n := range g.order {
		for len(out) <= n.level {
			out = append(out, nil)
		}
		out[n.level] = append(out[n.level], n)
	}
	return out
}

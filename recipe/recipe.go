// Package recipe defines how a package recipe is described: its
// metadata, settings and options, the hooks the host calls through the
// build lifecycle, and the package info it exposes to consumers.
//
// The host drives a recipe in this order, calling only the hooks the
// recipe implements. While resolving the graph it calls
//
//	Configure, Requirements, BuildRequirements, Validate, PackageID
//
// and, when the package ID is not in the cache, builds it with
//
//	ValidateBuild, Source, Generate, Build, Package, PackageInfo
//
// A cached package skips all of these, ValidateBuild included. A test
// run then calls Test.
package recipe

import "context"

// Package types.
const (
	Library       = "library"
	HeaderLibrary = "header-library"
	Application   = "application"
)

// Metadata describes a recipe.
type Metadata struct {
	Name        string
	Description string
	License     string
	Homepage    string
	URL         string
	Topics      []string
	PackageType string
	// Settings lists the top-level settings the recipe depends on; the
	// others are cleared before the recipe sees them.
	Settings []string
	Options  map[string]OptionDef
}

// Recipe is implemented by every package recipe. The lifecycle hooks
// below are optional.
type Recipe interface {
	Metadata() Metadata
}

// DataProvider is implemented by recipes shipping a data.yml source
// table.
type DataProvider interface {
	Data() *Data
}

// Configurer adjusts settings and options before requirements are
// computed, e.g. removing fPIC for shared builds.
type Configurer interface {
	Configure(c *Context) error
}

// Requirer declares host dependencies.
type Requirer interface {
	Requirements(c *Context, reqs *Requirements)
}

// BuildRequirer declares tool dependencies.
type BuildRequirer interface {
	BuildRequirements(c *Context, reqs *Requirements)
}

// Validator rejects configurations the package cannot support.
type Validator interface {
	Validate(c *Context) error
}

// BuildValidator rejects configurations that cannot be built from
// sources here, even if a binary could be consumed.
type BuildValidator interface {
	ValidateBuild(c *Context) error
}

// PackageIDer narrows what identifies a binary package.
type PackageIDer interface {
	PackageID(info *IDInfo)
}

// Sourcer retrieves sources into c.Folders.Source.
type Sourcer interface {
	Source(ctx context.Context, c *Context) error
}

// Generator writes toolchain and dependency files into
// c.Folders.Generators.
type Generator interface {
	Generate(ctx context.Context, c *Context) error
}

// Builder compiles in c.Folders.Build.
type Builder interface {
	Build(ctx context.Context, c *Context) error
}

// Packager installs artifacts into c.Folders.Package.
type Packager interface {
	Package(ctx context.Context, c *Context) error
}

// PackageInfoer describes the package to consumers.
type PackageInfoer interface {
	PackageInfo(c *Context, info *PackageInfo)
}

// Tester builds and runs a consumer of the freshly created package. c is
// a consumer context whose Deps (or BuildDeps for tool packages) contain
// pkg.
type Tester interface {
	Test(ctx context.Context, c *Context, pkg *Dependency) error
}

// IDInfo is the input of the package ID. PackageID hooks remove what
// does not affect the binary.
type IDInfo struct {
	Settings Settings
	Options  *Options
	Requires []Ref
	cleared  bool
}

// Clear makes every configuration map to the same package ID, as for
// header-only packages.
func (i *IDInfo) Clear() {
	i.cleared = true
	i.Settings = Settings{}
	i.Options = NewOptions(nil)
	i.Requires = nil
}

// Cleared reports whether Clear was called.
func (i *IDInfo) Cleared() bool {
	return i.cleared
}

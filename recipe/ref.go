package recipe

import (
	"fmt"
	"strings"
)

// Ref identifies one version of a package, in the form "name/version".
type Ref struct {
	Name    string
	Version string
}

// ParseRef parses "name/version". Both parts are required.
func ParseRef(s string) (Ref, error) {
	name, version, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || name == "" || version == "" {
		return Ref{}, fmt.Errorf("invalid reference %q: want name/version", s)
	}
	if strings.ContainsAny(version, "/@ ") {
		return Ref{}, fmt.Errorf("invalid reference %q: malformed version", s)
	}
	return Ref{Name: name, Version: version}, nil
}

// MustParseRef is like ParseRef but panics on malformed input.
// It is meant for references written as literals in recipes.
func MustParseRef(s string) Ref {
	ref, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

func (r Ref) String() string {
	return r.Name + "/" + r.Version
}

// Requirement is a dependency declared by a recipe.
type Requirement struct {
	Ref Ref
	// Build marks a tool requirement: its executables and build
	// environment are visible while building, it is not linked.
	Build bool
}

// Requirements collects the dependencies a recipe declares.
type Requirements struct {
	reqs []Requirement
}

// Require declares a regular (host) dependency.
func (r *Requirements) Require(ref string) {
	r.reqs = append(r.reqs, Requirement{Ref: MustParseRef(ref)})
}

// ToolRequire declares a build tool dependency.
func (r *Requirements) ToolRequire(ref string) {
	r.reqs = append(r.reqs, Requirement{Ref: MustParseRef(ref), Build: true})
}

// List returns the requirements in declaration order.
func (r *Requirements) List() []Requirement {
	out := make([]Requirement, len(r.reqs))
	copy(out, r.reqs)
	return out
}

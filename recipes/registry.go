// Package recipes is the registry of compiled-in package recipes. Each
// recipe package registers itself from init; import recipes/all to get
// every one of them.
package recipes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goplus/llarhub/recipe"
)

// RepoURL is where the recipes live and issues against the packages
// they build are reported.
const RepoURL = "https://github.com/goplus/llarhub"

// Factory returns a fresh recipe value.
type Factory func() recipe.Recipe

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a recipe available by name. It panics if the name is
// already taken or f is nil.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		panic("recipes: Register factory is nil for " + name)
	}
	if _, dup := registry[name]; dup {
		panic("recipes: Register called twice for " + name)
	}
	registry[name] = f
}

// Lookup returns a new instance of the named recipe.
func Lookup(name string) (recipe.Recipe, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("recipes: unknown recipe %q", name)
	}
	return f(), nil
}

// Has reports whether a recipe is registered under name.
func Has(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered recipe names sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

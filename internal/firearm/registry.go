package firearm

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is the set of weapon names recognised as muzzle-loading firearms.
// Names match exactly; no case folding or trimming is applied.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry returns a Registry holding names.
//
// Postcondition: Contains(n) is true for every n in names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		r.names[n] = struct{}{}
	}
	return r
}

// Add registers name.
//
// Precondition: name must be non-empty.
// Postcondition: Contains(name) is true; adding an existing name is a no-op.
func (r *Registry) Add(name string) error {
	if name == "" {
		return errors.New("firearm: Registry.Add: name must not be empty")
	}
	r.names[name] = struct{}{}
	return nil
}

// Contains reports whether name is a registered firearm.
func (r *Registry) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.names)
}

// Names returns the registered names in lexicographic order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type registryFile struct {
	Firearms []string `yaml:"firearms"`
}

// LoadRegistryFile reads a YAML file of the form
//
//	firearms:
//	  - Flintlock Pistol
//	  - Musket
//
// and returns the names it lists.
//
// Precondition: path is a readable file.
// Postcondition: returns the non-empty names in file order, or an error if any name is empty.
func LoadRegistryFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRegistryFile: cannot read file %q: %w", path, err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("LoadRegistryFile: cannot parse file %q: %w", path, err)
	}
	for i, n := range f.Firearms {
		if n == "" {
			return nil, fmt.Errorf("LoadRegistryFile: entry %d in %q is empty", i, path)
		}
	}
	return f.Firearms, nil
}

// BuildRegistry merges inline names with the names listed in file. An empty
// file path is skipped.
//
// Postcondition: returns a Registry with at least one name, or an error.
func BuildRegistry(names []string, file string) (*Registry, error) {
	r := NewRegistry()
	for _, n := range names {
		if err := r.Add(n); err != nil {
			return nil, err
		}
	}
	if file != "" {
		fromFile, err := LoadRegistryFile(file)
		if err != nil {
			return nil, err
		}
		for _, n := range fromFile {
			if err := r.Add(n); err != nil {
				return nil, err
			}
		}
	}
	if r.Len() == 0 {
		return nil, errors.New("firearm: registry is empty")
	}
	return r, nil
}

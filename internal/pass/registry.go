package pass

import (
	"fmt"
	"slices"
	"strings"
)

// Factory creates a fresh pass instance for one module.
type Factory func(env *Env) (Pass, error)

// Info describes a registered pass.
type Info struct {
	Name        string
	Description string
	New         Factory
}

// Registry holds pass factories by name.
type Registry struct {
	infos  []Info
	byName map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a pass. Names are case-sensitive, like opt's flags.
func (r *Registry) Register(info Info) error {
	if info.Name == "" || info.New == nil {
		return fmt.Errorf("pass registration needs a name and a factory")
	}
	if _, dup := r.byName[info.Name]; dup {
		return fmt.Errorf("pass %q already registered", info.Name)
	}
	r.byName[info.Name] = len(r.infos)
	r.infos = append(r.infos, info)
	return nil
}

// Lookup finds a pass by name.
func (r *Registry) Lookup(name string) (Info, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Info{}, false
	}
	return r.infos[i], true
}

// Infos returns every registration sorted by name.
func (r *Registry) Infos() []Info {
	out := slices.Clone(r.infos)
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Instantiate creates the named passes, in order, for one module.
func (r *Registry) Instantiate(env *Env, names []string) ([]Pass, error) {
	out := make([]Pass, 0, len(names))
	for _, name := range names {
		info, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown pass %q (known: %s)", name, strings.Join(r.names(), ", "))
		}
		p, err := info.New(env)
		if err != nil {
			return nil, fmt.Errorf("pass %s: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.infos))
	for _, info := range r.Infos() {
		out = append(out, info.Name)
	}
	return out
}

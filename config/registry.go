package config

import "fmt"

// Factory builds a component instance from its configured parameters. Concrete routing/controller/iso
// types register a Factory for their class name from an init() in their own package, rather than this
// package reflecting over a compile-time-closed type switch — the component set is config-driven, not
// closed at compile time (DESIGN NOTES §9: "dynamic class lookup ... strategy: explicit registry, no
// reflection"), mirroring the teacher's closed-set `UnmarshalJSON` switches generalized to a map.
type Factory func(c Component) (interface{}, error)

// Registry is a class-name -> Factory lookup populated by each package's init().
type Registry struct {
	factories map[string]Factory
}

// global is the process-wide registry that package init() functions register into, matching the
// original's NavigationConfiguration.add_class appending to a single process-wide class dict.
var global = NewRegistry()

// NewRegistry creates an empty registry; used directly in tests that don't want to touch the process-wide
// global registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under class. Panics on duplicate registration: a duplicate class name is a
// programming error caught at init time, not a runtime condition to recover from.
func (r *Registry) Register(class string, f Factory) {
	if _, exists := r.factories[class]; exists {
		panic(fmt.Sprintf("config: class %q already registered", class))
	}
	r.factories[class] = f
}

// Build constructs a component using its configured class (or factory method) and parameters.
func (r *Registry) Build(c Component) (interface{}, error) {
	f, ok := r.factories[c.Class]
	if !ok {
		return nil, fmt.Errorf("config: missing class %q to build object %q", c.Class, c.Name)
	}
	obj, err := f(c)
	if err != nil {
		return nil, fmt.Errorf("config: error building object %q class %q: %w", c.Name, c.Class, err)
	}
	return obj, nil
}

// Register adds a factory to the process-wide registry. Call from an init() in the package that owns the
// concrete type.
func Register(class string, f Factory) { global.Register(class, f) }

// Default returns the process-wide registry.
func Default() *Registry { return global }

// BuildOrder is the category sequence a server.Server builds components in: classes and features are
// resolved implicitly by package registration (init()) before this list runs.
var BuildOrder = []string{
	"filters",
	"applications",
	"servers",
	"services",
	"functions",
	"processes",
	"couplers",
	"publishers",
}

// Components returns the configured Component list for one BuildOrder category.
func (cfg *Config) Components(category string) []Component {
	switch category {
	case "processes":
		return cfg.Processes
	case "couplers":
		return cfg.Couplers
	case "publishers":
		return cfg.Publishers
	case "services":
		return cfg.Services
	case "filters":
		return cfg.Filters
	case "applications":
		return cfg.Applications
	case "functions":
		return cfg.Functions
	case "servers":
		return cfg.Servers
	default:
		return nil
	}
}

package problem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
)

type Factory func(opts Options) (Problem, error)

type Definition struct {
	Name        string
	Description string
	Factory     Factory
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Definition
}{
	m: make(map[string]Definition),
}

func Register(def Definition) error {
	if def.Name == "" {
		return errors.New("problem name is required")
	}
	if def.Factory == nil {
		return errors.New("problem factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, def.Name)
	}
	registry.m[def.Name] = def
	return nil
}

func Resolve(name string, opts Options) (Problem, error) {
	registry.mu.RLock()
	def, ok := registry.m[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return def.Factory(opts)
}

// List returns the registered problem definitions sorted by name.
func List() []Definition {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	defs := make([]Definition, 0, len(registry.m))
	for _, def := range registry.m {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func init() {
	mustRegister(Definition{
		Name:        OneMaxName,
		Description: "maximise the number of set bits in a bit string",
		Factory:     func(opts Options) (Problem, error) { return NewOneMax(opts.Genes) },
	})
	mustRegister(Definition{
		Name:        SphereName,
		Description: "minimise the sphere function over a real vector",
		Factory:     func(opts Options) (Problem, error) { return NewSphere(opts.Genes) },
	})
}

func mustRegister(def Definition) {
	if err := Register(def); err != nil {
		panic(err)
	}
}

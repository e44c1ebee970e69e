package invoke

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Factory constructs a fresh handler instance. It plays the role of a
// no-argument constructor; returning nil is an [ErrInstanceCreation].
type Factory func() any

// Registry maps (module, type) pairs to handler factories.
// Registration happens at startup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]map[string]Factory)}
}

// DefaultRegistry is the process-wide registry used by [Register] and [RegisterType].
var DefaultRegistry = NewRegistry()

// Register adds a factory for typeName under module.
// It panics on empty names, a nil factory, or a duplicate registration.
func (r *Registry) Register(module, typeName string, factory Factory) {
	if module == "" || typeName == "" {
		panic("invoke: module and type name must not be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("invoke: nil factory for %s%s%s", module, ReferenceDelimiter, typeName))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.modules[module]
	if !ok {
		types = make(map[string]Factory)
		r.modules[module] = types
	}
	if _, dup := types[typeName]; dup {
		panic(fmt.Sprintf("invoke: duplicate registration for %s%s%s", module, ReferenceDelimiter, typeName))
	}
	types[typeName] = factory
}

// Lookup returns the factory registered for (module, typeName).
func (r *Registry) Lookup(module, typeName string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.modules[module][typeName]

	return f, ok
}

// Handlers lists the dispatchable methods of every registered type as
// configuration-form references, sorted. Methods whose parameters or results
// the adapter cannot handle are left out.
func (r *Registry) Handlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var refs []string
	for module, types := range r.modules {
		for typeName, factory := range types {
			inst := factory()
			if inst == nil {
				continue
			}
			v := reflect.ValueOf(inst)
			t := v.Type()
			for i := range t.NumMethod() {
				if !dispatchable(v.Method(i).Type()) {
					continue
				}
				ref := Reference{Module: module, Type: typeName, Method: t.Method(i).Name}
				refs = append(refs, ref.String())
			}
		}
	}
	slices.Sort(refs)

	return refs
}

func dispatchable(ft reflect.Type) bool {
	if shape, _, _ := classifyParams(ft); shape == ShapeUnsupported {
		return false
	}
	_, err := classifyReturns(ft)

	return err == nil
}

// TypeName returns the type identifier RegisterType uses for T, e.g. "sample.Doubler".
func TypeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// RegisterType registers T under module with a factory returning new(T), so
// both value and pointer receiver methods are resolvable. It returns the type
// identifier used for the registration.
func RegisterType[T any](r *Registry, module string) string {
	name := TypeName[T]()
	r.Register(module, name, func() any { return new(T) })

	return name
}

// Register adds a factory to [DefaultRegistry].
func Register(module, typeName string, factory Factory) {
	DefaultRegistry.Register(module, typeName, factory)
}

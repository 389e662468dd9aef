package tcprest

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ResourceRegistry is a per-server map of class-name → class (constructed
// fresh per call) and class-name → singleton instance (shared across calls,
// winning over the class map when both are present). Snapshots are
// consistent for the duration of one request; mutation is not serialized
// with reads.
type ResourceRegistry struct {
	mu         sync.RWMutex
	classes    map[string]reflect.Type
	singletons map[string]reflect.Value
	strict     bool
	mappers    *MapperRegistry // consulted by the strict-mode type check; may be nil
}

// NewResourceRegistry constructs an empty registry. In strict mode,
// AddResource/AddSingletonResource reject resources whose methods reference
// unsupported parameter or return types.
func NewResourceRegistry(strict bool) *ResourceRegistry {
	return &ResourceRegistry{
		classes:    map[string]reflect.Type{},
		singletons: map[string]reflect.Value{},
		strict:     strict,
	}
}

// SetMapperRegistry lets the strict-mode type check treat any type with a
// registered mapper as supported.
func (r *ResourceRegistry) SetMapperRegistry(mappers *MapperRegistry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappers = mappers
}

// SetStrict toggles strict type validation for subsequent registrations.
func (r *ResourceRegistry) SetStrict(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = strict
}

// AddResource registers class (invoked via a fresh zero-value instance per
// call; see Invoke). sample is only used to obtain its type.
func (r *ResourceRegistry) AddResource(sample interface{}) error {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if r.strict {
		if unsupported := r.findUnsupportedMethodTypes(t); len(unsupported) > 0 {
			return ProtocolErrorf("resource %s has unsupported types: %s", canonicalTypeName(t), strings.Join(unsupported, ", "))
		}
	} else if unsupported := r.findUnsupportedMethodTypes(t); len(unsupported) > 0 {
		log.Warning(fmt.Sprintf("resource %s registered with unsupported types: %s", canonicalTypeName(t), strings.Join(unsupported, ", ")))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[canonicalTypeName(t)] = t
	return nil
}

// AddResourceAs registers sample's class under one or more explicit wire
// names in addition to its canonical name, for callers whose frames carry a
// short or foreign class name rather than a Go import path.
func (r *ResourceRegistry) AddResourceAs(sample interface{}, names ...string) error {
	if err := r.AddResource(sample); err != nil {
		return err
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.classes[name] = t
	}
	return nil
}

// AddSingletonResourceAs registers instance as a shared singleton,
// resolvable both by its own canonical name and by the canonical name of
// every interface type listed in ifaces that it implements.
func (r *ResourceRegistry) AddSingletonResourceAs(instance interface{}, ifaces ...reflect.Type) error {
	v := reflect.ValueOf(instance)
	t := v.Type()
	concrete := t
	for concrete.Kind() == reflect.Ptr {
		concrete = concrete.Elem()
	}
	if r.strict {
		if unsupported := r.findUnsupportedMethodTypes(t); len(unsupported) > 0 {
			return ProtocolErrorf("singleton %s has unsupported types: %s", canonicalTypeName(concrete), strings.Join(unsupported, ", "))
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singletons[canonicalTypeName(concrete)] = v
	for _, iface := range ifaces {
		if !t.Implements(iface) {
			continue
		}
		r.singletons[canonicalTypeName(iface)] = v
	}
	return nil
}

// AddSingletonResource is AddSingletonResourceAs with no interface aliases.
func (r *ResourceRegistry) AddSingletonResource(instance interface{}) error {
	return r.AddSingletonResourceAs(instance)
}

// RemoveResource and RemoveSingletonResource are best-effort: an
// invocation already in flight keeps the snapshot it resolved.
func (r *ResourceRegistry) RemoveResource(className string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.classes, className)
}

func (r *ResourceRegistry) RemoveSingletonResource(className string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.singletons, className)
}

// Resolve looks up className, preferring a singleton over a bare class
// when both are registered.
func (r *ResourceRegistry) Resolve(className string) (class reflect.Type, instance reflect.Value, hasInstance bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.singletons[className]; ok {
		t := v.Type()
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		return t, v, true, nil
	}
	if t, ok := r.classes[className]; ok {
		return t, reflect.Value{}, false, nil
	}
	return nil, reflect.Value{}, false, ProtocolErrorf("no resource registered for class %q", className)
}

// supportedType reports whether t is usable as a method parameter/return
// type: primitive, wrapper, string, array of those, a common collection
// interface, a type with a registered mapper, or anything opaque-
// serializable.
func (r *ResourceRegistry) supportedType(t reflect.Type) bool {
	if t.Kind() == reflect.Invalid {
		return true // void
	}
	if isFastTextType(t) || isCommonCollectionInterface(t) || isOpaqueSerializable(t) {
		return true
	}
	if r.mappers != nil {
		if _, ok := r.mappers.lookup(canonicalTypeName(t)); ok {
			return true
		}
	}
	return false
}

func (r *ResourceRegistry) findUnsupportedMethodTypes(t reflect.Type) []string {
	// validate the pointer method set: it includes value-receiver methods,
	// and it is the method set the parsers actually resolve against
	// (reflect.PtrTo(class) when no singleton is registered). Checking the
	// bare struct type would silently skip pointer-receiver methods.
	if t.Kind() != reflect.Ptr && t.Kind() != reflect.Interface {
		t = reflect.PtrTo(t)
	}
	var unsupported []string
	seen := map[string]bool{}
	add := func(rt reflect.Type) {
		if rt == nil || r.supportedType(rt) {
			return
		}
		name := canonicalTypeName(rt)
		if !seen[name] {
			seen[name] = true
			unsupported = append(unsupported, name)
		}
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		for p := 1; p < m.Type.NumIn(); p++ {
			add(m.Type.In(p))
		}
		for o := 0; o < m.Type.NumOut(); o++ {
			out := m.Type.Out(o)
			if out.Implements(reflect.TypeOf((*error)(nil)).Elem()) {
				continue
			}
			add(out)
		}
	}
	return unsupported
}

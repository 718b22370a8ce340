// Package registry implements the host introspection server: components
// register under unique names and are listed, read, and invoked by name.
package registry

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/st-keller/event-counter/component"
	"github.com/st-keller/event-counter/schema"
)

var (
	ErrInvalid           = xerrors.New("invalid registration")
	ErrAlreadyRegistered = xerrors.New("component already registered")
	ErrNotRegistered     = xerrors.New("component not registered")
)

// Component is anything that can be exposed through the registry. The
// attribute set may change over the component's lifetime; Descriptor reports
// the current one. Components with read-only attributes advertise them with
// Attribute.Writable false and ignore writes.
type Component interface {
	Descriptor(ctx context.Context) (*schema.Descriptor, error)
	GetAttribute(name string) (any, bool)
	SetAttribute(name string, value any) error
	Invoke(ctx context.Context, op string, args ...any) (any, error)
}

// Registry manages registered components.
type Registry struct {
	log slog.Logger

	mu         sync.RWMutex
	components map[string]Component

	// cache: name -> last collected snapshot
	cacheMu sync.Mutex
	cache   map[string]*cachedSnapshot
}

type cachedSnapshot struct {
	lastRawJSON  []byte
	lastSnapshot component.Snapshot
}

// New creates an empty Registry.
func New(logger slog.Logger) *Registry {
	return &Registry{
		log:        logger.Named("registry"),
		components: make(map[string]Component),
		cache:      make(map[string]*cachedSnapshot),
	}
}

// Register exposes c under name.
func (r *Registry) Register(ctx context.Context, name string, c Component) error {
	if name == "" {
		return xerrors.Errorf("%w: name required", ErrInvalid)
	}
	if c == nil {
		return xerrors.Errorf("%w: component required", ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[name]; ok {
		return xerrors.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.components[name] = c
	r.log.Debug(ctx, "component registered", slog.F("name", name))
	return nil
}

// Unregister removes the component registered under name.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	if _, ok := r.components[name]; !ok {
		r.mu.Unlock()
		return xerrors.Errorf("%w: %s", ErrNotRegistered, name)
	}
	delete(r.components, name)
	r.mu.Unlock()

	r.cacheMu.Lock()
	delete(r.cache, name)
	r.cacheMu.Unlock()

	r.log.Debug(ctx, "component unregistered", slog.F("name", name))
	return nil
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Component, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, xerrors.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return c, nil
}

// Describe returns the current descriptor of a component.
func (r *Registry) Describe(ctx context.Context, name string) (*schema.Descriptor, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Descriptor(ctx)
}

// GetAttribute reads one attribute of a component. A missing attribute is not
// an error: it reports ok=false.
func (r *Registry) GetAttribute(name, attr string) (value any, ok bool, err error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, false, err
	}
	value, ok = c.GetAttribute(attr)
	return value, ok, nil
}

// SetAttribute writes one attribute of a component.
func (r *Registry) SetAttribute(name, attr string, value any) error {
	c, err := r.lookup(name)
	if err != nil {
		return err
	}
	return c.SetAttribute(attr, value)
}

// Invoke runs an operation on a component.
func (r *Registry) Invoke(ctx context.Context, name, op string, args ...any) (any, error) {
	c, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, op, args...)
}

// Collect reads a component's descriptor and every listed attribute into a
// checksummed snapshot. The checksum is only recomputed when the encoded
// snapshot differs from the previous collection.
func (r *Registry) Collect(ctx context.Context, name string) (component.Snapshot, error) {
	c, err := r.lookup(name)
	if err != nil {
		return component.Snapshot{}, err
	}

	desc, err := c.Descriptor(ctx)
	if err != nil {
		return component.Snapshot{}, xerrors.Errorf("describe %s: %w", name, err)
	}
	if desc == nil {
		return component.Snapshot{}, xerrors.Errorf("describe %s: no descriptor", name)
	}

	values := make(map[string]any, len(desc.Attributes))
	for _, attr := range desc.Attributes {
		// The descriptor may list an attribute that vanished since it was
		// built, e.g. after a reset; skip it.
		if v, ok := c.GetAttribute(attr.Name); ok {
			values[attr.Name] = v
		}
	}

	raw, err := component.Encode(desc, values)
	if err != nil {
		return component.Snapshot{}, xerrors.Errorf("encode %s: %w", name, err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	cached := r.cache[name]
	if cached != nil && bytes.Equal(cached.lastRawJSON, raw) {
		return cached.lastSnapshot, nil
	}

	snap := component.FromEncoded(name, desc, values, raw)
	r.cache[name] = &cachedSnapshot{
		lastRawJSON:  raw,
		lastSnapshot: snap,
	}
	return snap, nil
}

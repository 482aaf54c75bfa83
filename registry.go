package formstore

import (
	"fmt"
	"time"
)

// CapabilityFunc is the host's capability check, consulted before every
// mutation. Identity resolution stays on the host side; the framework only
// asks whether the acting caller may perform action on the given entity.
// A nil func allows everything.
type CapabilityFunc func(action string, kind Kind, id int64) bool

// Option configures a Registry.
type Option func(*Registry)

// WithCacheTTL overrides DefaultCacheTTL for every manager's cache entries.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithAuthorizer installs the host capability check.
func WithAuthorizer(fn CapabilityFunc) Option {
	return func(r *Registry) {
		r.authorize = fn
	}
}

// Registry is the process-wide lookup from entity kind to manager. It is
// built once during startup, wired explicitly and passed by reference; there
// are no package-level singletons. Register and Link calls are not safe for
// concurrent use; everything after setup is.
type Registry struct {
	store     RowStore
	cache     CacheClient
	ttl       time.Duration
	authorize CapabilityFunc

	managers map[Kind]*Manager
	kinds    []Kind
	dup      *Duplicator
}

// NewRegistry builds an empty registry on the given store and cache. The
// cache may be nil; managers then run store-only.
func NewRegistry(store RowStore, cache CacheClient, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		cache:    cache,
		ttl:      DefaultCacheTTL,
		managers: make(map[Kind]*Manager),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the schema and creates its manager.
func (r *Registry) Register(s *Schema) (*Manager, error) {
	if s == nil {
		return nil, fmt.Errorf("formstore: cannot register a nil schema")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if _, exists := r.managers[s.Kind]; exists {
		return nil, fmt.Errorf("formstore: kind %q already registered", s.Kind)
	}
	m := &Manager{
		schema:    s,
		store:     r.store,
		cache:     r.cache,
		ttl:       r.ttl,
		authorize: r.authorize,
		parents:   make(map[Kind]*Manager),
		children:  make(map[Kind]*Manager),
		dupSkip:   make(map[Kind]bool),
	}
	r.managers[s.Kind] = m
	r.kinds = append(r.kinds, s.Kind)
	return m, nil
}

// Manager returns the manager for a kind.
func (r *Registry) Manager(kind Kind) (*Manager, error) {
	m, ok := r.managers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return m, nil
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// LinkOption configures one parent/child link.
type LinkOption func(*linkConfig)

type linkConfig struct {
	duplicate bool
}

// WithoutDuplication excludes the child kind from subtree duplication while
// keeping it in cascade deletion. Used for runtime data that must not travel
// with a structural copy, e.g. submissions under a form.
func WithoutDuplication() LinkOption {
	return func(c *linkConfig) {
		c.duplicate = false
	}
}

// Link wires a parent/child relationship both ways. The child schema must
// declare a parent-link column for the parent kind. A link that would make a
// manager its own ancestor is rejected.
func (r *Registry) Link(parent, child Kind, opts ...LinkOption) error {
	pm, err := r.Manager(parent)
	if err != nil {
		return err
	}
	cm, err := r.Manager(child)
	if err != nil {
		return err
	}
	if _, ok := cm.schema.ParentColumns[parent]; !ok {
		return fmt.Errorf("formstore: schema %q declares no parent column for %q", child, parent)
	}
	if pm == cm || cm.isAncestorOf(pm) {
		return fmt.Errorf("%w: %s -> %s", ErrRelationshipCycle, parent, child)
	}
	if _, ok := pm.children[child]; ok {
		return fmt.Errorf("formstore: %s -> %s already linked", parent, child)
	}
	cfg := linkConfig{duplicate: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	pm.children[child] = cm
	pm.childOrder = append(pm.childOrder, child)
	if !cfg.duplicate {
		pm.dupSkip[child] = true
	}
	cm.parents[parent] = pm
	return nil
}

// Duplicator returns the registry's duplication engine, creating it on first
// use so listeners registered by the host accumulate in one place.
func (r *Registry) Duplicator() *Duplicator {
	if r.dup == nil {
		r.dup = &Duplicator{reg: r}
	}
	return r.dup
}

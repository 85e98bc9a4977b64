package schema

import (
	"fmt"
	"sort"
)

// IndexSpec declares a secondary index over a collection field.
//
// Key extracts the index key from a decoded record. Returning ok=false
// skips the record (absent optional field).
type IndexSpec struct {
	Field  string
	Unique bool
	Key    func(record any) (key string, ok bool)
}

// CollectionSpec describes one named collection: how to decode its
// records, validate them, and index them.
type CollectionSpec struct {
	// Name is the collection name, unique within a registry.
	Name string

	// New returns a zero value of the record type for decoding.
	New func() any

	// ID extracts the primary key from a decoded record.
	ID func(record any) string

	// Validate checks a decoded record. Nil means no validation.
	Validate func(record any) error

	// Indexes are the secondary indexes maintained for the
	// collection.
	Indexes []IndexSpec

	// SortField names the sortable field for range queries; empty
	// disables them. SortKey extracts its int64 value.
	SortField string
	SortKey   func(record any) (value int64, ok bool)
}

// Index returns the index spec for the given field.
func (s *CollectionSpec) Index(field string) (*IndexSpec, bool) {
	for i := range s.Indexes {
		if s.Indexes[i].Field == field {
			return &s.Indexes[i], true
		}
	}
	return nil, false
}

// Registry maps collection names to their specs.
type Registry struct {
	specs map[string]*CollectionSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*CollectionSpec),
	}
}

// Register adds a collection spec. Registering the same name twice or
// a spec missing its identity hooks is a programming error.
func (r *Registry) Register(spec *CollectionSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("schema: collection name is required")
	}
	if spec.New == nil || spec.ID == nil {
		return fmt.Errorf("schema: collection %q: New and ID hooks are required", spec.Name)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("schema: collection %q already registered", spec.Name)
	}
	if spec.SortField != "" && spec.SortKey == nil {
		return fmt.Errorf("schema: collection %q: SortField declared without SortKey", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// MustRegister is Register that panics on error, for static setup.
func (r *Registry) MustRegister(spec *CollectionSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Spec returns the spec for a collection name.
func (r *Registry) Spec(name string) (*CollectionSpec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names returns all registered collection names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package datatype holds the datatype registry: descriptors for
// primitive, typedef, struct and enum datatypes, keyed by name, plus value
// validation against those descriptors composed with runtime constraints.
package datatype

import (
	"fmt"
	"sync"

	"github.com/nmos-controlflow/ncp/pkg/ncp/constraint"
)

// Kind enumerates the four datatype descriptor shapes (§3.2).
type Kind int

const (
	KindPrimitive Kind = iota
	KindTypedef
	KindStruct
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindTypedef:
		return "typedef"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// FieldDescriptor describes one field of a struct datatype.
type FieldDescriptor struct {
	Name       string
	TypeName   string
	Nullable   bool
	IsSequence bool
	Constraint *constraint.Constraint
}

// EnumItem is one named value of an enum datatype.
type EnumItem struct {
	Name  string
	Value int16
}

// Descriptor is a datatype descriptor: primitive, typedef, struct or enum.
type Descriptor struct {
	Name string
	Kind Kind

	// Typedef-only.
	ParentTypeName string
	IsSequence     bool
	Constraint     *constraint.Constraint

	// Struct-only. StructParentTypeName, if non-empty, names the parent
	// struct this one inherits fields from.
	Fields               []FieldDescriptor
	StructParentTypeName string

	// Enum-only.
	Items []EnumItem
}

// Registry is a thread-safe, read-mostly map of datatype descriptors keyed
// by name. Descriptors are added at startup and never removed (§3.4).
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds or overwrites a descriptor. Embedders call this at startup
// for every datatype their device model exposes.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[d.Name] = d
}

// Get returns the raw, un-flattened descriptor for name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// GetDatatype implements §4.1's get_datatype(name, include_inherited). When
// includeInherited is true and the datatype is a struct with a
// StructParentTypeName, the returned descriptor's Fields list is the
// concatenation of ancestor fields (root-ward first) followed by the
// struct's own fields.
func (r *Registry) GetDatatype(name string, includeInherited bool) (Descriptor, bool) {
	d, ok := r.Get(name)
	if !ok {
		return Descriptor{}, false
	}
	if !includeInherited || d.Kind != KindStruct || d.StructParentTypeName == "" {
		return d, true
	}

	var chain []Descriptor
	cur := d
	for {
		chain = append(chain, cur)
		if cur.StructParentTypeName == "" {
			break
		}
		parent, ok := r.Get(cur.StructParentTypeName)
		if !ok {
			break
		}
		cur = parent
	}

	flattened := d
	flattened.Fields = nil
	for i := len(chain) - 1; i >= 0; i-- {
		flattened.Fields = append(flattened.Fields, chain[i].Fields...)
	}
	return flattened, true
}

// Validate checks value against the descriptor named typeName, composed
// with an optional runtime-override constraint and an optional
// property-descriptor constraint, in that precedence order (§3.5: runtime
// > property > datatype).
func (r *Registry) Validate(typeName string, value any, isSequence bool, nullable bool, runtimeConstraint, propertyConstraint *constraint.Constraint) error {
	if value == nil {
		if nullable {
			return nil
		}
		return fmt.Errorf("value for type %q must not be null", typeName)
	}

	d, ok := r.Get(typeName)
	if !ok {
		return fmt.Errorf("unknown datatype %q", typeName)
	}

	check := func(v any) error {
		var datatypeConstraint *constraint.Constraint
		switch d.Kind {
		case KindTypedef:
			datatypeConstraint = d.Constraint
		}
		if !constraint.SatisfiesAll(v, runtimeConstraint, propertyConstraint, datatypeConstraint) {
			return fmt.Errorf("value %v does not satisfy constraints for type %q", v, typeName)
		}
		if d.Kind == KindEnum {
			ok := false
			n, isNumber := int64FromAny(v)
			for _, item := range d.Items {
				if item.Name == v || (isNumber && n == int64(item.Value)) {
					ok = true
					break
				}
			}
			if !ok {
				return fmt.Errorf("value %v is not a member of enum %q", v, typeName)
			}
		}
		return nil
	}

	if isSequence {
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("value for sequence type %q must be an array", typeName)
		}
		for _, item := range items {
			if err := check(item); err != nil {
				return err
			}
		}
		return nil
	}
	return check(value)
}

func int64FromAny(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

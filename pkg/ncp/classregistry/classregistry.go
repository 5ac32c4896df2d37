// Package classregistry holds class descriptors keyed by class-id, with
// polymorphic property lookup by prefix-walking the class-id rather than
// materializing an inheritance graph ("deep class-id
// polymorphism").
package classregistry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nmos-controlflow/ncp/pkg/ncp/constraint"
)

// ClassID is an ordered sequence of signed integers read root to leaf, e.g.
// [1, 3, 2] for the class manager.
type ClassID []int32

func (c ClassID) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether c and other name the same class.
func (c ClassID) Equal(other ClassID) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether c is a prefix of other (c names an ancestor
// class of other, or other itself).
func (c ClassID) IsAncestorOf(other ClassID) bool {
	if len(c) > len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of c so callers can mutate it (e.g. pop the last
// element while walking toward root) without aliasing the registry's copy.
func (c ClassID) Clone() ClassID {
	out := make(ClassID, len(c))
	copy(out, c)
	return out
}

// ElementID addresses a property, method or event within a class level.
type ElementID struct {
	Level int32
	Index int32
}

// PropertyDescriptor is §3.2's property descriptor.
type PropertyDescriptor struct {
	ID         ElementID
	Name       string
	TypeName   string
	ReadOnly   bool
	Nullable   bool
	IsSequence bool
	Deprecated bool
	Constraint *constraint.Constraint

	// IsCounter and IsStatusMessage mark the fixed reset surface of a
	// status-monitor class (ResetMonitor's fixed reset surface): counters are
	// zeroed, status messages are set to null.
	IsCounter       bool
	IsStatusMessage bool
}

// ParameterDescriptor describes one method argument.
type ParameterDescriptor struct {
	Name       string
	TypeName   string
	Nullable   bool
	IsSequence bool
	Constraint *constraint.Constraint
}

// MethodDescriptor is §3.2's method descriptor.
type MethodDescriptor struct {
	ID         ElementID
	Name       string
	ResultType string
	Parameters []ParameterDescriptor
	Deprecated bool
}

// EventDescriptor describes a class event (e.g. PropertyChanged).
type EventDescriptor struct {
	ID         ElementID
	Name       string
	TypeName   string
	Deprecated bool
}

// Descriptor is §3.2's class descriptor. Descriptors are stored without
// inherited members; GetControlClass optionally flattens them.
type Descriptor struct {
	ClassID    ClassID
	Name       string
	FixedRole  string // non-empty for manager (singleton) classes
	Properties []PropertyDescriptor
	Methods    []MethodDescriptor
	Events     []EventDescriptor
}

// Registry is a thread-safe, read-mostly map of class descriptors keyed by
// class-id. Classes are added at startup and never removed (§3.4).
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ClassID.String()] = d
}

// Get returns the raw, un-flattened descriptor for classID.
func (r *Registry) Get(classID ClassID) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[classID.String()]
	return d, ok
}

// FindProperty implements §4.1's find_property(class_id, property_id): it
// walks classID from leaf toward root — for [1,3,2] it tries [1,3,2],
// [1,3], [1] — returning the first matching property descriptor and the
// class-id level at which it was declared.
func (r *Registry) FindProperty(classID ClassID, propertyID ElementID) (PropertyDescriptor, ClassID, bool) {
	walk := classID.Clone()
	for len(walk) > 0 {
		if d, ok := r.Get(walk); ok {
			for _, p := range d.Properties {
				if p.ID == propertyID {
					return p, walk, true
				}
			}
		}
		walk = walk[:len(walk)-1]
	}
	return PropertyDescriptor{}, nil, false
}

// FindMethod walks classID from leaf toward root looking for methodID,
// mirroring FindProperty.
func (r *Registry) FindMethod(classID ClassID, methodID ElementID) (MethodDescriptor, ClassID, bool) {
	walk := classID.Clone()
	for len(walk) > 0 {
		if d, ok := r.Get(walk); ok {
			for _, m := range d.Methods {
				if m.ID == methodID {
					return m, walk, true
				}
			}
		}
		walk = walk[:len(walk)-1]
	}
	return MethodDescriptor{}, nil, false
}

// GetControlClass implements §4.3's GetControlClass(classId,
// includeInherited). When includeInherited is true, inherited
// property/method/event descriptors are prepended in order root-ward to
// leaf-ward.
func (r *Registry) GetControlClass(classID ClassID, includeInherited bool) (Descriptor, bool) {
	d, ok := r.Get(classID)
	if !ok {
		return Descriptor{}, false
	}
	if !includeInherited || len(classID) <= 1 {
		return d, true
	}

	var ancestorIDs []ClassID
	walk := classID.Clone()
	for len(walk) > 1 {
		walk = walk[:len(walk)-1]
		ancestorIDs = append(ancestorIDs, walk)
	}
	// ancestorIDs is currently leaf-ward to root-ward; reverse it.
	for i, j := 0, len(ancestorIDs)-1; i < j; i, j = i+1, j-1 {
		ancestorIDs[i], ancestorIDs[j] = ancestorIDs[j], ancestorIDs[i]
	}

	flattened := d
	flattened.Properties = nil
	flattened.Methods = nil
	flattened.Events = nil
	for _, id := range ancestorIDs {
		anc, ok := r.Get(id)
		if !ok {
			continue
		}
		flattened.Properties = append(flattened.Properties, anc.Properties...)
		flattened.Methods = append(flattened.Methods, anc.Methods...)
		flattened.Events = append(flattened.Events, anc.Events...)
	}
	flattened.Properties = append(flattened.Properties, d.Properties...)
	flattened.Methods = append(flattened.Methods, d.Methods...)
	flattened.Events = append(flattened.Events, d.Events...)
	return flattened, true
}

// ResettableProperties returns the flattened, root-to-leaf property
// descriptors of classID that are marked as counters or status messages,
// i.e. the fixed reset surface a status monitor's ResetMonitor method acts
// on.
func (r *Registry) ResettableProperties(classID ClassID) []PropertyDescriptor {
	d, ok := r.GetControlClass(classID, true)
	if !ok {
		return nil
	}
	var out []PropertyDescriptor
	for _, p := range d.Properties {
		if p.IsCounter || p.IsStatusMessage {
			out = append(out, p)
		}
	}
	return out
}

// IsBlock reports whether classID descends from the block class [1, 1].
func IsBlock(classID ClassID) bool {
	return ClassID{1, 1}.IsAncestorOf(classID)
}

// IsClassManager reports whether classID descends from [1, 3, 2].
func IsClassManager(classID ClassID) bool {
	return ClassID{1, 3, 2}.IsAncestorOf(classID)
}

// IsStatusMonitor reports whether classID descends from the receiver or
// sender monitor base classes, [1, 2, 2] and [1, 2, 3] respectively (the
// worker status-monitor family).
func IsStatusMonitor(classID ClassID) bool {
	return ClassID{1, 2, 2}.IsAncestorOf(classID) || ClassID{1, 2, 3}.IsAncestorOf(classID)
}

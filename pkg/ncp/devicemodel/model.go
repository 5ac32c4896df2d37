package devicemodel

import (
	"strings"

	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/constraint"
	"github.com/nmos-controlflow/ncp/pkg/ncp/datatype"
	"github.com/nmos-controlflow/ncp/pkg/ncp/ncperrors"
	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
)

// Model composes the registries and the resource store into the operation
// surface an embedder's Control Protocol Session dispatches commands to.
type Model struct {
	Store     *resourcestore.Store
	Classes   *classregistry.Registry
	Datatypes *datatype.Registry

	// OnPropertyChanged is invoked once after every successful write
	// (on_property_changed(resource, property_name,
	// index)): index is WholeValueWrite for Set, SequenceItemRemoved for
	// RemoveSequenceItem, or the affected sequence index for
	// Add/SetSequenceItem. Nil is a valid no-op embedder.
	OnPropertyChanged func(oid resourcestore.OID, propertyName string, index int)
}

// Fixed index sentinels for OnPropertyChanged.
const (
	WholeValueWrite     = -1
	SequenceItemRemoved = -2
)

func (m *Model) firePropertyChanged(oid resourcestore.OID, name string, index int) {
	if m.OnPropertyChanged != nil {
		m.OnPropertyChanged(oid, name, index)
	}
}

func (m *Model) resolveProperty(oid resourcestore.OID, propertyID classregistry.ElementID) (*resourcestore.Resource, classregistry.PropertyDescriptor, MethodResult, bool) {
	r, err := m.Store.Get(oid)
	if err != nil {
		return nil, classregistry.PropertyDescriptor{}, fromErr(err), false
	}
	p, _, ok := m.Classes.FindProperty(r.ClassID, propertyID)
	if !ok {
		return nil, classregistry.PropertyDescriptor{}, PropertyNotImplemented("no such property"), false
	}
	return r, p, MethodResult{}, true
}

// GetProperty implements Get(propertyId).
func (m *Model) GetProperty(oid resourcestore.OID, propertyID classregistry.ElementID) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	value := r.Properties[p.Name]
	if p.Deprecated {
		return PropertyDeprecated(value)
	}
	return Ok(value)
}

// SetProperty implements Set(propertyId, value).
func (m *Model) SetProperty(oid resourcestore.OID, propertyID classregistry.ElementID, value any) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if p.ReadOnly {
		return Readonly("property " + p.Name + " is read only")
	}
	if value == nil && !p.Nullable {
		return ParameterError("property " + p.Name + " is not nullable")
	}
	if _, isSeq := value.([]any); p.IsSequence && value != nil && !isSeq {
		return ParameterError("property " + p.Name + " requires a sequence value")
	}
	if classregistry.IsStatusMonitor(r.ClassID) && p.Name == "enabled" {
		if enabled, ok := value.(bool); ok && !enabled {
			return InvalidRequest("status monitor's enabled property cannot be set to false")
		}
	}
	if err := m.Datatypes.Validate(p.TypeName, value, p.IsSequence, p.Nullable, nil, p.Constraint); err != nil {
		return ParameterError(err.Error())
	}

	_, err := m.Store.Modify(oid, func(working *resourcestore.Resource) (string, any, error) {
		working.Properties[p.Name] = value
		return "ValueChanged", map[string]any{"propertyId": propertyID, "value": value}, nil
	})
	if err != nil {
		return fromErr(err)
	}
	m.firePropertyChanged(oid, p.Name, WholeValueWrite)
	if p.Deprecated {
		return PropertyDeprecated(nil)
	}
	return Ok(nil)
}

func asSequence(r *resourcestore.Resource, name string) []any {
	seq, _ := r.Properties[name].([]any)
	return seq
}

// GetSequenceItem implements GetSequenceItem(propertyId, index).
func (m *Model) GetSequenceItem(oid resourcestore.OID, propertyID classregistry.ElementID, index int) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if !p.IsSequence {
		return ParameterError("property " + p.Name + " is not a sequence")
	}
	seq := asSequence(r, p.Name)
	if index < 0 || index >= len(seq) {
		return IndexOutOfBounds("index out of bounds for property " + p.Name)
	}
	return Ok(seq[index])
}

// GetSequenceLength implements GetSequenceLength(propertyId).
func (m *Model) GetSequenceLength(oid resourcestore.OID, propertyID classregistry.ElementID) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if !p.IsSequence {
		return ParameterError("property " + p.Name + " is not a sequence")
	}
	return Ok(len(asSequence(r, p.Name)))
}

// SetSequenceItem implements SetSequenceItem(propertyId, index, value).
func (m *Model) SetSequenceItem(oid resourcestore.OID, propertyID classregistry.ElementID, index int, value any) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if p.ReadOnly {
		return Readonly("property " + p.Name + " is read only")
	}
	if !p.IsSequence {
		return ParameterError("property " + p.Name + " is not a sequence")
	}
	if index < 0 || index >= len(asSequence(r, p.Name)) {
		return IndexOutOfBounds("index out of bounds for property " + p.Name)
	}
	if err := m.Datatypes.Validate(p.TypeName, value, false, p.Nullable, nil, p.Constraint); err != nil {
		return ParameterError(err.Error())
	}

	_, err := m.Store.Modify(oid, func(working *resourcestore.Resource) (string, any, error) {
		seq := asSequence(working, p.Name)
		if index < 0 || index >= len(seq) {
			return "", nil, ncperrors.ErrIndexOutOfBound
		}
		seq[index] = value
		working.Properties[p.Name] = seq
		return "SequenceItemChanged", map[string]any{"propertyId": propertyID, "index": index, "value": value}, nil
	})
	if err != nil {
		return fromErr(err)
	}
	m.firePropertyChanged(oid, p.Name, index)
	return Ok(nil)
}

// AddSequenceItem implements AddSequenceItem(propertyId, value, index):
// when index is nil, the item is appended.
func (m *Model) AddSequenceItem(oid resourcestore.OID, propertyID classregistry.ElementID, value any, index *int) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if p.ReadOnly {
		return Readonly("property " + p.Name + " is read only")
	}
	if !p.IsSequence {
		return ParameterError("property " + p.Name + " is not a sequence")
	}
	seqLen := len(asSequence(r, p.Name))
	insertAt := seqLen
	if index != nil {
		insertAt = *index
		if insertAt < 0 || insertAt > seqLen {
			return IndexOutOfBounds("index out of bounds for property " + p.Name)
		}
	}
	if err := m.Datatypes.Validate(p.TypeName, value, false, p.Nullable, nil, p.Constraint); err != nil {
		return ParameterError(err.Error())
	}

	_, err := m.Store.Modify(oid, func(working *resourcestore.Resource) (string, any, error) {
		seq := asSequence(working, p.Name)
		at := insertAt
		if at > len(seq) {
			at = len(seq)
		}
		seq = append(seq, nil)
		copy(seq[at+1:], seq[at:])
		seq[at] = value
		working.Properties[p.Name] = seq
		return "SequenceItemAdded", map[string]any{"propertyId": propertyID, "index": at, "value": value}, nil
	})
	if err != nil {
		return fromErr(err)
	}
	m.firePropertyChanged(oid, p.Name, insertAt)
	return Ok(insertAt)
}

// RemoveSequenceItem implements RemoveSequenceItem(propertyId, index).
func (m *Model) RemoveSequenceItem(oid resourcestore.OID, propertyID classregistry.ElementID, index int) MethodResult {
	r, p, failure, ok := m.resolveProperty(oid, propertyID)
	if !ok {
		return failure
	}
	if p.ReadOnly {
		return Readonly("property " + p.Name + " is read only")
	}
	if !p.IsSequence {
		return ParameterError("property " + p.Name + " is not a sequence")
	}
	if index < 0 || index >= len(asSequence(r, p.Name)) {
		return IndexOutOfBounds("index out of bounds for property " + p.Name)
	}

	_, err := m.Store.Modify(oid, func(working *resourcestore.Resource) (string, any, error) {
		seq := asSequence(working, p.Name)
		if index < 0 || index >= len(seq) {
			return "", nil, ncperrors.ErrIndexOutOfBound
		}
		seq = append(seq[:index], seq[index+1:]...)
		working.Properties[p.Name] = seq
		return "SequenceItemRemoved", map[string]any{"propertyId": propertyID, "index": index}, nil
	})
	if err != nil {
		return fromErr(err)
	}
	m.firePropertyChanged(oid, p.Name, SequenceItemRemoved)
	return Ok(nil)
}

// GetMemberDescriptors implements GetMemberDescriptors(recurse) (see
// §4.3).
func (m *Model) GetMemberDescriptors(oid resourcestore.OID, recurse bool) MethodResult {
	r, err := m.Store.Get(oid)
	if err != nil {
		return fromErr(err)
	}
	if !recurse {
		return Ok(r.Members)
	}
	var out []resourcestore.BlockMemberDescriptor
	var walk func(resourcestore.OID)
	walk = func(parent resourcestore.OID) {
		pr, err := m.Store.Get(parent)
		if err != nil {
			return
		}
		for _, member := range pr.Members {
			out = append(out, member)
			if classregistry.IsBlock(member.ClassID) {
				walk(member.OID)
			}
		}
	}
	walk(oid)
	return Ok(out)
}

// FindMembersByPath implements FindMembersByPath(path).
func (m *Model) FindMembersByPath(oid resourcestore.OID, path []string) MethodResult {
	if len(path) == 0 {
		return ParameterError("path must not be empty")
	}
	current, err := m.Store.Get(oid)
	if err != nil {
		return fromErr(err)
	}
	for _, role := range path {
		var next *resourcestore.BlockMemberDescriptor
		for i := range current.Members {
			if current.Members[i].Role == role {
				next = &current.Members[i]
				break
			}
		}
		if next == nil {
			return ParameterError("no member with role " + role)
		}
		current, err = m.Store.Get(next.OID)
		if err != nil {
			return fromErr(err)
		}
	}
	return Ok(current.Members)
}

// FindMembersByRole implements FindMembersByRole(role, caseSensitive,
// matchWholeString, recurse).
func (m *Model) FindMembersByRole(oid resourcestore.OID, role string, caseSensitive, matchWholeString, recurse bool) MethodResult {
	all := m.GetMemberDescriptors(oid, recurse)
	if !all.IsSuccess() {
		return all
	}
	members, _ := all.Value.([]resourcestore.BlockMemberDescriptor)

	needle := role
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}
	var matched []resourcestore.BlockMemberDescriptor
	for _, member := range members {
		candidate := member.Role
		if !caseSensitive {
			candidate = strings.ToLower(candidate)
		}
		if matchWholeString {
			if candidate == needle {
				matched = append(matched, member)
			}
		} else if strings.Contains(candidate, needle) {
			matched = append(matched, member)
		}
	}
	return Ok(matched)
}

// FindMembersByClassId implements FindMembersByClassId(classId,
// includeDerived, recurse).
func (m *Model) FindMembersByClassId(oid resourcestore.OID, classID classregistry.ClassID, includeDerived, recurse bool) MethodResult {
	all := m.GetMemberDescriptors(oid, recurse)
	if !all.IsSuccess() {
		return all
	}
	members, _ := all.Value.([]resourcestore.BlockMemberDescriptor)

	var matched []resourcestore.BlockMemberDescriptor
	for _, member := range members {
		if includeDerived {
			if classID.IsAncestorOf(member.ClassID) {
				matched = append(matched, member)
			}
		} else if classID.Equal(member.ClassID) {
			matched = append(matched, member)
		}
	}
	return Ok(matched)
}

// GetControlClass implements the class manager's GetControlClass(classId,
// includeInherited).
func (m *Model) GetControlClass(classID classregistry.ClassID, includeInherited bool) MethodResult {
	d, ok := m.Classes.GetControlClass(classID, includeInherited)
	if !ok {
		return ParameterError("no such control class")
	}
	return Ok(d)
}

// GetDatatype implements the class manager's GetDatatype(name,
// includeInherited).
func (m *Model) GetDatatype(name string, includeInherited bool) MethodResult {
	d, ok := m.Datatypes.GetDatatype(name, includeInherited)
	if !ok {
		return ParameterError("no such datatype")
	}
	return Ok(d)
}

// ResetMonitor implements the status monitor's ResetMonitor(): a fixed set
// of counters is zeroed and a fixed set of status-message properties is set
// to null. Only properties whose value actually moves publish a
// ValueChanged notification — computed with a JSON merge-patch diff against
// the resource's current properties rather than assuming every resettable
// property was non-zero (see §4.3).
func (m *Model) ResetMonitor(oid resourcestore.OID) MethodResult {
	r, err := m.Store.Get(oid)
	if err != nil {
		return fromErr(err)
	}
	if !classregistry.IsStatusMonitor(r.ClassID) {
		return MethodNotImplemented("oid is not a status monitor")
	}

	resettable := m.Classes.ResettableProperties(r.ClassID)
	proposed := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		proposed[k] = v
	}
	byName := make(map[string]classregistry.PropertyDescriptor, len(resettable))
	for _, p := range resettable {
		byName[p.Name] = p
		if p.IsCounter {
			proposed[p.Name] = int64(0)
		} else {
			proposed[p.Name] = nil
		}
	}

	changed, err := changedProperties(r.Properties, proposed)
	if err != nil {
		return fromErr(err)
	}

	for _, name := range changed {
		prop, ok := byName[name]
		if !ok {
			continue
		}
		resetValue := proposed[name]
		_, err := m.Store.Modify(oid, func(working *resourcestore.Resource) (string, any, error) {
			working.Properties[prop.Name] = resetValue
			return "ValueChanged", map[string]any{"propertyId": prop.ID, "value": resetValue}, nil
		})
		if err != nil {
			return fromErr(err)
		}
		m.firePropertyChanged(oid, prop.Name, WholeValueWrite)
	}
	return Ok(nil)
}

// Satisfies exposes composed constraint checking to callers assembling
// their own property descriptors outside of SetProperty (e.g. method
// argument validation), keeping a single source of truth for constraint
// precedence.
func Satisfies(value any, scopes ...*constraint.Constraint) bool {
	return constraint.SatisfiesAll(value, scopes...)
}

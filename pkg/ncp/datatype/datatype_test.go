package datatype

import (
	"testing"

	"github.com/nmos-controlflow/ncp/pkg/ncp/constraint"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(Descriptor{Name: "NcString", Kind: KindPrimitive})
	r.Register(Descriptor{Name: "NcBoolean", Kind: KindPrimitive})
	r.Register(Descriptor{
		Name: "NcResetCause",
		Kind: KindEnum,
		Items: []EnumItem{
			{Name: "Unknown", Value: 0},
			{Name: "PowerOn", Value: 1},
		},
	})
	base := constraint.Enum("red", "green", "blue")
	r.Register(Descriptor{
		Name:           "ColorName",
		Kind:           KindTypedef,
		ParentTypeName: "NcString",
		Constraint:     &base,
	})
	r.Register(Descriptor{
		Name: "NcTouchpoint",
		Kind: KindStruct,
		Fields: []FieldDescriptor{
			{Name: "resourceType", TypeName: "NcString"},
		},
	})
	r.Register(Descriptor{
		Name:                 "NcTouchpointNmos",
		Kind:                 KindStruct,
		StructParentTypeName: "NcTouchpoint",
		Fields: []FieldDescriptor{
			{Name: "id", TypeName: "NcString"},
		},
	})
	return r
}

func TestGetDatatypeFlattensStructInheritance(t *testing.T) {
	r := newTestRegistry()

	plain, ok := r.GetDatatype("NcTouchpointNmos", false)
	require.True(t, ok)
	require.Len(t, plain.Fields, 1)

	flattened, ok := r.GetDatatype("NcTouchpointNmos", true)
	require.True(t, ok)
	require.Len(t, flattened.Fields, 2)
	require.Equal(t, "resourceType", flattened.Fields[0].Name)
	require.Equal(t, "id", flattened.Fields[1].Name)
}

func TestValidateEnumRejectsUnknownMember(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Validate("NcResetCause", "PowerOn", false, false, nil, nil))
	require.Error(t, r.Validate("NcResetCause", "Bogus", false, false, nil, nil))
}

func TestValidateTypedefConstraint(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Validate("ColorName", "red", false, false, nil, nil))
	require.Error(t, r.Validate("ColorName", "purple", false, false, nil, nil))
}

func TestValidateNullability(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Validate("NcString", nil, false, true, nil, nil))
	require.Error(t, r.Validate("NcString", nil, false, false, nil, nil))
}

func TestValidateSequenceShape(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Validate("NcString", []any{"a", "b"}, true, false, nil, nil))
	require.Error(t, r.Validate("NcString", "not-an-array", true, false, nil, nil))
}

func TestValidateComposesRuntimeAndPropertyScopes(t *testing.T) {
	r := newTestRegistry()
	runtimeScope := constraint.Min(10)
	propertyScope := constraint.Max(20)
	require.NoError(t, r.Validate("NcString", 15, false, false, &runtimeScope, &propertyScope))
	require.Error(t, r.Validate("NcString", 25, false, false, &runtimeScope, &propertyScope))
}

package devicemodel

import (
	"testing"

	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/stretchr/testify/require"
)

func TestDispatchGenericGetAndSet(t *testing.T) {
	m := newTestModel(t)

	getArgs := map[string]any{
		"id": map[string]any{"level": float64(3), "index": float64(1)},
	}
	result := m.Dispatch(workerOID, classregistry.ElementID{Level: 1, Index: methodIndexGet}, getArgs)
	require.Equal(t, StatusOk, result.Status)
	require.Equal(t, []any{int64(10), int64(9), int64(8)}, result.Value)

	malformed := m.Dispatch(workerOID, classregistry.ElementID{Level: 1, Index: methodIndexGet}, map[string]any{})
	require.Equal(t, StatusBadCommandFormat, malformed.Status)
}

func TestDispatchByNameRoutesBlockNavigation(t *testing.T) {
	m := newTestModel(t)
	classRegistry := m.Classes
	classRegistry.Register(classregistry.Descriptor{
		ClassID: classregistry.ClassID{1, 1},
		Name:    "NcBlock",
		Methods: []classregistry.MethodDescriptor{
			{ID: classregistry.ElementID{2, 1}, Name: "GetMemberDescriptors"},
		},
		Properties: []classregistry.PropertyDescriptor{
			{ID: membersID, Name: "members", TypeName: "NcBlockMemberDescriptor", ReadOnly: true, IsSequence: true},
		},
	})

	result := m.Dispatch(rootOID, classregistry.ElementID{2, 1}, map[string]any{"recurse": false})
	require.Equal(t, StatusOk, result.Status)
}

func TestDispatchUnknownMethodIsNotImplemented(t *testing.T) {
	m := newTestModel(t)
	result := m.Dispatch(workerOID, classregistry.ElementID{9, 9}, nil)
	require.Equal(t, StatusMethodNotImplemented, result.Status)
}

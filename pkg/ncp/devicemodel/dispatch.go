package devicemodel

import (
	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
)

// NcObject's generic property/sequence methods live at level 1 in every
// class's method numbering (MS-05-02's base class). Everything else is
// resolved by name via the class registry, since block, class-manager and
// monitor method numbering is model-specific rather than fixed across every
// embedder.
const (
	methodIndexGet                = 1
	methodIndexSet                = 2
	methodIndexGetSequenceItem    = 3
	methodIndexSetSequenceItem    = 4
	methodIndexAddSequenceItem    = 5
	methodIndexRemoveSequenceItem = 6
	methodIndexGetSequenceLength  = 7
)

func argElementID(args map[string]any, key string) (classregistry.ElementID, bool) {
	raw, ok := args[key]
	if !ok {
		return classregistry.ElementID{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return classregistry.ElementID{}, false
	}
	level, lok := argInt(m, "level")
	index, iok := argInt(m, "index")
	if !lok || !iok {
		return classregistry.ElementID{}, false
	}
	return classregistry.ElementID{Level: int32(level), Index: int32(index)}, true
}

func argInt(args map[string]any, key string) (int, bool) {
	raw, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int32:
		return int(n), true
	}
	return 0, false
}

func argIntPtr(args map[string]any, key string) *int {
	if n, ok := argInt(args, key); ok {
		return &n
	}
	return nil
}

func argString(args map[string]any, key string) (string, bool) {
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func argBool(args map[string]any, key string, fallback bool) bool {
	raw, ok := args[key]
	if !ok {
		return fallback
	}
	b, ok := raw.(bool)
	if !ok {
		return fallback
	}
	return b
}

func argStringSlice(args map[string]any, key string) ([]string, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func argClassID(args map[string]any, key string) (classregistry.ClassID, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make(classregistry.ClassID, 0, len(items))
	for _, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, int32(n))
	}
	return out, true
}

// Dispatch routes a Command's {oid, methodId, arguments} to the matching
// operation and returns its MethodResult, the shape every CommandResponse
// entry carries.
func (m *Model) Dispatch(oid resourcestore.OID, methodID classregistry.ElementID, args map[string]any) MethodResult {
	if methodID.Level == 1 {
		return m.dispatchGeneric(oid, methodID, args)
	}

	r, err := m.Store.Get(oid)
	if err != nil {
		return fromErr(err)
	}
	method, _, ok := m.Classes.FindMethod(r.ClassID, methodID)
	if !ok {
		return MethodNotImplemented("no such method")
	}
	return m.dispatchByName(oid, method.Name, args)
}

func (m *Model) dispatchGeneric(oid resourcestore.OID, methodID classregistry.ElementID, args map[string]any) MethodResult {
	switch methodID.Index {
	case methodIndexGet:
		propertyID, ok := argElementID(args, "id")
		if !ok {
			return BadCommandFormat("Get requires an id argument")
		}
		return m.GetProperty(oid, propertyID)
	case methodIndexSet:
		propertyID, ok := argElementID(args, "id")
		if !ok {
			return BadCommandFormat("Set requires an id argument")
		}
		return m.SetProperty(oid, propertyID, args["value"])
	case methodIndexGetSequenceItem:
		propertyID, ok := argElementID(args, "id")
		index, iok := argInt(args, "index")
		if !ok || !iok {
			return BadCommandFormat("GetSequenceItem requires id and index arguments")
		}
		return m.GetSequenceItem(oid, propertyID, index)
	case methodIndexSetSequenceItem:
		propertyID, ok := argElementID(args, "id")
		index, iok := argInt(args, "index")
		if !ok || !iok {
			return BadCommandFormat("SetSequenceItem requires id and index arguments")
		}
		return m.SetSequenceItem(oid, propertyID, index, args["value"])
	case methodIndexAddSequenceItem:
		propertyID, ok := argElementID(args, "id")
		if !ok {
			return BadCommandFormat("AddSequenceItem requires an id argument")
		}
		return m.AddSequenceItem(oid, propertyID, args["value"], argIntPtr(args, "index"))
	case methodIndexRemoveSequenceItem:
		propertyID, ok := argElementID(args, "id")
		index, iok := argInt(args, "index")
		if !ok || !iok {
			return BadCommandFormat("RemoveSequenceItem requires id and index arguments")
		}
		return m.RemoveSequenceItem(oid, propertyID, index)
	case methodIndexGetSequenceLength:
		propertyID, ok := argElementID(args, "id")
		if !ok {
			return BadCommandFormat("GetSequenceLength requires an id argument")
		}
		return m.GetSequenceLength(oid, propertyID)
	default:
		return MethodNotImplemented("unknown NcObject method")
	}
}

func (m *Model) dispatchByName(oid resourcestore.OID, name string, args map[string]any) MethodResult {
	switch name {
	case "GetMemberDescriptors":
		return m.GetMemberDescriptors(oid, argBool(args, "recurse", false))
	case "FindMembersByPath":
		path, _ := argStringSlice(args, "path")
		return m.FindMembersByPath(oid, path)
	case "FindMembersByRole":
		role, _ := argString(args, "role")
		return m.FindMembersByRole(oid, role,
			argBool(args, "caseSensitive", false),
			argBool(args, "matchWholeString", false),
			argBool(args, "recurse", false))
	case "FindMembersByClassId":
		classID, ok := argClassID(args, "classId")
		if !ok {
			return BadCommandFormat("FindMembersByClassId requires a classId argument")
		}
		return m.FindMembersByClassId(oid, classID,
			argBool(args, "includeDerived", false),
			argBool(args, "recurse", false))
	case "GetControlClass":
		classID, ok := argClassID(args, "classId")
		if !ok {
			return BadCommandFormat("GetControlClass requires a classId argument")
		}
		return m.GetControlClass(classID, argBool(args, "includeInherited", false))
	case "GetDatatype":
		typeName, ok := argString(args, "name")
		if !ok {
			return BadCommandFormat("GetDatatype requires a name argument")
		}
		return m.GetDatatype(typeName, argBool(args, "includeInherited", false))
	case "ResetMonitor":
		return m.ResetMonitor(oid)
	default:
		return MethodNotImplemented("method " + name + " is not implemented")
	}
}

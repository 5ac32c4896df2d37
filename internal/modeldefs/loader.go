package modeldefs

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/datatype"
)

//go:embed classes.json
var classesJSON []byte

//go:embed datatypes.json
var datatypesJSON []byte

// LoadClasses decodes classes.json and registers every class descriptor it
// defines into reg. It is the reference embedder's replacement for a long
// hand-written sequence of reg.Register calls.
func LoadClasses(reg *classregistry.Registry) error {
	var defs []classDef
	if err := json.Unmarshal(classesJSON, &defs); err != nil {
		return fmt.Errorf("decoding embedded classes.json: %w", err)
	}
	for _, d := range defs {
		reg.Register(classregistry.Descriptor{
			ClassID:    classregistry.ClassID(d.ClassID),
			Name:       d.Name,
			FixedRole:  d.FixedRole,
			Properties: convertProperties(d.Properties),
			Methods:    convertMethods(d.Methods),
			Events:     convertEvents(d.Events),
		})
	}
	return nil
}

// LoadDatatypes decodes datatypes.json and registers every datatype
// descriptor it defines into reg.
func LoadDatatypes(reg *datatype.Registry) error {
	var defs []datatypeDef
	if err := json.Unmarshal(datatypesJSON, &defs); err != nil {
		return fmt.Errorf("decoding embedded datatypes.json: %w", err)
	}
	for _, d := range defs {
		kind, err := parseKind(d.Kind)
		if err != nil {
			return fmt.Errorf("datatype %q: %w", d.Name, err)
		}
		reg.Register(datatype.Descriptor{
			Name:                 d.Name,
			Kind:                 kind,
			ParentTypeName:       d.ParentTypeName,
			IsSequence:           d.IsSequence,
			Fields:               convertFields(d.Fields),
			StructParentTypeName: d.StructParentTypeName,
			Items:                convertItems(d.Items),
		})
	}
	return nil
}

func parseKind(s string) (datatype.Kind, error) {
	switch s {
	case "primitive":
		return datatype.KindPrimitive, nil
	case "typedef":
		return datatype.KindTypedef, nil
	case "struct":
		return datatype.KindStruct, nil
	case "enum":
		return datatype.KindEnum, nil
	default:
		return 0, fmt.Errorf("unknown datatype kind %q", s)
	}
}

func convertProperties(in []propertyDef) []classregistry.PropertyDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]classregistry.PropertyDescriptor, len(in))
	for i, p := range in {
		out[i] = classregistry.PropertyDescriptor{
			ID:              classregistry.ElementID{Level: p.ID.Level, Index: p.ID.Index},
			Name:            p.Name,
			TypeName:        p.TypeName,
			ReadOnly:        p.ReadOnly,
			Nullable:        p.Nullable,
			IsSequence:      p.IsSequence,
			Deprecated:      p.Deprecated,
			IsCounter:       p.IsCounter,
			IsStatusMessage: p.IsStatusMessage,
		}
	}
	return out
}

func convertMethods(in []methodDef) []classregistry.MethodDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]classregistry.MethodDescriptor, len(in))
	for i, m := range in {
		params := make([]classregistry.ParameterDescriptor, len(m.Parameters))
		for j, p := range m.Parameters {
			params[j] = classregistry.ParameterDescriptor{
				Name:       p.Name,
				TypeName:   p.TypeName,
				Nullable:   p.Nullable,
				IsSequence: p.IsSequence,
			}
		}
		out[i] = classregistry.MethodDescriptor{
			ID:         classregistry.ElementID{Level: m.ID.Level, Index: m.ID.Index},
			Name:       m.Name,
			ResultType: m.ResultType,
			Parameters: params,
			Deprecated: m.Deprecated,
		}
	}
	return out
}

func convertEvents(in []eventDef) []classregistry.EventDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]classregistry.EventDescriptor, len(in))
	for i, e := range in {
		out[i] = classregistry.EventDescriptor{
			ID:         classregistry.ElementID{Level: e.ID.Level, Index: e.ID.Index},
			Name:       e.Name,
			TypeName:   e.TypeName,
			Deprecated: e.Deprecated,
		}
	}
	return out
}

func convertFields(in []fieldDef) []datatype.FieldDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]datatype.FieldDescriptor, len(in))
	for i, f := range in {
		out[i] = datatype.FieldDescriptor{
			Name:       f.Name,
			TypeName:   f.TypeName,
			Nullable:   f.Nullable,
			IsSequence: f.IsSequence,
		}
	}
	return out
}

func convertItems(in []enumItemDef) []datatype.EnumItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]datatype.EnumItem, len(in))
	for i, it := range in {
		out[i] = datatype.EnumItem{Name: it.Name, Value: it.Value}
	}
	return out
}

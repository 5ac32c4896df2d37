// Package modeldefs embeds a hand-written stand-in for an IS-12 model
// repository export: the fixed base-class hierarchy and datatype set every
// reference embedder needs, as two JSON fixtures loaded at startup rather
// than assembled with a long sequence of Register calls (the teacher's own
// `api/v1alpha1/types.gen.go` is generated from an OpenAPI schema; there is
// no NMOS-model-repository generator available here, so classes.json and
// datatypes.json are maintained by hand in its place).
package modeldefs

// elementID mirrors classregistry.ElementID for JSON decoding; the two
// packages intentionally don't share a type so the wire format here can
// evolve independently of the in-memory descriptor shape.
type elementID struct {
	Level int32 `json:"level"`
	Index int32 `json:"index"`
}

type propertyDef struct {
	ID              elementID `json:"id"`
	Name            string    `json:"name"`
	TypeName        string    `json:"typeName"`
	ReadOnly        bool      `json:"readOnly"`
	Nullable        bool      `json:"nullable"`
	IsSequence      bool      `json:"isSequence"`
	Deprecated      bool      `json:"deprecated"`
	IsCounter       bool      `json:"isCounter"`
	IsStatusMessage bool      `json:"isStatusMessage"`
}

type parameterDef struct {
	Name       string `json:"name"`
	TypeName   string `json:"typeName"`
	Nullable   bool   `json:"nullable"`
	IsSequence bool   `json:"isSequence"`
}

type methodDef struct {
	ID         elementID      `json:"id"`
	Name       string         `json:"name"`
	ResultType string         `json:"resultType"`
	Parameters []parameterDef `json:"parameters,omitempty"`
	Deprecated bool           `json:"deprecated"`
}

type eventDef struct {
	ID         elementID `json:"id"`
	Name       string    `json:"name"`
	TypeName   string    `json:"typeName"`
	Deprecated bool      `json:"deprecated"`
}

type classDef struct {
	ClassID    []int32       `json:"classId"`
	Name       string        `json:"name"`
	FixedRole  string        `json:"fixedRole,omitempty"`
	Properties []propertyDef `json:"properties,omitempty"`
	Methods    []methodDef   `json:"methods,omitempty"`
	Events     []eventDef    `json:"events,omitempty"`
}

type fieldDef struct {
	Name       string `json:"name"`
	TypeName   string `json:"typeName"`
	Nullable   bool   `json:"nullable"`
	IsSequence bool   `json:"isSequence"`
}

type enumItemDef struct {
	Name  string `json:"name"`
	Value int16  `json:"value"`
}

type datatypeDef struct {
	Name                 string        `json:"name"`
	Kind                 string        `json:"kind"` // primitive, typedef, struct, enum
	ParentTypeName       string        `json:"parentTypeName,omitempty"`
	IsSequence           bool          `json:"isSequence,omitempty"`
	Fields               []fieldDef    `json:"fields,omitempty"`
	StructParentTypeName string        `json:"structParentTypeName,omitempty"`
	Items                []enumItemDef `json:"items,omitempty"`
}

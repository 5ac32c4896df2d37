package resourcestore

import "github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"

// OID is the 32-bit, process-unique identity of a control object. The root
// block's oid is fixed at RootBlockOID.
type OID = uint32

// RootBlockOID is the well-known oid of the device model's root block.
const RootBlockOID OID = 1

// Touchpoint is an optional reference from a control object to an external
// identity space (e.g. an IS-04 resource id).
type Touchpoint struct {
	ResourceType string
	ID           string
}

// Value is a property value, carried as whatever Go value was stored:
// decoded JSON (string, float64, bool, nil, []any, map[string]any) for
// writes through the device model, which validates them against a
// datatype first, or embedder-supplied values such as int64 passed to
// Store.Insert, which does not validate.
type Value = any

// BlockMemberDescriptor is the authoritative per-child summary a block
// resource owns in its Members list (§3.3). The store is responsible for
// keeping this list consistent with the set of resources whose Owner
// equals the block's own oid.
type BlockMemberDescriptor struct {
	Role        string
	OID         OID
	ConstantOID bool
	ClassID     classregistry.ClassID
	UserLabel   string
	Owner       OID
}

// Resource is one node of the Device Model (§3.3).
type Resource struct {
	OID         OID
	ClassID     classregistry.ClassID
	ConstantOID bool

	// Owner is the oid of the containing block; nil only for the root
	// block.
	Owner *OID
	Role  string

	UserLabel   string
	Touchpoints []Touchpoint

	// Properties holds every mutable, class-specific property value
	// keyed by property name. classId, oid, owner and role are
	// represented by the typed fields above, not duplicated here.
	Properties map[string]Value

	// Members is populated only for resources whose class-id descends
	// from [1,1] (block); it is regenerated by the store, never edited
	// directly by device-model operations.
	Members []BlockMemberDescriptor
}

// Clone returns a deep-enough copy of r for safe use outside the store's
// lock (property map and members slice are copied; nested values within
// Properties are treated as immutable once validated).
func (r *Resource) Clone() *Resource {
	clone := *r
	if r.Owner != nil {
		owner := *r.Owner
		clone.Owner = &owner
	}
	if r.Properties != nil {
		clone.Properties = make(map[string]Value, len(r.Properties))
		for k, v := range r.Properties {
			clone.Properties[k] = v
		}
	}
	clone.Touchpoints = append([]Touchpoint(nil), r.Touchpoints...)
	clone.Members = append([]BlockMemberDescriptor(nil), r.Members...)
	return &clone
}

func (r *Resource) memberDescriptor() BlockMemberDescriptor {
	var owner OID
	if r.Owner != nil {
		owner = *r.Owner
	}
	return BlockMemberDescriptor{
		Role:        r.Role,
		OID:         r.OID,
		ConstantOID: r.ConstantOID,
		ClassID:     r.ClassID,
		UserLabel:   r.UserLabel,
		Owner:       owner,
	}
}

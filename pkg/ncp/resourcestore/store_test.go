package resourcestore

import (
	"errors"
	"testing"

	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/ncperrors"
	"github.com/stretchr/testify/require"
)

func rootBlock() *Resource {
	return &Resource{
		OID:         RootBlockOID,
		ClassID:     classregistry.ClassID{1, 1},
		ConstantOID: true,
		Role:        "root",
		Properties:  map[string]Value{},
	}
}

func child(oid OID, owner OID, role string, classID classregistry.ClassID) *Resource {
	return &Resource{
		OID:        oid,
		ClassID:    classID,
		Owner:      &owner,
		Role:       role,
		Properties: map[string]Value{},
	}
}

func newTestStore(t *testing.T) (*Store, *Hub) {
	t.Helper()
	hub := NewHub()
	store := NewStore(hub)
	require.NoError(t, store.Insert(rootBlock()))
	return store, hub
}

// Remove a writable sequence item.
func TestRemoveWritableSequenceItemPublishesSequenceItemRemoved(t *testing.T) {
	store, hub := newTestStore(t)
	require.NoError(t, store.Insert(child(2, RootBlockOID, "worker", classregistry.ClassID{1, 2, 1})))

	_, events, overflowed := hub.Subscribe(4, func(OID) bool { return true })

	got, err := store.Modify(2, func(r *Resource) (string, any, error) {
		seq, _ := r.Properties["writableValue"].([]any)
		if seq == nil {
			seq = []any{int64(10), int64(9), int64(8)}
		}
		const index = 1
		if index < 0 || index >= len(seq) {
			return "", nil, ncperrors.ErrIndexOutOfBound
		}
		seq = append(seq[:index], seq[index+1:]...)
		r.Properties["writableValue"] = seq
		return "SequenceItemRemoved", map[string]any{"index": index}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []any{int64(10), int64(8)}, got.Properties["writableValue"])

	select {
	case ev := <-events:
		require.Equal(t, OID(2), ev.OID)
		require.Equal(t, "SequenceItemRemoved", ev.Name)
	default:
		t.Fatal("expected a notification to be published")
	}
	select {
	case <-overflowed:
		t.Fatal("mailbox should not have overflowed")
	default:
	}
}

// RemoveSequenceItem targeting a read-only property is rejected before
// any state change or notification.
func TestModifyReadOnlyPropertyIsRolledBackWithNoNotification(t *testing.T) {
	store, hub := newTestStore(t)
	_, events, _ := hub.Subscribe(4, func(OID) bool { return true })

	before, err := store.Get(RootBlockOID)
	require.NoError(t, err)

	_, err = store.Modify(RootBlockOID, func(r *Resource) (string, any, error) {
		return "", nil, ncperrors.ErrReadOnly
	})
	require.ErrorIs(t, err, ncperrors.ErrReadOnly)

	after, err := store.Get(RootBlockOID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	select {
	case <-events:
		t.Fatal("no notification should be published on a failed mutation")
	default:
	}
}

func TestModifyUnknownOIDReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Modify(999, func(r *Resource) (string, any, error) {
		return "Ok", nil, nil
	})
	require.True(t, errors.Is(err, ncperrors.ErrNotFound))
}

// Members descriptor is always derived, never independently
// mutable): inserting and removing children keeps the owning block's
// Members list consistent without ever writing to it directly.
func TestMembersInvariantTracksChildrenAcrossInsertAndRemove(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Insert(child(2, RootBlockOID, "worker-a", classregistry.ClassID{1, 2, 1})))
	require.NoError(t, store.Insert(child(3, RootBlockOID, "worker-b", classregistry.ClassID{1, 2, 1})))

	root, err := store.Get(RootBlockOID)
	require.NoError(t, err)
	require.Len(t, root.Members, 2)
	require.Equal(t, "worker-a", root.Members[0].Role)
	require.Equal(t, "worker-b", root.Members[1].Role)

	require.NoError(t, store.Remove(2))
	root, err = store.Get(RootBlockOID)
	require.NoError(t, err)
	require.Len(t, root.Members, 1)
	require.Equal(t, "worker-b", root.Members[0].Role)
}

// A duplicate role under the same owner is a Conflict, and the insert must
// not have partially applied.
func TestInsertDuplicateRoleIsConflict(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Insert(child(2, RootBlockOID, "worker", classregistry.ClassID{1, 2, 1})))

	err := store.Insert(child(3, RootBlockOID, "worker", classregistry.ClassID{1, 2, 1}))
	require.ErrorIs(t, err, ncperrors.ErrConflict)

	root, err := store.Get(RootBlockOID)
	require.NoError(t, err)
	require.Len(t, root.Members, 1)
}

func TestRemoveRootBlockIsRejected(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Remove(RootBlockOID)
	require.ErrorIs(t, err, ncperrors.ErrInvalidRequest)
}

// Role-path resolution survives mutation of unrelated
// siblings): the role-path index does not change as a side effect of an
// unrelated Modify call.
func TestRolePathIndexIsStableAcrossUnrelatedMutations(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Insert(child(2, RootBlockOID, "worker", classregistry.ClassID{1, 2, 1})))

	oid, err := store.GetByRolePath("root/worker")
	require.NoError(t, err)
	require.Equal(t, OID(2), oid)

	_, err = store.Modify(2, func(r *Resource) (string, any, error) {
		r.UserLabel = "renamed label, not renamed role"
		return "ValueChanged", nil, nil
	})
	require.NoError(t, err)

	oid, err = store.GetByRolePath("root/worker")
	require.NoError(t, err)
	require.Equal(t, OID(2), oid)
}

// Get returns a defensive copy: mutating the returned Resource must not
// leak back into store state.
func TestGetReturnsDefensiveCopy(t *testing.T) {
	store, _ := newTestStore(t)
	r, err := store.Get(RootBlockOID)
	require.NoError(t, err)
	r.Properties["tampered"] = true

	again, err := store.Get(RootBlockOID)
	require.NoError(t, err)
	require.NotContains(t, again.Properties, "tampered")
}

// Package resourcestore implements the Device Model's resource store: a map
// from oid to Resource plus a role-path secondary index, mutated only
// through a single-writer critical section that re-derives block-member
// descriptors and fans out change notifications.
package resourcestore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/ncperrors"
)

// Mutate is applied to a private clone of the target resource inside
// Store.Modify's write lock. It returns the notification to publish on
// success (an empty eventName suppresses the notification entirely, for
// mutations that have no externally visible event). Returning an error
// aborts the mutation: the clone is discarded and the stored resource is
// left untouched.
type Mutate func(r *Resource) (eventName string, eventData any, err error)

// Store is the single owner of device-model resource state. All reads go
// through RLock ("protected by a single writer / many readers
// lock"); all writes go through Modify, Insert or Remove, which take the
// full write lock.
type Store struct {
	mu        sync.RWMutex
	resources map[OID]*Resource
	rolePaths map[string]OID
	children  map[OID][]OID // owner oid -> ordered child oids, insertion order
	hub       *Hub
}

func NewStore(hub *Hub) *Store {
	return &Store{
		resources: make(map[OID]*Resource),
		rolePaths: make(map[string]OID),
		children:  make(map[OID][]OID),
		hub:       hub,
	}
}

func (s *Store) rolePath(r *Resource) string {
	if r.Owner == nil {
		return r.Role
	}
	parent, ok := s.resources[*r.Owner]
	if !ok {
		return r.Role
	}
	return s.rolePath(parent) + "/" + r.Role
}

// regenerateMembers recomputes the Members list of the block owning oid,
// deriving it from the children index and each child's own fields rather
// than trusting any caller-supplied Members slice — "never let
// the descriptor be the source of truth for a resource's own fields".
func (s *Store) regenerateMembers(oid OID) {
	block, ok := s.resources[oid]
	if !ok {
		return
	}
	childIDs := s.children[oid]
	members := make([]BlockMemberDescriptor, 0, len(childIDs))
	for _, cid := range childIDs {
		if child, ok := s.resources[cid]; ok {
			members = append(members, child.memberDescriptor())
		}
	}
	block.Members = members
}

// Insert adds a resource built and owned by the embedder (startup
// population, or dynamic creation of monitors/workers). It
// is not routed through Modify: there is no prior state to roll back to and
// no ValueChanged notification is implied by a resource coming into
// existence.
func (s *Store) Insert(r *Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[r.OID]; exists {
		return fmt.Errorf("oid %d already in use: %w", r.OID, ncperrors.ErrConflict)
	}
	if r.Owner != nil {
		if _, ok := s.resources[*r.Owner]; !ok {
			return fmt.Errorf("owner oid %d: %w", *r.Owner, ncperrors.ErrNotFound)
		}
		for _, cid := range s.children[*r.Owner] {
			if sibling := s.resources[cid]; sibling != nil && sibling.Role == r.Role {
				return fmt.Errorf("role %q already in use under oid %d: %w", r.Role, *r.Owner, ncperrors.ErrConflict)
			}
		}
	}

	stored := r.Clone()
	s.resources[stored.OID] = stored
	if stored.Owner != nil {
		s.children[*stored.Owner] = append(s.children[*stored.Owner], stored.OID)
		s.regenerateMembers(*stored.Owner)
	}
	s.rolePaths[s.rolePath(stored)] = stored.OID
	return nil
}

// Remove deletes oid and, recursively, everything it owns. Removing the
// root block is rejected.
func (s *Store) Remove(oid OID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(oid)
}

func (s *Store) removeLocked(oid OID) error {
	r, ok := s.resources[oid]
	if !ok {
		return fmt.Errorf("oid %d: %w", oid, ncperrors.ErrNotFound)
	}
	if r.Owner == nil {
		return fmt.Errorf("cannot remove the root block: %w", ncperrors.ErrInvalidRequest)
	}

	for _, cid := range append([]OID(nil), s.children[oid]...) {
		if err := s.removeLocked(cid); err != nil {
			return err
		}
	}

	owner := *r.Owner
	delete(s.resources, oid)
	delete(s.rolePaths, s.rolePath(r))
	delete(s.children, oid)
	siblings := s.children[owner]
	for i, cid := range siblings {
		if cid == oid {
			s.children[owner] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	s.regenerateMembers(owner)
	return nil
}

// Get returns a defensive copy of the resource at oid.
func (s *Store) Get(oid OID) (*Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[oid]
	if !ok {
		return nil, fmt.Errorf("oid %d: %w", oid, ncperrors.ErrNotFound)
	}
	return r.Clone(), nil
}

// GetByRolePath resolves a "/"-joined role path (root's own role included)
// to an oid.
func (s *Store) GetByRolePath(rolePath string) (OID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	oid, ok := s.rolePaths[rolePath]
	if !ok {
		return 0, fmt.Errorf("role path %q: %w", rolePath, ncperrors.ErrParameterError)
	}
	return oid, nil
}

// Children returns the ordered oids owned by oid (empty for non-blocks or
// blocks with no members).
func (s *Store) Children(oid OID) []OID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]OID(nil), s.children[oid]...)
}

// Modify is the store's single mutation path (
// modify(oid, mutator, change_event)): it takes the write lock, runs
// mutate against a clone, re-derives the block-members invariant for the
// target and its owner if the mutation committed, and finally publishes the
// mutator's notification. A failing mutate leaves stored state untouched
// and emits no notification.
func (s *Store) Modify(oid OID, mutate Mutate) (*Resource, error) {
	s.mu.Lock()
	orig, ok := s.resources[oid]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("oid %d: %w", oid, ncperrors.ErrNotFound)
	}

	working := orig.Clone()
	eventName, eventData, err := mutate(working)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.resources[oid] = working
	if classregistry.IsBlock(working.ClassID) {
		s.regenerateMembers(oid)
	}
	if working.Owner != nil {
		s.regenerateMembers(*working.Owner)
	}
	result := working.Clone()
	s.mu.Unlock()

	if eventName != "" {
		s.hub.Publish(ChangeEvent{OID: oid, Name: eventName, Data: eventData})
	}
	return result, nil
}

// RolePathString joins role segments the same way the store's internal
// index does, for callers building paths from a FindMembersByPath-style
// argument list.
func RolePathString(segments []string) string {
	return strings.Join(segments, "/")
}

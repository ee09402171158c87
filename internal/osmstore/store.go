// Package osmstore holds raw OSM topology — nodes, ways and relations — and
// synthesizes projected geometries from it on demand. See spec §4.1.
package osmstore

import (
	"sync"

	"github.com/tilemaker-go/tilemaker/internal/geo"
	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// NodeID and WayID are the OSM identifier spaces. A single build-wide
// integer width (64-bit) is used; spec.md allows a 32-bit build variant but
// this implementation always takes the larger, simpler width.
type NodeID = int64
type WayID = int64

// SyntheticIDBase is the top of the WayID space; relation ids are allocated
// descending from here so they can never collide with a real way id.
const SyntheticIDBase = WayID(1<<63 - 1)

// NodeStore is an append-only, overwrite-on-reinsert mapping from NodeID to
// projected coordinates. The reference tilemaker design backs this with an
// external-memory block cache for inputs with hundreds of millions of
// nodes; this implementation uses a plain map guarded by a mutex, which is
// sufficient for the inputs this module is tested against and keeps the
// store simple. Swapping in a block-cached store later only touches this
// file.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[NodeID]geo.LatpLon
}

// NewNodeStore creates an empty NodeStore.
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[NodeID]geo.LatpLon)}
}

// Insert stores coord for id, overwriting any previous value for the same
// id (append-only from the caller's perspective: ids normally arrive in
// non-decreasing order from a single ingest thread).
func (s *NodeStore) Insert(id NodeID, coord geo.LatpLon) {
	s.mu.Lock()
	s.nodes[id] = coord
	s.mu.Unlock()
}

// At returns the coordinate for id, or NodeMissing if absent.
func (s *NodeStore) At(id NodeID) (geo.LatpLon, error) {
	s.mu.RLock()
	c, ok := s.nodes[id]
	s.mu.RUnlock()
	if !ok {
		return geo.LatpLon{}, &tilemakererr.NodeMissing{ID: id}
	}
	return c, nil
}

// Has reports whether id is present without fetching its value.
func (s *NodeStore) Has(id NodeID) bool {
	s.mu.RLock()
	_, ok := s.nodes[id]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of stored nodes.
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// WayStore maps WayID to its ordered member node list. Ways are never
// mutated after insertion.
type WayStore struct {
	mu   sync.RWMutex
	ways map[WayID][]NodeID
}

// NewWayStore creates an empty WayStore.
func NewWayStore() *WayStore {
	return &WayStore{ways: make(map[WayID][]NodeID)}
}

// Insert stores a copy of nodeIDs under id.
func (s *WayStore) Insert(id WayID, nodeIDs []NodeID) {
	cp := make([]NodeID, len(nodeIDs))
	copy(cp, nodeIDs)
	s.mu.Lock()
	s.ways[id] = cp
	s.mu.Unlock()
}

// At returns the member node list for id, or WayMissing if absent.
func (s *WayStore) At(id WayID) ([]NodeID, error) {
	s.mu.RLock()
	w, ok := s.ways[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &tilemakererr.WayMissing{ID: id}
	}
	return w, nil
}

// Has reports whether id is present.
func (s *WayStore) Has(id WayID) bool {
	s.mu.RLock()
	_, ok := s.ways[id]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of stored ways.
func (s *WayStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ways)
}

// Relation is the outer/inner way membership of one multipolygon relation.
type Relation struct {
	Outer []WayID
	Inner []WayID
}

// RelationStore maps a synthetic id (drawn from the top of the WayID space,
// descending) to its outer/inner way membership.
type RelationStore struct {
	mu        sync.RWMutex
	relations map[WayID]Relation
	nextID    WayID
}

// NewRelationStore creates an empty RelationStore.
func NewRelationStore() *RelationStore {
	return &RelationStore{relations: make(map[WayID]Relation), nextID: SyntheticIDBase}
}

// NextSyntheticID returns the next unused synthetic id, descending from
// SyntheticIDBase, and reserves it.
func (s *RelationStore) NextSyntheticID() WayID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID--
	return id
}

// Insert records outer/inner way membership for a synthetic relation id.
func (s *RelationStore) Insert(synID WayID, outer, inner []WayID) {
	o := append([]WayID(nil), outer...)
	i := append([]WayID(nil), inner...)
	s.mu.Lock()
	s.relations[synID] = Relation{Outer: o, Inner: i}
	s.mu.Unlock()
}

// At returns the relation stored under synID.
func (s *RelationStore) At(synID WayID) (Relation, bool) {
	s.mu.RLock()
	r, ok := s.relations[synID]
	s.mu.RUnlock()
	return r, ok
}

// Len returns the number of stored relations.
func (s *RelationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relations)
}

// Store bundles the three sub-stores tilemaker.cpp calls "OSMStore": the
// single process-wide collaborator populated during ingest and read only
// during geometry reconstruction and tile output.
type Store struct {
	Nodes     *NodeStore
	Ways      *WayStore
	Relations *RelationStore
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		Nodes:     NewNodeStore(),
		Ways:      NewWayStore(),
		Relations: NewRelationStore(),
	}
}

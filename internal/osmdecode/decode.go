// Package osmdecode narrows github.com/qedus/osmpbf's decoder to the
// three-callback shape the two-pass OSM ingest policy needs (spec §4.2):
// a first pass over relations (to record which ways are multipolygon
// members) and a second pass emitting nodes, ways and relations.
package osmdecode

import (
	"io"
	"os"
	"runtime"

	"github.com/qedus/osmpbf"

	"github.com/tilemaker-go/tilemaker/internal/tilemakererr"
)

// Node is the subset of osmpbf.Node this package exposes to callers.
type Node struct {
	ID       int64
	Lat, Lon float64
	Tags     map[string]string
}

// Way is the subset of osmpbf.Way this package exposes to callers.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// RelationMember mirrors osmpbf.Member, narrowed to way/node membership.
type RelationMember struct {
	ID   int64
	Type string // "node", "way", "relation"
	Role string
}

// Relation is the subset of osmpbf.Relation this package exposes.
type Relation struct {
	ID      int64
	Members []RelationMember
	Tags    map[string]string
}

// Callbacks receives decoded entities. Any of the three may be nil if the
// caller doesn't care about that entity kind for this pass.
type Callbacks struct {
	Node     func(Node) error
	Way      func(Way) error
	Relation func(Relation) error
}

// DecodeFile opens path and streams every entity in it to cb, in whatever
// order the PBF happens to store them (nodes, then ways, then relations,
// per the PBF spec's block ordering — not guaranteed here, callers that
// need two-pass semantics call DecodeFile twice with different callback
// sets, rewinding the file each time).
func DecodeFile(path string, cb Callbacks) error {
	f, err := os.Open(path)
	if err != nil {
		return &tilemakererr.InputError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, cb)
}

// Decode streams every entity from r to cb.
func Decode(r io.Reader, cb Callbacks) error {
	decoder := osmpbf.NewDecoder(r)
	if err := decoder.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return &tilemakererr.InputError{Path: "<stream>", Err: err}
	}

	for {
		obj, err := decoder.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &tilemakererr.InputError{Path: "<stream>", Err: err}
		}

		switch v := obj.(type) {
		case *osmpbf.Node:
			if cb.Node == nil {
				continue
			}
			if err := cb.Node(Node{ID: v.ID, Lat: v.Lat, Lon: v.Lon, Tags: v.Tags}); err != nil {
				return err
			}

		case *osmpbf.Way:
			if cb.Way == nil {
				continue
			}
			if err := cb.Way(Way{ID: v.ID, NodeIDs: v.NodeIDs, Tags: v.Tags}); err != nil {
				return err
			}

		case *osmpbf.Relation:
			if cb.Relation == nil {
				continue
			}
			members := make([]RelationMember, len(v.Members))
			for i, m := range v.Members {
				members[i] = RelationMember{ID: m.ID, Type: memberTypeName(m.Type), Role: m.Role}
			}
			if err := cb.Relation(Relation{ID: v.ID, Members: members, Tags: v.Tags}); err != nil {
				return err
			}
		}
	}
}

func memberTypeName(t osmpbf.MemberType) string {
	switch t {
	case osmpbf.NodeType:
		return "node"
	case osmpbf.WayType:
		return "way"
	case osmpbf.RelationType:
		return "relation"
	default:
		return "unknown"
	}
}

package nodetable

import "github.com/fieldrelay/mesh"

// Neighbors is the concrete NodeTable used by the mesh runtime: a Table of
// mesh.NodeInfo keyed by NodeInfo.ID.
type Neighbors struct {
	*Table[mesh.NodeInfo]
}

// NewNeighbors builds an empty neighbor table.
func NewNeighbors() *Neighbors {
	return &Neighbors{Table: New[mesh.NodeInfo](nil)}
}

// UpsertInfo records or replaces a neighbor's NodeInfo.
func (n *Neighbors) UpsertInfo(info mesh.NodeInfo) {
	n.Upsert(info.ID, info)
}

// AvailableForRelay returns fresh neighbors flagged as available relay
// targets, the candidate pool the scorer ranks over.
func (n *Neighbors) AvailableForRelay() []mesh.NodeInfo {
	fresh := n.AllFresh()
	out := make([]mesh.NodeInfo, 0, len(fresh))
	for _, info := range fresh {
		if info.AvailableForRelay {
			out = append(out, info)
		}
	}
	return out
}

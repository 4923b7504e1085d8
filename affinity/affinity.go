// Package affinity answers which node owns a key. The MVCC store only asks
// the three questions below; discovery, membership and rebalancing live in
// whatever system produces the node list.
package affinity

import (
	"sort"

	"github.com/slukyano/ignite/internal/util"
)

// Topology classifies keys against the local node.
type Topology interface {
	// Primary reports whether the local node is the primary owner of key.
	Primary(key string) bool
	// Backup reports whether the local node holds a backup copy of key.
	Backup(key string) bool
	// Partition returns the partition the key maps to.
	Partition(key string) int
}

const defaultPartitions = 1024

// Local is a single-node topology: the local node is primary for everything.
type Local struct {
	Partitions int // 0 => 1024
}

var _ Topology = Local{}

func (l Local) Primary(string) bool { return true }
func (l Local) Backup(string) bool  { return false }

func (l Local) Partition(key string) int {
	n := l.Partitions
	if n <= 0 {
		n = defaultPartitions
	}
	return int(util.Hash64(key) % uint64(n))
}

// Rendezvous maps keys to a fixed node list with highest-random-weight
// hashing: the node scoring highest for a key is primary, the next Backups
// nodes hold backups. Every node computes the same ranking independently,
// so no coordination is needed.
type Rendezvous struct {
	// LocalNode is this node's id; must appear in Nodes.
	LocalNode string
	// Nodes is the full node list. Order does not matter.
	Nodes []string
	// Backups is the number of backup copies per key (0 => none).
	Backups int
	// Partitions sizes the partition space (0 => 1024).
	Partitions int
}

var _ Topology = Rendezvous{}

func (r Rendezvous) Primary(key string) bool {
	owners := r.rank(key, 1)
	return len(owners) > 0 && owners[0] == r.LocalNode
}

func (r Rendezvous) Backup(key string) bool {
	if r.Backups <= 0 {
		return false
	}
	owners := r.rank(key, 1+r.Backups)
	for i := 1; i < len(owners); i++ {
		if owners[i] == r.LocalNode {
			return true
		}
	}
	return false
}

func (r Rendezvous) Partition(key string) int {
	n := r.Partitions
	if n <= 0 {
		n = defaultPartitions
	}
	return int(util.Hash64(key) % uint64(n))
}

// rank returns the top n nodes for key by rendezvous score.
func (r Rendezvous) rank(key string, n int) []string {
	if len(r.Nodes) == 0 {
		return nil
	}
	type scored struct {
		node  string
		score uint64
	}
	ranked := make([]scored, 0, len(r.Nodes))
	for _, node := range r.Nodes {
		ranked = append(ranked, scored{node: node, score: util.Hash64(node + "/" + key)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].node < ranked[j].node // stable on (unlikely) score ties
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].node
	}
	return out
}

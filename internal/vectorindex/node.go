package vectorindex

// node is a single graph element stored in the arena. Neighbor references are
// arena slot indices, never external IDs, so traversal needs no map lookups.
type node struct {
	id     string
	level  int
	vector []float32

	// int8 codes and per-vector scale, populated only when quantization is
	// enabled.
	codes []int8
	scale float32

	// neighbors[l] is the adjacency list at layer l, 0 <= l <= level.
	neighbors [][]uint32
}

func newNode(id string, level int, vector []float32) *node {
	nb := make([][]uint32, level+1)
	return &node{
		id:        id,
		level:     level,
		vector:    vector,
		neighbors: nb,
	}
}

// removeNeighbor deletes slot from the adjacency list at the given layer.
// Adjacency lists are unordered sets, so swap-remove is fine.
func (n *node) removeNeighbor(level int, slot uint32) {
	if level > n.level {
		return
	}
	list := n.neighbors[level]
	for i, s := range list {
		if s == slot {
			list[i] = list[len(list)-1]
			n.neighbors[level] = list[:len(list)-1]
			return
		}
	}
}

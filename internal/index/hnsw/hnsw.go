// Package hnsw implements a Hierarchical Navigable Small World proximity
// graph for approximate nearest-neighbor search.
//
// The graph is layered: layer 0 holds every element, higher layers hold
// exponentially fewer and act as express lanes. Search descends greedily from
// the entry point through the sparse layers and runs a beam search of width
// ef at layer 0. Insertion is not safe for concurrent use; reads are safe to
// run in parallel with each other (but not with an insert — callers serialize
// writes, see the index package).
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/semdex-io/semdex/internal/vecmath"
)

// DistanceFunc computes the distance between two vectors.
type DistanceFunc func(a, b []float32) (float32, error)

// Node is a single graph element. Fields are exported for gob serialization.
type Node struct {
	Connections [][]uint32 // neighbor ids per layer, index 0 = base layer
	Vector      []float32
	Layer       int
	ID          uint32
}

// Options configure graph construction.
type Options struct {
	// M is the number of connections established for every new element.
	// The usable range is roughly 5-48; higher values suit high-dimensional
	// data at the cost of memory and build time.
	M int

	// EFConstruction is the beam width used while linking a new element.
	// Larger values build a better graph, slower.
	EFConstruction int

	// Heuristic selects the neighbor-diversity rule from the HNSW paper
	// instead of plain closest-M selection.
	Heuristic bool

	// DistanceFunc is the metric the graph is built and queried under.
	DistanceFunc DistanceFunc
}

// DefaultOptions are tuned for sentence-embedding workloads. The default
// metric assumes L2-normalized vectors, where cosine distance is 1 - dot.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	Heuristic:      true,
	DistanceFunc:   vecmath.NormalizedCosineDistance,
}

// Candidate is a search hit: a node id with its distance to the query.
type Candidate struct {
	ID       uint32
	Distance float32
}

// Graph is the HNSW structure. The zero value is not usable; construct with New.
type Graph struct {
	dimension int
	mmax      int     // max connections per element per layer
	mmax0     int     // max connections at layer 0 (2*M)
	ml        float64 // level generation factor, 1/ln(M)
	ep        uint32  // entry point id
	maxLevel  int

	nodes []*Node

	opts Options

	mutex sync.Mutex
}

// New creates an empty graph for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) *Graph {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make ml = 1/ln(1) divide by zero
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}

	return &Graph{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		opts:      opts,
	}
}

// Len returns the number of stored elements.
func (g *Graph) Len() int { return len(g.nodes) }

// Dimension returns the vector dimension the graph was created with.
func (g *Graph) Dimension() int { return g.dimension }

// Insert adds a vector and returns its assigned id. Ids are assigned densely
// from zero in insertion order. The vector is copied; callers may reuse the
// slice afterwards.
func (g *Graph) Insert(v []float32) (uint32, error) {
	if len(v) != g.dimension {
		return 0, &DimensionError{Expected: g.dimension, Actual: len(v)}
	}

	vectorCopy := make([]float32, len(v))
	copy(vectorCopy, v)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := uint32(len(g.nodes))
	layer := int(math.Floor(-math.Log(rand.Float64()) * g.ml)) //nolint:gosec // layer assignment needs no crypto rand

	node := &Node{
		ID:          id,
		Vector:      vectorCopy,
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	// First element becomes the entry point with no links.
	if len(g.nodes) == 0 {
		g.nodes = append(g.nodes, node)
		g.ep = id
		g.maxLevel = layer
		return id, nil
	}

	currObj, currDist, err := g.descendToLayer(vectorCopy, node.Layer)
	if err != nil {
		return 0, err
	}

	topCandidates := &priorityQueue{}

	// Link the new node into every layer it participates in.
	for level := min(node.Layer, g.maxLevel); level >= 0; level-- {
		if err := g.searchLayer(vectorCopy, &queueItem{node: currObj, distance: currDist}, topCandidates, g.opts.EFConstruction, level); err != nil {
			return 0, err
		}

		if g.opts.Heuristic {
			if err := g.selectNeighboursHeuristic(topCandidates, g.mmax, false); err != nil {
				return 0, err
			}
		} else {
			selectNeighboursSimple(topCandidates, g.mmax)
		}

		node.Connections[level] = make([]uint32, topCandidates.Len())
		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(*queueItem)
			node.Connections[level][i] = candidate.node
		}
	}

	g.nodes = append(g.nodes, node)

	// Back-link neighbors, pruning any that exceed their degree bound.
	for level := min(node.Layer, g.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			if err := g.link(neighbour, node.ID, level); err != nil {
				return 0, err
			}
		}
	}

	if node.Layer > g.maxLevel {
		g.ep = node.ID
		g.maxLevel = node.Layer
	}

	return id, nil
}

// SearchKNN returns up to k nearest neighbors of q, closest first. efSearch
// widens the base-layer beam; values below k are raised to k. An empty graph
// yields an empty result.
func (g *Graph) SearchKNN(q []float32, k, efSearch int) ([]Candidate, error) {
	if len(q) != g.dimension {
		return nil, &DimensionError{Expected: g.dimension, Actual: len(q)}
	}
	if len(g.nodes) == 0 || k <= 0 {
		return nil, nil
	}
	if efSearch < k {
		efSearch = k
	}

	ep, epDist, err := g.descendToLayer(q, 0)
	if err != nil {
		return nil, err
	}

	topCandidates := &priorityQueue{max: true}
	heap.Init(topCandidates)

	if err := g.searchLayer(q, &queueItem{node: ep, distance: epDist}, topCandidates, efSearch, 0); err != nil {
		return nil, err
	}

	for topCandidates.Len() > k {
		_ = heap.Pop(topCandidates)
	}

	// Pop from the max-heap into a slice back to front for ascending order.
	out := make([]Candidate, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queueItem)
		out[i] = Candidate{ID: item.node, Distance: item.distance}
	}

	return out, nil
}

// BruteSearch scans every element. It exists to measure recall against
// SearchKNN in tests and tooling.
func (g *Graph) BruteSearch(q []float32, k int) ([]Candidate, error) {
	if len(q) != g.dimension {
		return nil, &DimensionError{Expected: g.dimension, Actual: len(q)}
	}

	topCandidates := &priorityQueue{max: true}
	heap.Init(topCandidates)

	for _, node := range g.nodes {
		dist, err := g.opts.DistanceFunc(q, node.Vector)
		if err != nil {
			return nil, err
		}

		if topCandidates.Len() < k {
			heap.Push(topCandidates, &queueItem{node: node.ID, distance: dist})
			continue
		}
		if dist < topCandidates.top().distance {
			heap.Pop(topCandidates)
			heap.Push(topCandidates, &queueItem{node: node.ID, distance: dist})
		}
	}

	out := make([]Candidate, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queueItem)
		out[i] = Candidate{ID: item.node, Distance: item.distance}
	}

	return out, nil
}

// Vector returns the stored vector for id. The returned slice is the graph's
// own copy and must not be mutated.
func (g *Graph) Vector(id uint32) ([]float32, bool) {
	if int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id].Vector, true
}

// descendToLayer walks greedily from the entry point down to targetLayer+1
// and returns the best starting node for a search at targetLayer.
func (g *Graph) descendToLayer(q []float32, targetLayer int) (uint32, float32, error) {
	currObj := g.nodes[g.ep]

	currDist, err := g.opts.DistanceFunc(currObj.Vector, q)
	if err != nil {
		return 0, 0, err
	}

	for level := g.maxLevel; level > targetLayer; level-- {
		changed := true
		for changed {
			changed = false

			if level >= len(currObj.Connections) {
				continue
			}
			for _, id := range currObj.Connections[level] {
				next := g.nodes[id]

				nextDist, err := g.opts.DistanceFunc(next.Vector, q)
				if err != nil {
					return 0, 0, err
				}
				if nextDist < currDist {
					currObj = next
					currDist = nextDist
					changed = true
				}
			}
		}
	}

	return currObj.ID, currDist, nil
}

// searchLayer runs a beam search of width ef at the given level, leaving the
// results in topCandidates as a max-heap.
func (g *Graph) searchLayer(q []float32, ep *queueItem, topCandidates *priorityQueue, ef, level int) error {
	var visited bitset.BitSet
	visited.Set(uint(ep.node))

	candidates := &priorityQueue{}
	heap.Init(candidates)
	heap.Push(candidates, &queueItem{node: ep.node, distance: ep.distance})

	topCandidates.max = true
	heap.Init(topCandidates)
	heap.Push(topCandidates, &queueItem{node: ep.node, distance: ep.distance})

	for candidates.Len() > 0 {
		lowerBound := topCandidates.top().distance

		candidate, _ := heap.Pop(candidates).(*queueItem)
		if candidate.distance > lowerBound {
			break
		}

		node := g.nodes[candidate.node]
		if level >= len(node.Connections) {
			continue
		}

		for _, n := range node.Connections[level] {
			if visited.Test(uint(n)) {
				continue
			}
			visited.Set(uint(n))

			distance, err := g.opts.DistanceFunc(q, g.nodes[n].Vector)
			if err != nil {
				return err
			}

			if topCandidates.Len() < ef {
				item := &queueItem{node: n, distance: distance}
				heap.Push(topCandidates, item)
				heap.Push(candidates, &queueItem{node: n, distance: distance})
			} else if topCandidates.top().distance > distance {
				heap.Pop(topCandidates)
				heap.Push(topCandidates, &queueItem{node: n, distance: distance})
				heap.Push(candidates, &queueItem{node: n, distance: distance})
			}
		}
	}

	return nil
}

// link records a connection from first to second at the given level and
// re-selects first's neighbor set when it exceeds its degree bound.
func (g *Graph) link(first, second uint32, level int) error {
	maxConnections := g.mmax
	if level == 0 {
		maxConnections = g.mmax0
	}

	node := g.nodes[first]
	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return nil
	}

	// Queue polarity follows the selector: the heuristic consumes
	// closest-first, the simple selector evicts farthest-first.
	topCandidates := &priorityQueue{max: !g.opts.Heuristic}
	heap.Init(topCandidates)

	for _, id := range node.Connections[level] {
		distance, err := g.opts.DistanceFunc(node.Vector, g.nodes[id].Vector)
		if err != nil {
			return err
		}
		heap.Push(topCandidates, &queueItem{node: id, distance: distance})
	}

	if g.opts.Heuristic {
		if err := g.selectNeighboursHeuristic(topCandidates, maxConnections, true); err != nil {
			return err
		}
	} else {
		selectNeighboursSimple(topCandidates, maxConnections)
	}

	node.Connections[level] = make([]uint32, maxConnections)
	for i := maxConnections - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*queueItem)
		node.Connections[level][i] = item.node
	}

	return nil
}

// selectNeighboursSimple trims a max-heap to the m closest candidates by
// evicting the farthest.
func selectNeighboursSimple(topCandidates *priorityQueue, m int) {
	for topCandidates.Len() > m {
		_ = heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic keeps candidates that are closer to the query
// than to any already-kept neighbor, which preserves links across sparse
// regions instead of clustering all M edges on one side. Rejects backfill
// the set when fewer than M candidates survive.
func (g *Graph) selectNeighboursHeuristic(topCandidates *priorityQueue, m int, minFirst bool) error {
	if topCandidates.Len() < m {
		return nil
	}

	working := topCandidates
	if !minFirst {
		// Re-order into a min-heap so we consider closest candidates first.
		working = &priorityQueue{}
		heap.Init(working)
		for topCandidates.Len() > 0 {
			item, _ := heap.Pop(topCandidates).(*queueItem)
			heap.Push(working, item)
		}
	}

	rejected := &priorityQueue{max: minFirst}
	heap.Init(rejected)

	kept := make([]*queueItem, 0, m)

	for working.Len() > 0 && len(kept) < m {
		item, _ := heap.Pop(working).(*queueItem)

		diverse := true
		for _, sel := range kept {
			distance, err := g.opts.DistanceFunc(g.nodes[sel.node].Vector, g.nodes[item.node].Vector)
			if err != nil {
				return err
			}
			if distance < item.distance {
				diverse = false
				break
			}
		}

		if diverse {
			kept = append(kept, item)
		} else {
			heap.Push(rejected, item)
		}
	}

	for len(kept) < m && rejected.Len() > 0 {
		item, _ := heap.Pop(rejected).(*queueItem)
		kept = append(kept, item)
	}

	for _, item := range kept {
		heap.Push(topCandidates, item)
	}

	return nil
}

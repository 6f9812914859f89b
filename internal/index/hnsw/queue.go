package hnsw

import "container/heap"

// Compile time check to ensure priorityQueue satisfies the heap interface.
var _ heap.Interface = (*priorityQueue)(nil)

// queueItem is a graph node paired with its distance to some pivot.
type queueItem struct {
	node     uint32
	distance float32
	index    int
}

// priorityQueue holds queueItems ordered by distance. With max set it behaves
// as a max-heap (farthest on top), otherwise as a min-heap (closest on top).
// Search keeps the candidate frontier in a min-heap and the running result set
// in a max-heap so the worst kept result is always O(1) away.
type priorityQueue struct {
	max   bool
	items []*queueItem
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.max {
		return pq.items[i].distance > pq.items[j].distance
	}
	return pq.items[i].distance < pq.items[j].distance
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index, pq.items[j].index = i, j
}

func (pq *priorityQueue) Push(x any) {
	item, _ := x.(*queueItem)
	item.index = len(pq.items)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	if n == 0 {
		return nil
	}
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	pq.items = old[:n-1]
	return item
}

// top returns the root of the heap without removing it.
func (pq *priorityQueue) top() *queueItem {
	return pq.items[0]
}

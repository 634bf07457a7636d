package heavykeeper

import "container/heap"

// minHeap holds at most k items with the lightest on top.
type minHeap struct {
	k     int
	nodes []Item
}

func (h *minHeap) Len() int           { return len(h.nodes) }
func (h *minHeap) Less(i, j int) bool { return h.nodes[i].Count < h.nodes[j].Count }
func (h *minHeap) Swap(i, j int)      { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }
func (h *minHeap) Push(x any)         { h.nodes = append(h.nodes, x.(Item)) }

func (h *minHeap) Pop() any {
	n := len(h.nodes)
	x := h.nodes[n-1]
	h.nodes = h.nodes[:n-1]
	return x
}

func (h *minHeap) init() { heap.Init(h) }

// add inserts item, replacing the lightest item when full. It returns the
// replaced item and whether item was inserted.
func (h *minHeap) add(item Item) (Item, bool) {
	if h.k <= 0 {
		return Item{}, false
	}
	if len(h.nodes) < h.k {
		heap.Push(h, item)
		return Item{}, true
	}
	if item.Count <= h.nodes[0].Count {
		return Item{}, false
	}
	out := h.nodes[0]
	h.nodes[0] = item
	heap.Fix(h, 0)
	return out, true
}

func (h *minHeap) find(key string) int {
	for i := range h.nodes {
		if h.nodes[i].Key == key {
			return i
		}
	}
	return -1
}

func (h *minHeap) fix(idx int, count uint32) {
	h.nodes[idx].Count = count
	heap.Fix(h, idx)
}

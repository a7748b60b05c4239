package crawler

import (
	"container/heap"
	"sync"

	"crawlops/pkg/models"
)

// frontierItem wraps a FrontierEntry for heap ordering
type frontierItem struct {
	entry models.FrontierEntry
	seq   int // Insertion sequence, breaks depth ties
	index int // Heap index (required by heap interface)
}

// frontierHeap implements heap.Interface ordered by (depth, seq), which
// yields exact breadth-first order: all of depth N before any of depth N+1,
// and within a depth, discovery order.
type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].entry.Depth != h[j].entry.Depth {
		return h[i].entry.Depth < h[j].entry.Depth
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontierHeap) Push(x any) {
	n := len(*h)
	item := x.(*frontierItem)
	item.index = n
	*h = append(*h, item)
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Frontier is the BFS work queue of one crawl run. Safe for concurrent use
// so status pollers can read its length while the crawl loop drains it.
type Frontier struct {
	heap    frontierHeap
	mu      sync.Mutex
	nextSeq int
}

// NewFrontier creates an empty Frontier
func NewFrontier() *Frontier {
	f := &Frontier{}
	heap.Init(&f.heap)
	return f
}

// Add enqueues a URL at the given depth
func (f *Frontier) Add(entry models.FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	heap.Push(&f.heap, &frontierItem{entry: entry, seq: f.nextSeq})
	f.nextSeq++
}

// Next removes and returns the next entry in BFS order.
// Returns false when the frontier is empty.
func (f *Frontier) Next() (models.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.heap) == 0 {
		return models.FrontierEntry{}, false
	}
	item := heap.Pop(&f.heap).(*frontierItem)
	return item.entry, true
}

// Len returns the current number of queued entries
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}

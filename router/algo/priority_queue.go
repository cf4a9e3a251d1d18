package algo

// Item is an entry of PriorityQueue.
type Item struct {
	Value    int     // node index in the search graph
	Priority float64 // f-score, lower is better
	Index    int     // heap index, maintained by the heap.Interface methods
}

// PriorityQueue implements heap.Interface over *Item ordered by ascending
// Priority. Index is kept in sync so callers can heap.Fix an item after
// lowering its priority.
type PriorityQueue []*Item

func (pq PriorityQueue) Len() int {
	return len(pq)
}

func (pq PriorityQueue) Less(i, j int) bool {
	return pq[i].Priority < pq[j].Priority
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x any) {
	item := x.(*Item)
	item.Index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // let the item be collected
	*pq = old[:n-1]
	return item
}

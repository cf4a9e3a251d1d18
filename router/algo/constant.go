package algo

import "errors"

var (
	// edge weights must stay non-negative or the search will not terminate
	ErrNegativeWeight = errors.New("negative edge weight")
	// setting a weight on a (from,to) pair that was never initialized
	ErrNoEdge = errors.New("no such edge in graph")
)

package engine

// PathTracker records the chain of nodes on the current recursion path.
//
// It serves two walks:
//   - the upward notification cascade, where nodes are link keys and a key
//     recurring on its own path means the reference graph has a cycle
//   - input normalization, where nodes are object identities and a repeat
//     means the mutation data contains itself
//
// Unlike a visited set, a node leaves the tracker when the walk returns from
// it, so diamonds (two paths reaching the same node) are not cycles.
type PathTracker[T comparable] struct {
	onPath map[T]int
	labels []string
}

// NewPathTracker creates an empty tracker.
func NewPathTracker[T comparable]() *PathTracker[T] {
	return &PathTracker[T]{onPath: make(map[T]int)}
}

// WouldCycle reports whether node is already on the current path.
func (p *PathTracker[T]) WouldCycle(node T) bool {
	return p.onPath[node] > 0
}

// Push appends node to the path under a printable label.
func (p *PathTracker[T]) Push(node T, label string) {
	p.onPath[node]++
	p.labels = append(p.labels, label)
}

// Pop removes node from the end of the path.
func (p *PathTracker[T]) Pop(node T) {
	if n := p.onPath[node]; n <= 1 {
		delete(p.onPath, node)
	} else {
		p.onPath[node] = n - 1
	}
	if len(p.labels) > 0 {
		p.labels = p.labels[:len(p.labels)-1]
	}
}

// Depth returns the current path length.
func (p *PathTracker[T]) Depth() int {
	return len(p.labels)
}

// Path returns a copy of the labels on the current path, outermost first.
func (p *PathTracker[T]) Path() []string {
	return append([]string(nil), p.labels...)
}

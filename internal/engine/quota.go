package engine

// DepthBudget bounds notification cascades across re-entrant mutations.
//
// A subscriber callback may mutate the cache, which starts a new cascade
// while the outer one is still delivering. Each cascade's local path starts
// empty, so the budget carries the depth already spent by every enclosing
// delivery.
//
// CRITICAL DISTINCTION from PathTracker:
//   - PathTracker: catches a key recurring on one cascade path (A -> B -> A)
//   - DepthBudget: catches runaway chains, including ping-pong between
//     callbacks that each mutate a different key
//
// Together they guarantee every cascade terminates.
type DepthBudget struct {
	max  int // maximum combined path length
	base int // depth spent by enclosing deliveries
}

// NewDepthBudget creates a budget with the given limit.
func NewDepthBudget(max int) *DepthBudget {
	return &DepthBudget{max: max}
}

// Exceeded reports whether a local path of pathLen nodes would overrun the
// budget.
func (b *DepthBudget) Exceeded(pathLen int) bool {
	return b.base+pathLen > b.max
}

// Spend charges pathLen against the budget for the duration of a delivery.
// The returned function refunds it.
func (b *DepthBudget) Spend(pathLen int) (refund func()) {
	b.base += pathLen
	return func() { b.base -= pathLen }
}

// Used returns the depth spent by enclosing deliveries.
func (b *DepthBudget) Used() int {
	return b.base
}

// Max returns the configured limit.
func (b *DepthBudget) Max() int {
	return b.max
}

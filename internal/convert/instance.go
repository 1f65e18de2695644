package convert

// InstanceTracker numbers the repeated records of an encounter within one
// file pass. It is not safe for concurrent use.
type InstanceTracker struct {
	counts map[string]int
}

// NewInstanceTracker returns an empty tracker.
func NewInstanceTracker() *InstanceTracker {
	return &InstanceTracker{counts: make(map[string]int)}
}

// Next returns 1 the first time id is seen and one more on every later call.
func (t *InstanceTracker) Next(id string) int {
	t.counts[id]++
	return t.counts[id]
}

// Seen returns the current count of id without changing it.
func (t *InstanceTracker) Seen(id string) int {
	return t.counts[id]
}

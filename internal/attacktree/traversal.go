package attacktree

import (
	"cmp"
	"slices"
	"strconv"
)

// SkipReason says why Build produced no node.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	// SkipCycle: the id is already on the ancestor path.
	SkipCycle
	// SkipNotFound: the knowledge store has no record for the id.
	SkipNotFound
	// SkipDepthLimit: the ancestor path reached Options.MaxDepth.
	SkipDepthLimit
	// SkipCancelled: the context was done before expansion.
	SkipCancelled
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "none"
	case SkipCycle:
		return "cycle"
	case SkipNotFound:
		return "not_found"
	case SkipDepthLimit:
		return "depth_limit"
	case SkipCancelled:
		return "cancelled"
	}
	return "SkipReason(" + strconv.Itoa(int(r)) + ")"
}

// MarshalText renders the reason by name in JSON output.
func (r SkipReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Result is the outcome of building one pattern: a node, or the reason
// the branch was pruned.
type Result struct {
	Node    *Node
	Skipped SkipReason
}

// OK reports whether a node was built.
func (r Result) OK() bool { return r.Skipped == NotSkipped && r.Node != nil }

func skipped(reason SkipReason) Result { return Result{Skipped: reason} }

// SkipEvent records one pruned branch.
type SkipEvent struct {
	ID     string     `json:"id"`
	Parent string     `json:"parent,omitempty"`
	Reason SkipReason `json:"reason"`
}

// DuplicateEntry is one pattern expanded more than once.
type DuplicateEntry struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Traversal is the mutable state of one synthesis run: the ancestor path
// of the current recursion and the number of times each id has been
// expanded. It is not safe for concurrent use; each top-level run owns
// its own.
type Traversal struct {
	// enclosing are ancestors outside the built subtree, such as a
	// grafted ChildOf chain. They block cycles but do not count as depth.
	enclosing []string
	path      []string
	counts    map[string]int
	skips     []SkipEvent
}

// NewTraversal returns an empty Traversal.
func NewTraversal() *Traversal {
	return &Traversal{counts: make(map[string]int)}
}

// Enclose records ids that will sit above the built subtree in the
// final tree, outermost first.
func (t *Traversal) Enclose(ids ...string) {
	t.enclosing = append(t.enclosing, ids...)
}

// OnPath reports whether id is an ancestor of the current position.
func (t *Traversal) OnPath(id string) bool {
	return slices.Contains(t.path, id) || slices.Contains(t.enclosing, id)
}

// Push enters id.
func (t *Traversal) Push(id string) { t.path = append(t.path, id) }

// Pop leaves the innermost id.
func (t *Traversal) Pop() {
	if len(t.path) > 0 {
		t.path = t.path[:len(t.path)-1]
	}
}

// Depth is the length of the ancestor path.
func (t *Traversal) Depth() int { return len(t.path) }

// Path returns the full ancestor path, enclosing ids included,
// outermost first.
func (t *Traversal) Path() []string { return slices.Concat(t.enclosing, t.path) }

// Count returns how many times id has been expanded.
func (t *Traversal) Count(id string) int { return t.counts[id] }

func (t *Traversal) increment(id string) int {
	t.counts[id]++
	return t.counts[id]
}

func (t *Traversal) parent() string {
	if len(t.path) == 0 {
		return ""
	}
	return t.path[len(t.path)-1]
}

func (t *Traversal) skip(id string, reason SkipReason) Result {
	t.skips = append(t.skips, SkipEvent{ID: id, Parent: t.parent(), Reason: reason})
	return skipped(reason)
}

// Skips returns the pruned branches in visitation order.
func (t *Traversal) Skips() []SkipEvent { return slices.Clone(t.skips) }

// Duplicates lists ids expanded more than once, ordered by id.
func (t *Traversal) Duplicates() []DuplicateEntry {
	var out []DuplicateEntry
	for id, n := range t.counts {
		if n > 1 {
			out = append(out, DuplicateEntry{ID: id, Count: n})
		}
	}
	slices.SortFunc(out, func(a, b DuplicateEntry) int { return compareIDs(a.ID, b.ID) })
	return out
}

// compareIDs orders numeric ids numerically, then everything else
// lexically after them.
func compareIDs(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

package domain

import "slices"

// WalkerAnchor carries the traversal state of one walker. The state is owned
// by the traversal running on behalf of the walker and is not safe for
// concurrent use.
type WalkerAnchor struct {
	Anchor

	path       []*NodeAnchor
	next       []*NodeAnchor
	ignores    []*NodeAnchor
	ignored    map[ID]struct{}
	disengaged bool
}

// Reset prepares a fresh traversal starting at start. Ignores are kept.
func (w *WalkerAnchor) Reset(start *NodeAnchor) {
	w.path = nil
	w.next = []*NodeAnchor{start}
	w.disengaged = false
}

// Enqueue appends n to the back of the queue.
func (w *WalkerAnchor) Enqueue(n *NodeAnchor) {
	w.next = append(w.next, n)
}

// Dequeue pops the front of the queue and records it in the path.
func (w *WalkerAnchor) Dequeue() (*NodeAnchor, bool) {
	if len(w.next) == 0 {
		return nil, false
	}
	n := w.next[0]
	w.next[0] = nil
	w.next = w.next[1:]
	w.path = append(w.path, n)
	return n, true
}

// Pending returns the queue length.
func (w *WalkerAnchor) Pending() int {
	return len(w.next)
}

// Next returns a copy of the queue.
func (w *WalkerAnchor) Next() []*NodeAnchor {
	return slices.Clone(w.next)
}

// Path returns a copy of the visited history.
func (w *WalkerAnchor) Path() []*NodeAnchor {
	return slices.Clone(w.path)
}

// Ignored reports whether n is in the ignore set.
func (w *WalkerAnchor) Ignored(n *NodeAnchor) bool {
	_, ok := w.ignored[n.ID]
	return ok
}

// AddIgnore adds n to the ignore set. It returns false if n was already there.
func (w *WalkerAnchor) AddIgnore(n *NodeAnchor) bool {
	if w.Ignored(n) {
		return false
	}
	if w.ignored == nil {
		w.ignored = make(map[ID]struct{})
	}
	w.ignored[n.ID] = struct{}{}
	w.ignores = append(w.ignores, n)
	return true
}

// Ignores returns the ignore set in insertion order.
func (w *WalkerAnchor) Ignores() []*NodeAnchor {
	return slices.Clone(w.ignores)
}

// ClearIgnores empties the ignore set.
func (w *WalkerAnchor) ClearIgnores() {
	w.ignores = nil
	w.ignored = nil
}

// Disengage requests the traversal to stop at its next checkpoint.
func (w *WalkerAnchor) Disengage() {
	w.disengaged = true
}

// Disengaged reports whether Disengage was called during this traversal.
func (w *WalkerAnchor) Disengaged() bool {
	return w.disengaged
}

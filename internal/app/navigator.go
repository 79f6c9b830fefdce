package app

import "sync"

// Navigator is the cursor over the questions of the active test. It never
// touches answers.
type Navigator struct {
	mu    sync.Mutex
	index int
	total func() int
}

// NewNavigator returns a cursor at index 0. total reports the current
// number of questions.
func NewNavigator(total func() int) *Navigator {
	return &Navigator{total: total}
}

// Index returns the current question index.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clampLocked()
}

// Total returns the number of questions.
func (n *Navigator) Total() int {
	return n.total()
}

// Next advances by one unless already at the last question.
func (n *Navigator) Next() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := n.clampLocked()
	if idx < n.total()-1 {
		n.index = idx + 1
	}
	return n.index
}

// Previous moves back by one unless already at the first question.
func (n *Navigator) Previous() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := n.clampLocked()
	if idx > 0 {
		n.index = idx - 1
	}
	return n.index
}

// Progress returns (index+1)/total*100, or 0 when no test is loaded.
func (n *Navigator) Progress() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return progress(n.clampLocked(), n.total())
}

// Reset moves the cursor back to the first question.
func (n *Navigator) Reset() {
	n.mu.Lock()
	n.index = 0
	n.mu.Unlock()
}

func (n *Navigator) clampLocked() int {
	total := n.total()
	if n.index >= total {
		n.index = total - 1
	}
	if n.index < 0 {
		n.index = 0
	}
	return n.index
}

func progress(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(index+1) / float64(total) * 100
}

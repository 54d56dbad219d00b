package tracking

import "sync"

// notifier wakes watchers after a projection changes. A pending wake-up is
// enough, so sends never block.
type notifier struct {
	mu       sync.Mutex
	watchers map[int]chan struct{}
	next     int
}

func (n *notifier) watch() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.watchers == nil {
		n.watchers = make(map[int]chan struct{})
	}

	n.next++
	id := n.next
	ch := make(chan struct{}, 1)
	n.watchers[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, id)
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

package arc

// node is an intrusive doubly linked list element. A node lives in exactly
// one of the engine's four lists; tier records which one.
type node[K comparable] struct {
	key  K
	tier Tier

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K]
	next *node[K]
}

// list is an MRU↔LRU list of nodes with O(1) push/remove.
type list[K comparable] struct {
	head *node[K] // MRU
	tail *node[K] // LRU
	len  int
}

// pushFront inserts n at MRU.
func (l *list[K]) pushFront(n *node[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.len++
}

// remove detaches n from the list.
func (l *list[K]) remove(n *node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.len--
}

// back returns the LRU node or nil.
func (l *list[K]) back() *node[K] { return l.tail }

// keys returns the list contents from MRU to LRU.
func (l *list[K]) keys() []K {
	out := make([]K, 0, l.len)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}

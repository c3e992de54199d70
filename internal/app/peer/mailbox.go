package peer

import "sync"

// mailbox is an unbounded FIFO of session events.
// push never blocks, so the relay reader is never held up by a busy session.
type mailbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool
	items    []func()
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.notEmpty = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) push(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = append(m.items, fn)
	m.notEmpty.Signal()
	return true
}

// pushLast enqueues fn and refuses everything after it.
func (m *mailbox) pushLast(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = append(m.items, fn)
	m.closed = true
	m.notEmpty.Signal()
	return true
}

// pop blocks until an item is available or the mailbox is closed and drained.
func (m *mailbox) pop() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.items) == 0 && !m.closed {
		m.notEmpty.Wait()
	}
	if len(m.items) == 0 {
		return nil, false
	}
	fn := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return fn, true
}

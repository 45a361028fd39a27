package websocket

import (
	"sync"
	"sync/atomic"
)

// DefaultOutboxSize is the per-connection outbound buffer.
const DefaultOutboxSize = 100

// Outbox is the outbound buffer of one registered connection. Once closed it
// accepts nothing and Done is closed, so the owning write loop can stop.
// Messages accepted before the close stay buffered until drained.
type Outbox struct {
	mu     sync.Mutex
	ch     chan []byte
	done   chan struct{}
	closed bool
}

func newOutbox(size int) *Outbox {
	return &Outbox{ch: make(chan []byte, size), done: make(chan struct{})}
}

// C yields queued messages in the order they were offered.
func (o *Outbox) C() <-chan []byte { return o.ch }

// Done is closed when the outbox has been replaced or unregistered.
func (o *Outbox) Done() <-chan struct{} { return o.done }

func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Offer queues msg without blocking. It returns false if the outbox is
// closed or full.
func (o *Outbox) Offer(msg []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.ch <- msg:
		return true
	default:
		return false
	}
}

// Drain returns the messages still buffered, oldest first, without blocking.
func (o *Outbox) Drain() [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-o.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (o *Outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.done)
	}
}

// Registry maps each locally connected user to the outbox of their most
// recent connection in this process. It is shared by every session and
// never synchronized with other processes.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]*Outbox
	outboxSize int

	replaced atomic.Int64
}

func NewRegistry(outboxSize int) *Registry {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Registry{entries: make(map[string]*Outbox), outboxSize: outboxSize}
}

// Register installs a fresh outbox for userID. A previous entry is closed so
// its session's write loop terminates.
func (r *Registry) Register(userID string) *Outbox {
	ob := newOutbox(r.outboxSize)

	r.mu.Lock()
	prev := r.entries[userID]
	r.entries[userID] = ob
	r.mu.Unlock()

	if prev != nil {
		prev.close()
		r.replaced.Add(1)
	}
	return ob
}

// Unregister removes and closes the entry for userID. It is a no-op when no
// entry exists.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	ob := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()

	if ob != nil {
		ob.close()
	}
}

// Release removes the entry for userID only if it is still ob, so a session
// that was replaced does not evict its successor. It reports whether the
// entry was removed.
func (r *Registry) Release(userID string, ob *Outbox) bool {
	r.mu.Lock()
	current := r.entries[userID] == ob
	if current {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	ob.close()
	return current
}

// TrySend offers msg to the user's local connection. False means there is
// no live local connection able to take it.
func (r *Registry) TrySend(userID string, msg []byte) bool {
	r.mu.Lock()
	ob := r.entries[userID]
	r.mu.Unlock()

	if ob == nil {
		return false
	}
	return ob.Offer(msg)
}

// Count is the number of registered users in this process.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Replaced is how many entries were displaced by a newer connection.
func (r *Registry) Replaced() int64 { return r.replaced.Load() }

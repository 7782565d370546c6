package mqtt

import "sync"

// pendingMessage is an outbound publish held while offline.
type pendingMessage struct {
	topic    string
	payload  []byte
	retained bool
}

// offlineBuffer is a bounded FIFO of outbound publishes.
//
// It rejects new messages when full and is not persisted. It accepts nothing
// until enable is called on the first successful connect.
type offlineBuffer struct {
	mu       sync.Mutex
	enabled  bool
	capacity int
	items    []pendingMessage
}

func newOfflineBuffer(capacity int) *offlineBuffer {
	return &offlineBuffer{capacity: capacity}
}

func (b *offlineBuffer) enable() {
	b.mu.Lock()
	b.enabled = true
	b.mu.Unlock()
}

// add queues msg, or returns ErrNotConnected before enable and ErrBufferFull
// at capacity.
func (b *offlineBuffer) add(msg pendingMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return ErrNotConnected
	}
	if len(b.items) >= b.capacity {
		return ErrBufferFull
	}
	b.items = append(b.items, msg)
	return nil
}

// pop removes and returns the oldest message.
func (b *offlineBuffer) pop() (pendingMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return pendingMessage{}, false
	}
	msg := b.items[0]
	b.items[0] = pendingMessage{}
	b.items = b.items[1:]
	return msg, true
}

// pushFront returns a message taken by pop that could not be sent.
func (b *offlineBuffer) pushFront(msg pendingMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]pendingMessage{msg}, b.items...)
}

func (b *offlineBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

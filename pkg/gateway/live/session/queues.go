package session

import (
	"context"
	"sync"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

// outboundQueueSize bounds client audio waiting for the AI send path. A full
// queue blocks the relay, which stops reading from the client.
const outboundQueueSize = 5

// clientItem is one AI-originated message waiting for the dispatcher.
type clientItem interface {
	isClientItem()
}

type clientAudio struct {
	data []byte
}

type clientTranscript struct {
	role intake.Role
	text string
}

type clientToolCall struct {
	name string
	id   string
}

type clientTurnComplete struct{}

func (clientAudio) isClientItem()        {}
func (clientTranscript) isClientItem()   {}
func (clientToolCall) isClientItem()     {}
func (clientTurnComplete) isClientItem() {}

// inboundQueue is an unbounded FIFO. Put never blocks so model audio is never
// dropped for capacity.
type inboundQueue struct {
	mu     sync.Mutex
	items  []clientItem
	notify chan struct{}
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{
		items:  make([]clientItem, 0, 64),
		notify: make(chan struct{}, 1),
	}
}

func (q *inboundQueue) Put(item clientItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Get blocks until an item is available or ctx is done.
func (q *inboundQueue) Get(ctx context.Context) (clientItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain discards every queued item and returns how many were dropped.
func (q *inboundQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	return n
}

func (q *inboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

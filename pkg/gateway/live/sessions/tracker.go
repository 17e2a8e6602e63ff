// Package sessions tracks running live sessions so the process can notify,
// cancel and wait for them during shutdown.
package sessions

import (
	"context"
	"sort"
	"sync"
)

// Handle is what the tracker needs from one running session.
type Handle struct {
	Cancel func()
	// Notify delivers a status frame such as a drain notice.
	Notify func(state, message string) error
}

type Tracker struct {
	mu      sync.Mutex
	running map[string]*entry
	wg      sync.WaitGroup
}

type entry struct {
	handle Handle
	done   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{running: make(map[string]*entry)}
}

// Register adds a session under id. Registering an id again replaces the
// previous entry. The returned func is idempotent.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	e := &entry{handle: h}
	t.wg.Add(1)

	t.mu.Lock()
	if t.running == nil {
		t.running = make(map[string]*entry)
	}
	replaced := t.running[sessionID]
	t.running[sessionID] = e
	t.mu.Unlock()

	if replaced != nil {
		t.release(sessionID, replaced)
	}
	return func() { t.release(sessionID, e) }
}

func (t *Tracker) release(sessionID string, e *entry) {
	e.done.Do(func() {
		t.mu.Lock()
		if t.running[sessionID] == e {
			delete(t.running, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}

// IDs returns the registered session ids in sorted order.
func (t *Tracker) IDs() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	ids := make([]string, 0, len(t.running))
	for id := range t.running {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// handles copies the current handles so callbacks run without the lock held.
func (t *Tracker) handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Handle, 0, len(t.running))
	for _, e := range t.running {
		out = append(out, e.handle)
	}
	return out
}

// NotifyAll sends a status frame to every session and returns how many
// deliveries succeeded.
func (t *Tracker) NotifyAll(state, message string) (delivered int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Notify != nil && h.Notify(state, message) == nil {
			delivered++
		}
	}
	return delivered
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}
	for _, h := range t.handles() {
		if h.Cancel != nil {
			h.Cancel()
			canceled++
		}
	}
	return canceled
}

// Wait blocks until every registered session released or ctx is done.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

package reactor

import (
	"sync"

	"github.com/ruteri/key-issuer/interfaces"
)

type completion struct {
	fd      int
	connID  uint64
	outcome interfaces.Outcome
}

// completionQueue is filled by generation callbacks and drained by the loop.
type completionQueue struct {
	mu    sync.Mutex
	items []completion
}

func (q *completionQueue) push(c completion) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

// drain removes and returns everything queued so far.
func (q *completionQueue) drain() []completion {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

package issuer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Pool executes tasks on a fixed number of goroutines.
type Pool struct {
	log  *slog.Logger
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	group errgroup.Group
}

// NewPool starts size workers.
func NewPool(size int, log *slog.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("worker pool size must be positive, got %d", size)
	}

	p := &Pool{
		log:  log,
		size: size,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		worker := i
		p.group.Go(func() error {
			p.work(worker)
			return nil
		})
	}
	return p, nil
}

// Submit queues task for execution. It never blocks on running work.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.tasks = append(p.tasks, task)
	p.cond.Signal()
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Close stops accepting tasks and waits until every queued task has run.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work(worker int) {
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks[0] = nil
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.run(worker, task)
	}
}

func (p *Pool) run(worker int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Worker task panicked", "worker", worker, "panic", r)
		}
	}()
	task()
}

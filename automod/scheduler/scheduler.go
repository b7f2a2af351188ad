// Fixed-size worker pool which serializes work per key.
//
// Work items sharing a key (eg, "<chat>:<sender>") run one at a time in the order they were added; items with different keys run in parallel on up to maxConcurrency workers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrQueueFull = errors.New("scheduler: queue for key is full")
	ErrShutdown  = errors.New("scheduler: shut down")
)

// Routing key for a chat event: events from the same sender in the same chat are processed in order.
func Key(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

type Scheduler[T any] struct {
	maxConcurrency int
	// pending items per key, not counting the one in flight
	maxQueue int

	do func(context.Context, T) error

	feeder chan *task[T]
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*task[T]
	closed bool
	// AddWork calls past the closed check; Shutdown waits for them before stopping workers
	adding sync.WaitGroup

	ident string

	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	itemsDropped   prometheus.Counter
	workersActive  prometheus.Gauge

	log *slog.Logger
}

type task[T any] struct {
	key     string
	val     T
	control string
}

func NewScheduler[T any](maxC, maxQ int, ident string, do func(context.Context, T) error) *Scheduler[T] {
	if maxC < 1 {
		maxC = 1
	}
	p := &Scheduler[T]{
		maxConcurrency: maxC,
		maxQueue:       maxQ,

		do: do,

		feeder: make(chan *task[T]),
		active: make(map[string][]*task[T]),
		out:    make(chan struct{}),

		ident: ident,

		itemsAdded:     workItemsAdded.WithLabelValues(ident),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident),
		itemsDropped:   workItemsDropped.WithLabelValues(ident),
		workersActive:  workersActive.WithLabelValues(ident),

		log: slog.Default().With("system", "scheduler", "pool", ident),
	}

	for i := 0; i < maxC; i++ {
		go p.worker()
	}

	p.workersActive.Set(float64(maxC))

	return p
}

// Stops accepting work, lets workers drain every queued item, and waits for them to exit.
func (p *Scheduler[T]) Shutdown() {
	p.log.Info("shutting down scheduler")

	p.lk.Lock()
	p.closed = true
	p.lk.Unlock()
	p.adding.Wait()

	for i := 0; i < p.maxConcurrency; i++ {
		p.feeder <- &task[T]{
			control: "stop",
		}
	}

	close(p.feeder)

	for i := 0; i < p.maxConcurrency; i++ {
		<-p.out
	}
	p.workersActive.Set(0)

	p.log.Info("scheduler shutdown complete")
}

func (p *Scheduler[T]) AddWork(ctx context.Context, key string, val T) error {
	t := &task[T]{
		key: key,
		val: val,
	}
	p.lk.Lock()
	if p.closed {
		p.lk.Unlock()
		return ErrShutdown
	}
	p.adding.Add(1)
	defer p.adding.Done()

	a, ok := p.active[key]
	if ok {
		if p.maxQueue > 0 && len(a) >= p.maxQueue {
			p.lk.Unlock()
			p.itemsDropped.Inc()
			return ErrQueueFull
		}
		p.active[key] = append(a, t)
		p.lk.Unlock()
		p.itemsAdded.Inc()
		return nil
	}

	p.active[key] = []*task[T]{}
	p.lk.Unlock()

	select {
	case p.feeder <- t:
		p.itemsAdded.Inc()
		return nil
	case <-ctx.Done():
		// nothing is running for this key, so anything queued behind this item is dropped with it
		p.lk.Lock()
		dropped := len(p.active[key])
		delete(p.active, key)
		p.lk.Unlock()
		p.itemsDropped.Add(float64(dropped + 1))
		return ctx.Err()
	}
}

func (p *Scheduler[T]) worker() {
	for work := range p.feeder {
		for work != nil {
			if work.control == "stop" {
				p.out <- struct{}{}
				return
			}

			if err := p.do(context.Background(), work.val); err != nil {
				p.log.Error("event handler failed", "key", work.key, "err", err)
			}
			p.itemsProcessed.Inc()

			p.lk.Lock()
			rem, ok := p.active[work.key]
			if !ok {
				p.log.Error("should always have an 'active' entry if a worker is processing a job")
			}

			if len(rem) == 0 {
				delete(p.active, work.key)
				work = nil
			} else {
				work = rem[0]
				p.active[work.key] = rem[1:]
			}
			p.lk.Unlock()
		}
	}
}

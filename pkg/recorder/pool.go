// Package recorder provides an asynchronous worker pool that archives
// concluded exchanges to a storage.Driver and publishes them to an
// eventstream.Publisher.
//
// The pool decouples storage and publishing from the chat loop so that a slow
// database or broker never delays rendering of the next exchange.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/eventstream"
	"github.com/papercomputeco/streamchat/pkg/logger"
	"github.com/papercomputeco/streamchat/pkg/storage"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Outcome chat.Outcome
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the optional storage backend for archiving exchanges.
	Driver storage.Driver

	// Publisher is the optional event stream publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes recording jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", "session_id", job.Outcome.SessionID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.Outcome.SessionID,
			"disposition", job.Outcome.Disposition,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session_id", job.Outcome.SessionID,
			"disposition", job.Outcome.Disposition,
		)
		return false
	}
}

// Observe enqueues the outcome of every ExchangeConcluded update and ignores
// the rest. It is meant to be chained into a controller update handler.
func (p *Pool) Observe(u chat.Update) {
	if concluded, ok := u.(chat.ExchangeConcluded); ok {
		p.Enqueue(Job{Outcome: concluded.Outcome})
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("recorder worker stopped", "worker_id", id)
}

// processJob archives and publishes one exchange. Failures are logged and
// never returned.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if p.config.Driver != nil {
		ex := storage.NewExchange(job.Outcome)
		isNew, err := p.config.Driver.Put(ctx, ex)
		if err != nil {
			p.logger.Error("exchange storage failed",
				"session_id", job.Outcome.SessionID,
				"error", err,
			)
		} else {
			p.logger.Debug("exchange stored",
				"id", ex.ID,
				"session_id", ex.SessionID,
				"is_new", isNew,
			)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewExchangeConcludedEvent(job.Outcome)
		if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
			p.logger.Warn("exchange event publish failed",
				"event_id", event.EventID,
				"session_id", event.SessionID,
				"error", err,
			)
			return
		}
		p.logger.Debug("exchange event published", "event_id", event.EventID)
	}
}

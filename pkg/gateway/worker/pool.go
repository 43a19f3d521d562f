// Package worker provides the asynchronous pool that moves redacted turns
// into the memory service. The pool decouples store appends from the
// caller's hot path: WriteTurn returns as soon as the job is queued, and a
// slow or flapping store only ever costs queue depth, never caller latency.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/eventstream"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/utils"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// appendTimeout is the generous ceiling on a single store append. Writes
// are off the caller's critical path, so this is much looser than the
// read-side timeouts.
const appendTimeout = 10 * time.Second

// Job is one turn to append to the memory service. Text has already been
// through redaction.
type Job struct {
	ConversationID string
	Role           string
	Text           string
	Metadata       map[string]string
	Redactions     int
}

// Invalidator busts cached context for a conversation after its turn lands.
type Invalidator interface {
	Invalidate(ctx context.Context, conversationID string) error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Client is the memory service client used for appends.
	Client memstore.Client

	// Cache is invalidated after each successful append so the next read
	// observes the write. Optional.
	Cache Invalidator

	// Events receives a turn-written event per successful append. Optional.
	Events eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes write jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
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
// Returns true if enqueued, false if the queue is full, resulting in the
// job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("turn queued",
			zap.String("conversation_id", job.ConversationID),
			zap.String("role", job.Role),
			zap.String("preview", utils.Truncate(job.Text, 60)),
		)
		return true
	default:
		p.logger.Error("turn not queued, queue full, turn dropped",
			zap.String("conversation_id", job.ConversationID),
			zap.String("role", job.Role),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the
// jobs queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("write worker stopped", zap.Uint("worker_id", id))
}

// processJob appends the turn, invalidates cached context for its
// conversation, and publishes a turn-written event. A failed append is a
// silent data-loss risk the orchestrator cannot see, so it logs at error.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	err := p.config.Client.Append(ctx, job.ConversationID, job.Role, job.Text, job.Metadata)
	if err != nil {
		p.logger.Error("async turn append failed",
			zap.String("conversation_id", job.ConversationID),
			zap.String("role", job.Role),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("turn written",
		zap.String("conversation_id", job.ConversationID),
		zap.String("role", job.Role),
		zap.Int("redactions", job.Redactions),
	)

	if p.config.Cache != nil {
		if err := p.config.Cache.Invalidate(ctx, job.ConversationID); err != nil {
			p.logger.Warn("cache invalidation after write failed",
				zap.String("conversation_id", job.ConversationID),
				zap.Error(err),
			)
		}
	}

	if p.config.Events != nil {
		event := eventstream.NewTurnWritten(job.ConversationID, job.Role, job.Redactions)
		if err := p.config.Events.Publish(ctx, event); err != nil {
			p.logger.Warn("turn event publish failed",
				zap.String("conversation_id", job.ConversationID),
				zap.Error(err),
			)
		}
	}
}

package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/eventstream"
	"github.com/mnemohq/mnemo/pkg/gateway/worker"
	"github.com/mnemohq/mnemo/pkg/memstore"
)

type recordingClient struct {
	mu       sync.Mutex
	delay    time.Duration
	err      error
	appended []string
}

func (c *recordingClient) Fetch(context.Context, string, string) (*memstore.Context, error) {
	return &memstore.Context{}, nil
}

func (c *recordingClient) Append(ctx context.Context, conversationID, _, _ string, _ map[string]string) error {
	c.mu.Lock()
	delay := c.delay
	err := c.err
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appended = append(c.appended, conversationID)
	return nil
}

func (c *recordingClient) turns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.appended))
	copy(out, c.appended)
	return out
}

type recordingInvalidator struct {
	mu          sync.Mutex
	invalidated []string
}

func (i *recordingInvalidator) Invalidate(_ context.Context, conversationID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.invalidated = append(i.invalidated, conversationID)
	return nil
}

func (i *recordingInvalidator) calls() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.invalidated))
	copy(out, i.invalidated)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *eventstream.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*eventstream.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.Event, len(p.events))
	copy(out, p.events)
	return out
}

var _ = Describe("Pool", func() {
	var (
		client      *recordingClient
		invalidator *recordingInvalidator
		publisher   *recordingPublisher
	)

	BeforeEach(func() {
		client = &recordingClient{}
		invalidator = &recordingInvalidator{}
		publisher = &recordingPublisher{}
	})

	newPool := func(workers, queue uint) *worker.Pool {
		p, err := worker.NewPool(&worker.Config{
			Client:     client,
			Cache:      invalidator,
			Events:     publisher,
			NumWorkers: workers,
			QueueSize:  queue,
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	It("appends, invalidates, and publishes per job", func() {
		pool := newPool(0, 0)
		defer pool.Close()

		ok := pool.Enqueue(worker.Job{
			ConversationID: "conv-1",
			Role:           "user",
			Text:           "hello",
			Redactions:     2,
		})
		Expect(ok).To(BeTrue())

		Eventually(client.turns).Should(Equal([]string{"conv-1"}))
		Eventually(invalidator.calls).Should(Equal([]string{"conv-1"}))
		Eventually(publisher.published).Should(HaveLen(1))

		event := publisher.published()[0]
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnWritten))
		Expect(event.Turn.ConversationID).To(Equal("conv-1"))
		Expect(event.Turn.Redactions).To(Equal(2))
	})

	It("skips invalidation and events when the append fails", func() {
		client.mu.Lock()
		client.err = errors.New("boom")
		client.mu.Unlock()

		pool := newPool(0, 0)

		Expect(pool.Enqueue(worker.Job{ConversationID: "conv-1", Role: "user"})).To(BeTrue())
		pool.Close()

		Expect(invalidator.calls()).To(BeEmpty())
		Expect(publisher.published()).To(BeEmpty())
	})

	It("reports a full queue without blocking", func() {
		client.mu.Lock()
		client.delay = 200 * time.Millisecond
		client.mu.Unlock()

		pool := newPool(1, 1)
		defer pool.Close()

		dropped := 0
		start := time.Now()
		for range 8 {
			if !pool.Enqueue(worker.Job{ConversationID: "conv-1", Role: "user"}) {
				dropped++
			}
		}

		Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))
		Expect(dropped).To(BeNumerically(">", 0))
	})

	It("drains in-flight jobs on close", func() {
		pool := newPool(2, 16)

		for i := range 8 {
			Expect(pool.Enqueue(worker.Job{
				ConversationID: "conv-1",
				Role:           "user",
				Text:           string(rune('a' + i)),
			})).To(BeTrue())
		}

		pool.Close()
		Expect(client.turns()).To(HaveLen(8))
	})
})

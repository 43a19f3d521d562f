package gateway_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/eventstream/nop"
	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/redact"
	"github.com/mnemohq/mnemo/pkg/statestore/inmemory"
)

var _ = Describe("Gateway", func() {
	var (
		ctx    context.Context
		store  *inmemory.Driver
		client *fakeClient
		gw     *gateway.Gateway

		baseMu   sync.Mutex
		baseMode gateway.Mode
	)

	currentBase := func() gateway.Mode {
		baseMu.Lock()
		defer baseMu.Unlock()
		return baseMode
	}

	setBase := func(mode gateway.Mode) {
		baseMu.Lock()
		defer baseMu.Unlock()
		baseMode = mode
	}

	newGateway := func(config gateway.Config) *gateway.Gateway {
		config.Store = store
		config.Client = client
		config.Events = nop.NewPublisher()
		config.Metrics = gateway.NewMetrics(prometheus.NewRegistry())
		config.Logger = zap.NewNop()
		if config.BaseMode == nil {
			config.BaseMode = currentBase
		}

		g, err := gateway.New(config)
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		client = &fakeClient{payload: &memstore.Context{Summary: "likes window seats"}}
		setBase(gateway.ModeReadWrite)
		gw = nil
	})

	AfterEach(func() {
		if gw != nil {
			gw.Close()
		}
	})

	Describe("FetchContext validation", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{})
		})

		It("rejects an empty conversation id", func() {
			_, _, err := gw.FetchContext(ctx, "", memstore.FetchModeRecent)
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})

		It("rejects an unknown fetch mode", func() {
			_, _, err := gw.FetchContext(ctx, "conv-1", "semantic")
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})
	})

	Describe("read path", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{
				CachePositiveTTL: 200 * time.Millisecond,
				CacheNegativeTTL: 60 * time.Millisecond,
			})
		})

		It("serves from the store and reports usage", func() {
			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Summary).To(Equal("likes window seats"))
			Expect(trace.Used).To(BeTrue())
			Expect(trace.Source).To(Equal(gateway.SourceStore))
			Expect(trace.Cached).To(BeFalse())
		})

		It("serves the second read from cache", func() {
			_, _, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())

			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Summary).To(Equal("likes window seats"))
			Expect(trace.Cached).To(BeTrue())
			Expect(trace.Source).To(Equal(gateway.SourceCache))
			Expect(client.fetches()).To(Equal(1))
		})

		It("expires positive entries after the TTL", func() {
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			time.Sleep(250 * time.Millisecond)

			_, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Cached).To(BeFalse())
			Expect(client.fetches()).To(Equal(2))
		})

		It("caches confirmed-empty results briefly", func() {
			client.setPayload(nil)

			_, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Used).To(BeFalse())

			_, trace, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(trace.Cached).To(BeTrue())
			Expect(trace.Used).To(BeFalse())

			time.Sleep(100 * time.Millisecond)

			_, trace, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(trace.Cached).To(BeFalse())
		})

		It("keys the cache by fetch mode", func() {
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			_, trace, _ := gw.FetchContext(ctx, "conv-1", memstore.FetchModeFull)
			Expect(trace.Cached).To(BeFalse())
			Expect(client.fetches()).To(Equal(2))
		})
	})

	Describe("degradation on fetch failures", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{
				FailureThreshold: 3,
				Hold:             time.Minute,
			})
		})

		It("forces write-only immediately on auth failure", func() {
			client.setFetchErr(&memstore.AuthError{StatusCode: 401})

			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Empty()).To(BeTrue())
			Expect(trace.Used).To(BeFalse())
			Expect(trace.Reason).To(Equal("auth"))

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeWriteOnly))
		})

		It("stays at base mode below the threshold", func() {
			client.setFetchErr(&memstore.ServerError{StatusCode: 503})

			for range 2 {
				_, _, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
		})

		It("resets the streak on success", func() {
			client.setFetchErr(&memstore.ServerError{StatusCode: 503})
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)

			client.setFetchErr(nil)
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)

			client.setFetchErr(&memstore.ServerError{StatusCode: 503})
			_, _, _ = gw.FetchContext(ctx, "conv-2", memstore.FetchModeRecent)
			_, _, _ = gw.FetchContext(ctx, "conv-2", memstore.FetchModeRecent)

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
		})

		It("forces write-only at the threshold, not before", func() {
			client.setFetchErr(&memstore.ServerError{StatusCode: 503})

			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))

			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeWriteOnly))
		})

		It("reports the forced reason on subsequent reads", func() {
			client.setFetchErr(&memstore.AuthError{StatusCode: 403})
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)

			client.setFetchErr(nil)
			before := client.fetches()

			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Empty()).To(BeTrue())
			Expect(trace.Source).To(Equal(gateway.SourceWriteOnlyForced))
			Expect(trace.Reason).To(Equal(gateway.ReasonAuthFailure))
			Expect(client.fetches()).To(Equal(before), "forced reads must not touch the store")
		})
	})

	Describe("write path", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{
				Redact:           redact.DefaultConfig(),
				CachePositiveTTL: time.Minute,
			})
		})

		It("rejects an empty conversation id", func() {
			_, err := gw.WriteTurn(ctx, "", "user", "hello", nil)
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})

		It("appends a redacted turn asynchronously", func() {
			receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "mail me at a@b.com", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Accepted).To(BeTrue())

			Eventually(client.appendedTurns).Should(HaveLen(1))
			turn := client.appendedTurns()[0]
			Expect(turn.conversationID).To(Equal("conv-1"))
			Expect(turn.text).To(ContainSubstring("[EMAIL]"))
			Expect(turn.text).NotTo(ContainSubstring("a@b.com"))
		})

		It("keeps writing while forced write-only", func() {
			err := gw.ForceWriteOnly(ctx, gateway.ReasonManual, time.Minute)
			Expect(err).NotTo(HaveOccurred())

			receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Accepted).To(BeTrue())
		})

		It("suppresses writes only when the mode is off", func() {
			setBase(gateway.ModeOff)

			receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Accepted).To(BeFalse())

			Consistently(client.appendedTurns, 100*time.Millisecond).Should(BeEmpty())
		})

		It("never serves a pre-write cache entry after a write", func() {
			_, trace, _ := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(trace.Cached).To(BeFalse())

			_, trace, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(trace.Cached).To(BeTrue())

			receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "new fact", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Accepted).To(BeTrue())

			_, trace, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(trace.Cached).To(BeFalse())
		})
	})

	Describe("queue saturation", func() {
		It("drops turns when the queue is full", func() {
			client.mu.Lock()
			client.appendDelay = 300 * time.Millisecond
			client.mu.Unlock()

			gw = newGateway(gateway.Config{
				NumWorkers: 1,
				QueueSize:  1,
			})

			accepted := 0
			for range 8 {
				receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "hello", nil)
				Expect(err).NotTo(HaveOccurred())
				if receipt.Accepted {
					accepted++
				}
			}

			Expect(accepted).To(BeNumerically("<", 8))
			Expect(accepted).To(BeNumerically(">=", 1))
		})
	})

	Describe("recovery after an expired hold", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{
				Hold: time.Minute,
			})
		})

		It("restores the base mode when the probe succeeds", func() {
			Expect(gw.ForceWriteOnly(ctx, gateway.ReasonManual, 150*time.Millisecond)).To(Succeed())
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeWriteOnly))

			time.Sleep(200 * time.Millisecond)

			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Summary).To(Equal("likes window seats"))
			Expect(trace.Source).To(Equal(gateway.SourceStore))

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
		})

		It("re-arms the hold when the probe fails", func() {
			Expect(gw.ForceWriteOnly(ctx, gateway.ReasonManual, 100*time.Millisecond)).To(Succeed())
			time.Sleep(150 * time.Millisecond)

			client.setFetchErr(&memstore.ServerError{StatusCode: 503})

			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Empty()).To(BeTrue())
			Expect(trace.Source).To(Equal(gateway.SourceWriteOnlyForced))

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeWriteOnly))
			Expect(gw.Status(ctx).Forced.Reason).To(Equal(gateway.ReasonProbeFailed))
		})
	})

	Describe("manual controls", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{})
		})

		It("re-forcing extends the hold", func() {
			Expect(gw.ForceWriteOnly(ctx, gateway.ReasonManual, time.Minute)).To(Succeed())
			first := gw.Status(ctx).Forced.Until

			time.Sleep(20 * time.Millisecond)
			Expect(gw.ForceWriteOnly(ctx, gateway.ReasonManual, time.Minute)).To(Succeed())
			second := gw.Status(ctx).Forced.Until

			Expect(second.After(first)).To(BeTrue())
		})

		It("clear restores the base mode immediately", func() {
			Expect(gw.ForceWriteOnly(ctx, gateway.ReasonManual, time.Minute)).To(Succeed())
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeWriteOnly))

			Expect(gw.ClearForcedMode(ctx)).To(Succeed())
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
			Expect(gw.Status(ctx).Forced).To(BeNil())
		})

		It("invalidate validates the conversation id", func() {
			Expect(gateway.IsValidation(gw.Invalidate(ctx, ""))).To(BeTrue())
			Expect(gw.Invalidate(ctx, "conv-1")).To(Succeed())
		})
	})

	Describe("status", func() {
		BeforeEach(func() {
			gw = newGateway(gateway.Config{FailureThreshold: 5})
		})

		It("reports the failure streak", func() {
			client.setFetchErr(&memstore.ServerError{StatusCode: 502})
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			_, _, _ = gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)

			status := gw.Status(ctx)
			Expect(status.FailureCount).To(Equal(int64(2)))
			Expect(status.BaseMode).To(Equal(gateway.ModeReadWrite))
			Expect(status.EffectiveMode).To(Equal(gateway.ModeReadWrite))
		})
	})

	Describe("with the coordination store down", func() {
		BeforeEach(func() {
			client = &fakeClient{payload: &memstore.Context{Summary: "still here"}}
			gw = nil

			config := gateway.Config{
				Store:    downDriver{},
				Client:   client,
				Events:   nop.NewPublisher(),
				Metrics:  gateway.NewMetrics(prometheus.NewRegistry()),
				Logger:   zap.NewNop(),
				BaseMode: currentBase,
			}
			g, err := gateway.New(config)
			Expect(err).NotTo(HaveOccurred())
			gw = g
		})

		It("behaves as never degraded", func() {
			payload, trace, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Summary).To(Equal("still here"))
			Expect(trace.Source).To(Equal(gateway.SourceStore))
			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
		})

		It("cannot be pushed over the failure threshold", func() {
			client.setFetchErr(&memstore.ServerError{StatusCode: 503})

			for range 10 {
				_, _, err := gw.FetchContext(ctx, "conv-1", memstore.FetchModeRecent)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(gw.CurrentMode(ctx)).To(Equal(gateway.ModeReadWrite))
		})

		It("still accepts writes", func() {
			receipt, err := gw.WriteTurn(ctx, "conv-1", "user", "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Accepted).To(BeTrue())
			Eventually(client.appendedTurns).Should(HaveLen(1))
		})
	})
})

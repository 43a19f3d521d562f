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
	"github.com/mnemohq/mnemo/pkg/statestore/inmemory"
)

var _ = Describe("RecoveryProber", func() {
	var (
		ctx        context.Context
		store      *inmemory.Driver
		client     *fakeClient
		controller *gateway.ModeController
		prober     *gateway.RecoveryProber
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		client = &fakeClient{payload: &memstore.Context{Summary: "ok"}}

		metrics := gateway.NewMetrics(prometheus.NewRegistry())
		logger := zap.NewNop()
		base := func() gateway.Mode { return gateway.ModeReadWrite }

		controller = gateway.NewModeController(store, base, metrics, nop.NewPublisher(), logger)
		prober = gateway.NewRecoveryProber(store, client, controller, metrics, logger, 100*time.Millisecond, time.Minute)
	})

	It("clears the forced mode on a successful probe", func() {
		Expect(controller.ForceWriteOnly(ctx, gateway.ReasonManual, time.Minute)).To(Succeed())

		Expect(prober.TryProbe(ctx)).To(BeTrue())

		record, err := controller.Forced(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(record).To(BeNil())
	})

	It("re-arms the hold on a failed probe", func() {
		client.setFetchErr(&memstore.ServerError{StatusCode: 503})

		Expect(prober.TryProbe(ctx)).To(BeFalse())

		record, err := controller.Forced(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(record).NotTo(BeNil())
		Expect(record.Reason).To(Equal(gateway.ReasonProbeFailed))
	})

	It("treats a slow store as a failed probe", func() {
		client.mu.Lock()
		client.fetchDelay = 400 * time.Millisecond
		client.mu.Unlock()

		start := time.Now()
		Expect(prober.TryProbe(ctx)).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically("<", 300*time.Millisecond))
	})

	It("lets exactly one of N concurrent callers probe the store", func() {
		client.mu.Lock()
		client.fetchDelay = 50 * time.Millisecond
		client.mu.Unlock()

		const n = 24

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)

		wg.Add(n)
		for range n {
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				if prober.TryProbe(ctx) {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Expect(client.fetches()).To(Equal(1), "losers must not touch the store")
		Expect(succeeded).To(Equal(1))
	})

	It("releases the lock so the next cycle can probe", func() {
		client.setFetchErr(&memstore.ServerError{StatusCode: 503})
		Expect(prober.TryProbe(ctx)).To(BeFalse())

		client.setFetchErr(nil)
		Expect(prober.TryProbe(ctx)).To(BeTrue())
		Expect(client.fetches()).To(Equal(2))
	})
})

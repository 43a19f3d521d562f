package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/statestore"
)

const (
	// keyProbeLock is the state store key for the probe mutual-exclusion
	// token.
	keyProbeLock = "mnemo:probe_lock"

	// probeLockTTL bounds how long a crashed prober can hold the lock.
	probeLockTTL = 10 * time.Second

	// DefaultProbeTimeout bounds the single store read a probe performs.
	// Deliberately tighter than the ordinary fetch timeout: a store that
	// cannot answer a trivial read quickly has not recovered.
	DefaultProbeTimeout = 150 * time.Millisecond

	// probeConversationID is the conversation the probe reads. Any ID
	// works; a fixed one keeps probe traffic recognizable in store logs.
	probeConversationID = "mnemo-probe"
)

// Probe attempt outcomes as recorded in metrics.
const (
	probeOutcomeContended = "contended"
	probeOutcomeSuccess   = "success"
	probeOutcomeFailure   = "failure"
)

// RecoveryProber performs the single-flight health probe that ends a
// degradation hold. The facade calls TryProbe only when a forced record
// exists and its hold has expired; whichever process wins the lock probes
// on behalf of all of them.
type RecoveryProber struct {
	store      statestore.Driver
	client     memstore.Client
	controller *ModeController
	metrics    *Metrics
	logger     *zap.Logger
	timeout    time.Duration
	hold       time.Duration
}

// NewRecoveryProber creates a prober. timeout <= 0 selects the default
// probe timeout; hold <= 0 selects the default re-arm hold.
func NewRecoveryProber(store statestore.Driver, client memstore.Client, controller *ModeController, metrics *Metrics, logger *zap.Logger, timeout, hold time.Duration) *RecoveryProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &RecoveryProber{
		store:      store,
		client:     client,
		controller: controller,
		metrics:    metrics,
		logger:     logger,
		timeout:    timeout,
		hold:       hold,
	}
}

// TryProbe attempts one recovery probe. It returns true only when this
// caller won the lock and the store answered: reads may resume. Lock
// contention is not an error; the loser treats the gateway as still
// degraded and moves on.
func (p *RecoveryProber) TryProbe(ctx context.Context) bool {
	token := uuid.NewString()

	acquired, err := p.store.SetIfAbsent(ctx, keyProbeLock, []byte(token), probeLockTTL)
	if err != nil {
		p.logger.Warn("state store unavailable, skipping recovery probe", zap.Error(err))
		return false
	}
	if !acquired {
		p.metrics.ProbeAttempts.WithLabelValues(probeOutcomeContended).Inc()
		return false
	}
	defer p.release(ctx)

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.client.Fetch(probeCtx, probeConversationID, memstore.FetchModeRecent)
	if err != nil {
		p.metrics.ProbeAttempts.WithLabelValues(probeOutcomeFailure).Inc()
		p.logger.Info("recovery probe failed, re-arming hold", zap.Error(err))

		if ferr := p.controller.ForceWriteOnly(ctx, ReasonProbeFailed, p.hold); ferr != nil {
			p.logger.Warn("re-arming hold failed", zap.Error(ferr))
		}
		return false
	}

	p.metrics.ProbeAttempts.WithLabelValues(probeOutcomeSuccess).Inc()
	p.logger.Info("recovery probe succeeded, restoring mode")

	if cerr := p.controller.ClearForcedMode(ctx); cerr != nil {
		p.logger.Warn("clearing forced mode after successful probe failed", zap.Error(cerr))
		return false
	}

	return true
}

func (p *RecoveryProber) release(ctx context.Context) {
	if err := p.store.Delete(ctx, keyProbeLock); err != nil {
		// The TTL reclaims it; the next hold cycle is at worst delayed.
		p.logger.Warn("releasing probe lock failed", zap.Error(err))
	}
}

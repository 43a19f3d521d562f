package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/eventstream"
	"github.com/mnemohq/mnemo/pkg/gateway/worker"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/redact"
	"github.com/mnemohq/mnemo/pkg/statestore"
)

// DefaultFetchTimeout bounds an ordinary context fetch against the store.
const DefaultFetchTimeout = 250 * time.Millisecond

// Trace sources reported on the read path.
const (
	SourceCache           = "cache"
	SourceStore           = "store"
	SourceWriteOnlyForced = "write_only_forced"
)

// Failure reason labels shared by traces and metrics.
const (
	FetchReasonAuth        = "auth"
	FetchReasonTimeout     = "timeout"
	FetchReasonServerError = "server_error"
)

// Trace describes how a fetch was served. The orchestrator logs it; the
// gateway never makes the caller branch on it for correctness.
type Trace struct {
	// Used reports whether memory contributed to the response.
	Used bool `json:"used"`

	// Source is where the result came from: cache, store, or
	// write_only_forced when reads are suppressed.
	Source string `json:"source"`

	// Reason carries the degradation reason when Used is false.
	Reason string `json:"reason,omitempty"`

	// Cached reports whether the payload was served from cache.
	Cached bool `json:"cached"`

	// TookMS is wall time for the whole fetch in milliseconds.
	TookMS float64 `json:"took_ms"`
}

// WriteReceipt acknowledges a write request.
type WriteReceipt struct {
	// Accepted reports whether the turn was queued for writing. False
	// means the turn was dropped: the mode is off or the queue is full.
	Accepted bool `json:"accepted"`
}

// Config assembles a Gateway.
type Config struct {
	// Store is the shared coordination state store.
	Store statestore.Driver

	// Client is the memory service client.
	Client memstore.Client

	// Events receives mode-transition and turn-written events. Optional.
	Events eventstream.Publisher

	// Metrics holds the registered prometheus instruments.
	Metrics *Metrics

	// Logger is the provided zap logger.
	Logger *zap.Logger

	// BaseMode is consulted live on every call so config reloads apply
	// without restart.
	BaseMode func() Mode

	// Redact configures the pre-write redaction passes.
	Redact redact.Config

	// FetchTimeout bounds ordinary context fetches (default 250ms).
	FetchTimeout time.Duration

	// ProbeTimeout bounds recovery probes (default 150ms).
	ProbeTimeout time.Duration

	// Hold is how long a forced downgrade lasts (default 300s).
	Hold time.Duration

	// FailureWindow is the rolling expiry of the failure streak (default 60s).
	FailureWindow time.Duration

	// FailureThreshold is the streak length that forces write-only
	// (default 3).
	FailureThreshold int64

	// CachePositiveTTL and CacheNegativeTTL override the cache defaults.
	CachePositiveTTL time.Duration
	CacheNegativeTTL time.Duration

	// NumWorkers and QueueSize size the async write pool.
	NumWorkers uint
	QueueSize  uint
}

// Gateway is the facade the orchestrator calls. Reads degrade instead of
// failing: every store fault becomes a well-formed "no context" result
// with a machine-readable reason, because memory is an enhancement, not a
// correctness dependency, for the calling agent.
type Gateway struct {
	config     Config
	controller *ModeController
	detector   *FailureDetector
	prober     *RecoveryProber
	cache      *ContextCache
	pool       *worker.Pool
	logger     *zap.Logger
	metrics    *Metrics
	now        func() time.Time
}

// New assembles a Gateway from config.
func New(config Config) (*Gateway, error) {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}

	controller := NewModeController(config.Store, config.BaseMode, config.Metrics, config.Events, config.Logger)
	detector := NewFailureDetector(config.Store, config.FailureWindow, config.Logger)
	prober := NewRecoveryProber(config.Store, config.Client, controller, config.Metrics, config.Logger, config.ProbeTimeout, config.Hold)
	cache := NewContextCache(config.Store, config.CachePositiveTTL, config.CacheNegativeTTL, config.Logger)

	pool, err := worker.NewPool(&worker.Config{
		Client:     config.Client,
		Cache:      cache,
		Events:     config.Events,
		NumWorkers: config.NumWorkers,
		QueueSize:  config.QueueSize,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Gateway{
		config:     config,
		controller: controller,
		detector:   detector,
		prober:     prober,
		cache:      cache,
		pool:       pool,
		logger:     config.Logger,
		metrics:    config.Metrics,
		now:        time.Now,
	}, nil
}

// FetchContext retrieves conversation context. The only error it returns
// is a ValidationError for malformed arguments; store faults degrade to an
// empty payload with a reason in the trace.
func (g *Gateway) FetchContext(ctx context.Context, conversationID, fetchMode string) (payload *memstore.Context, trace Trace, err error) {
	start := g.now()

	defer func() {
		trace.TookMS = float64(g.now().Sub(start)) / float64(time.Millisecond)
	}()

	if conversationID == "" {
		return nil, trace, &ValidationError{Field: "conversation_id", Detail: "must not be empty"}
	}
	if !memstore.ValidFetchMode(fetchMode) {
		return nil, trace, &ValidationError{Field: "fetch_mode", Detail: "must be one of recent, full"}
	}

	defer func() {
		g.metrics.FetchDuration.Observe(g.now().Sub(start).Seconds())
	}()

	if !g.readAllowed(ctx) {
		trace.Source = SourceWriteOnlyForced
		trace.Reason = g.degradedReason(ctx)
		return &memstore.Context{ConversationID: conversationID}, trace, nil
	}

	if payload, hit := g.cache.Get(ctx, conversationID, fetchMode); hit {
		trace.Used = !payload.Empty()
		trace.Source = SourceCache
		trace.Cached = true
		return payload, trace, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.config.FetchTimeout)
	defer cancel()

	payload, err = g.config.Client.Fetch(fetchCtx, conversationID, fetchMode)
	if err != nil {
		reason := g.absorbFetchFailure(ctx, err)
		trace.Source = SourceStore
		trace.Reason = reason
		return &memstore.Context{ConversationID: conversationID}, trace, nil
	}

	g.cache.Put(ctx, conversationID, fetchMode, payload)
	if err := g.detector.RecordSuccess(ctx); err != nil {
		g.logger.Debug("failure streak reset skipped", zap.Error(err))
	}

	trace.Used = !payload.Empty()
	trace.Source = SourceStore
	return payload, trace, nil
}

// WriteTurn queues one turn for asynchronous writing. Only an off mode
// suppresses writes; forced write-only keeps them flowing. The cache for
// the conversation is invalidated before returning so an immediate
// follow-up read can never hit an entry from before this write.
func (g *Gateway) WriteTurn(ctx context.Context, conversationID, role, text string, metadata map[string]string) (WriteReceipt, error) {
	if conversationID == "" {
		return WriteReceipt{}, &ValidationError{Field: "conversation_id", Detail: "must not be empty"}
	}
	if role == "" {
		return WriteReceipt{}, &ValidationError{Field: "role", Detail: "must not be empty"}
	}

	if g.CurrentMode(ctx) == ModeOff {
		g.logger.Debug("write suppressed, mode off",
			zap.String("conversation_id", conversationID),
		)
		return WriteReceipt{Accepted: false}, nil
	}

	clean, counts := redact.Redact(text, g.config.Redact)
	for category, n := range counts {
		if n > 0 {
			g.metrics.Redactions.WithLabelValues(category).Add(float64(n))
		}
	}

	if err := g.cache.Invalidate(ctx, conversationID); err != nil {
		g.logger.Warn("pre-write cache invalidation failed", zap.Error(err))
	}

	accepted := g.pool.Enqueue(worker.Job{
		ConversationID: conversationID,
		Role:           role,
		Text:           clean,
		Metadata:       metadata,
		Redactions:     redact.Total(counts),
	})
	if !accepted {
		g.metrics.WritesDropped.Inc()
	}

	return WriteReceipt{Accepted: accepted}, nil
}

// CurrentMode returns the effective mode for status and health surfaces.
func (g *Gateway) CurrentMode(ctx context.Context) Mode {
	return g.controller.EffectiveMode(ctx)
}

// ForceWriteOnly manually downgrades the gateway, for incident response.
func (g *Gateway) ForceWriteOnly(ctx context.Context, reason string, hold time.Duration) error {
	if reason == "" {
		reason = ReasonManual
	}
	return g.controller.ForceWriteOnly(ctx, reason, hold)
}

// ClearForcedMode manually lifts a forced downgrade.
func (g *Gateway) ClearForcedMode(ctx context.Context) error {
	return g.controller.ClearForcedMode(ctx)
}

// Invalidate busts cached context for a conversation.
func (g *Gateway) Invalidate(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return &ValidationError{Field: "conversation_id", Detail: "must not be empty"}
	}
	return g.cache.Invalidate(ctx, conversationID)
}

// Status is the operational snapshot served by the CLI and the API.
type Status struct {
	BaseMode      Mode          `json:"base_mode"`
	EffectiveMode Mode          `json:"effective_mode"`
	Forced        *ForcedRecord `json:"forced,omitempty"`
	FailureCount  int64         `json:"failure_count"`
}

// Status reports the current mode, forced record, and failure streak.
func (g *Gateway) Status(ctx context.Context) Status {
	status := Status{
		BaseMode:      g.controller.BaseMode(),
		EffectiveMode: g.controller.EffectiveMode(ctx),
	}

	if record, err := g.controller.Forced(ctx); err == nil && record != nil {
		status.Forced = record
	}
	if count, err := g.detector.Count(ctx); err == nil {
		status.FailureCount = count
	}

	return status
}

// Close drains the write pool. Call during graceful shutdown after the API
// server has stopped accepting requests.
func (g *Gateway) Close() {
	g.pool.Close()
}

// readAllowed decides whether this fetch may touch cache and store. The
// expired-hold probe hook lives here: when the forced record's hold has
// lapsed, whichever caller wins the probe lock performs the recovery check
// and everyone else keeps serving degraded until it succeeds.
func (g *Gateway) readAllowed(ctx context.Context) bool {
	if g.controller.BaseMode() != ModeReadWrite {
		return false
	}

	record, err := g.controller.Forced(ctx)
	if err != nil || record == nil {
		// No record, or no way to know. Either way reads proceed.
		return true
	}

	if record.Active(g.now()) {
		return false
	}

	return g.prober.TryProbe(ctx)
}

// degradedReason explains a suppressed read for the trace.
func (g *Gateway) degradedReason(ctx context.Context) string {
	if record, err := g.controller.Forced(ctx); err == nil && record != nil {
		return record.Reason
	}

	switch g.controller.BaseMode() {
	case ModeOff:
		return "reads_disabled"
	case ModeWriteOnly:
		return "reads_disabled"
	default:
		return ""
	}
}

// absorbFetchFailure classifies a store fault, updates the detector and
// mode, and returns the trace reason. Auth failures force immediately;
// transient ones need a streak.
func (g *Gateway) absorbFetchFailure(ctx context.Context, err error) string {
	switch {
	case memstore.IsAuth(err):
		g.metrics.FetchFailures.WithLabelValues(FetchReasonAuth).Inc()
		g.logger.Warn("memory service rejected credentials, forcing write-only", zap.Error(err))

		if ferr := g.controller.ForceWriteOnly(ctx, ReasonAuthFailure, g.config.Hold); ferr != nil {
			g.logger.Warn("forcing write-only failed", zap.Error(ferr))
		}
		return FetchReasonAuth

	case memstore.IsTimeout(err):
		g.countTransient(ctx, FetchReasonTimeout, err)
		return FetchReasonTimeout

	default:
		g.countTransient(ctx, FetchReasonServerError, err)
		return FetchReasonServerError
	}
}

func (g *Gateway) countTransient(ctx context.Context, reason string, err error) {
	g.metrics.FetchFailures.WithLabelValues(reason).Inc()
	g.logger.Warn("context fetch failed",
		zap.String("reason", reason),
		zap.Error(err),
	)

	n, derr := g.detector.RecordFailure(ctx)
	if derr != nil {
		return
	}

	if n >= g.config.FailureThreshold {
		g.logger.Warn("consecutive failure threshold reached, forcing write-only",
			zap.Int64("failures", n),
		)
		if ferr := g.controller.ForceWriteOnly(ctx, ReasonConsecutiveFailures, g.config.Hold); ferr != nil {
			g.logger.Warn("forcing write-only failed", zap.Error(ferr))
		}
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/eventstream"
	"github.com/mnemohq/mnemo/pkg/statestore"
)

const (
	// keyForcedMode is the well-known state store key for the forced record.
	keyForcedMode = "mnemo:forced_mode"

	// forcedRecordGrace keeps an expired forced record readable so the
	// prober can gate recovery instead of reads resuming blind. Past the
	// grace the record reads as absent and the base mode simply applies.
	forcedRecordGrace = time.Hour

	// DefaultHold is how long a forced downgrade lasts when the caller does
	// not specify a hold.
	DefaultHold = 300 * time.Second
)

// ModeController owns the forced-degradation overlay. The effective mode is
// recomputed from the state store on every call, never cached in-process,
// so every instance sharing the store observes the same overlay.
type ModeController struct {
	store    statestore.Driver
	baseMode func() Mode
	metrics  *Metrics
	events   eventstream.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewModeController creates a mode controller. baseMode is consulted live
// so configuration reloads take effect without a restart.
func NewModeController(store statestore.Driver, baseMode func() Mode, metrics *Metrics, events eventstream.Publisher, logger *zap.Logger) *ModeController {
	return &ModeController{
		store:    store,
		baseMode: baseMode,
		metrics:  metrics,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// BaseMode returns the configured mode, ignoring any forced overlay.
func (c *ModeController) BaseMode() Mode {
	return c.baseMode()
}

// EffectiveMode composes the base mode with the forced overlay. An active
// forced record caps the mode at write-only; it never widens an off base.
// If the state store is unreachable the overlay is treated as absent.
func (c *ModeController) EffectiveMode(ctx context.Context) Mode {
	mode := c.baseMode()

	record, err := c.Forced(ctx)
	if err == nil && record.Active(c.now()) && mode == ModeReadWrite {
		mode = ModeWriteOnly
	}

	c.metrics.SetMode(mode)

	return mode
}

// Forced returns the forced record, or nil when none exists. A state store
// fault is logged at warn and surfaced so callers can distinguish "no
// record" from "cannot know"; both are treated as not degraded.
func (c *ModeController) Forced(ctx context.Context) (*ForcedRecord, error) {
	raw, found, err := c.store.Get(ctx, keyForcedMode)
	if err != nil {
		c.logger.Warn("state store unavailable, assuming no forced mode", zap.Error(err))
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var record ForcedRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		c.logger.Warn("corrupt forced mode record, ignoring", zap.Error(err))
		return nil, nil
	}

	return &record, nil
}

// ForceWriteOnly upserts the forced record. Last writer wins: re-forcing an
// already-forced mode just extends the hold, which is the intended way
// concurrent triggers resolve.
func (c *ModeController) ForceWriteOnly(ctx context.Context, reason string, hold time.Duration) error {
	if hold <= 0 {
		hold = DefaultHold
	}

	now := c.now()
	record := ForcedRecord{
		Reason:   reason,
		ForcedAt: now,
		Until:    now.Add(hold),
	}

	raw, err := json.Marshal(&record)
	if err != nil {
		return err
	}

	prev := c.EffectiveMode(ctx)

	if err := c.store.Set(ctx, keyForcedMode, raw, hold+forcedRecordGrace); err != nil {
		c.logger.Warn("state store unavailable, forced mode not recorded",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return err
	}

	c.metrics.ModeDowngrades.WithLabelValues(reason).Inc()
	c.metrics.SetMode(c.EffectiveMode(ctx))

	c.logger.Info("memory_mode_forced",
		zap.String("prev_mode", string(prev)),
		zap.String("next_mode", string(ModeWriteOnly)),
		zap.String("reason", reason),
		zap.Duration("hold", hold),
	)

	c.publish(ctx, eventstream.NewModeForced(reason, record.Until))

	return nil
}

// ClearForcedMode deletes the forced record, restoring the base mode.
func (c *ModeController) ClearForcedMode(ctx context.Context) error {
	prev := c.EffectiveMode(ctx)

	if err := c.store.Delete(ctx, keyForcedMode); err != nil {
		c.logger.Warn("state store unavailable, forced mode not cleared", zap.Error(err))
		return err
	}

	next := c.EffectiveMode(ctx)

	c.logger.Info("memory_mode_restored",
		zap.String("prev_mode", string(prev)),
		zap.String("next_mode", string(next)),
	)

	c.publish(ctx, eventstream.NewModeRestored())

	return nil
}

func (c *ModeController) publish(ctx context.Context, event *eventstream.Event) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

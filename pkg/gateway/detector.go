package gateway

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/statestore"
)

const (
	// keyFailureCount is the state store key for the consecutive-failure
	// counter.
	keyFailureCount = "mnemo:failure_count"

	// DefaultFailureWindow is how long a failure streak stays warm. Sparse,
	// non-bursty failures never accumulate toward the threshold because the
	// counter expires between them.
	DefaultFailureWindow = 60 * time.Second

	// DefaultFailureThreshold is the streak length that forces write-only
	// mode. Checking against it is the caller's job; the detector only
	// counts.
	DefaultFailureThreshold = 3
)

// FailureDetector counts consecutive transient failures in the shared state
// store. Auth failures bypass it entirely: they force degradation directly
// because one retry will not fix rejected credentials, whereas timeouts and
// 5xx need corroboration before they are believed.
type FailureDetector struct {
	store  statestore.Driver
	window time.Duration
	logger *zap.Logger
}

// NewFailureDetector creates a failure detector. window <= 0 selects the
// default.
func NewFailureDetector(store statestore.Driver, window time.Duration, logger *zap.Logger) *FailureDetector {
	if window <= 0 {
		window = DefaultFailureWindow
	}
	return &FailureDetector{store: store, window: window, logger: logger}
}

// RecordFailure increments the counter and returns the new streak length.
// Concurrent increments from near-simultaneous failures both land; that is
// the intended behavior, not a race to guard against. A state store fault
// returns 0 so an unreachable coordination store can never push the streak
// over the threshold.
func (d *FailureDetector) RecordFailure(ctx context.Context) (int64, error) {
	n, err := d.store.Incr(ctx, keyFailureCount, d.window)
	if err != nil {
		d.logger.Warn("state store unavailable, failure not counted", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// RecordSuccess resets the streak.
func (d *FailureDetector) RecordSuccess(ctx context.Context) error {
	if err := d.store.Delete(ctx, keyFailureCount); err != nil {
		d.logger.Warn("state store unavailable, failure streak not reset", zap.Error(err))
		return err
	}
	return nil
}

// Count returns the current streak length for status surfaces.
func (d *FailureDetector) Count(ctx context.Context) (int64, error) {
	raw, found, err := d.store.Get(ctx, keyFailureCount)
	if err != nil || !found {
		return 0, err
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Package gateway implements the self-healing mediation layer between the
// agent orchestrator and the external memory service: a mode state machine
// with a forced-degradation overlay, a consecutive-failure detector, a
// single-flight recovery prober, a shared read-through cache, and the
// facade the orchestrator calls.
package gateway

import "time"

// Mode is the gateway's operating mode. Degradation only ever narrows
// capability: read-write can fall to write-only, never the other way up
// without an explicit clear or a successful probe.
type Mode string

const (
	// ModeOff disables both reads and writes.
	ModeOff Mode = "off"

	// ModeWriteOnly allows writes but suppresses reads. This is the forced
	// degradation target: context fetches return empty with a reason while
	// turns keep flowing to the store.
	ModeWriteOnly Mode = "write_only"

	// ModeReadWrite is full operation.
	ModeReadWrite Mode = "read_write"
)

// BaseMode derives the configured mode from the capability flags. Reads
// without writes is not a supported capability and collapses to off.
func BaseMode(writesEnabled, readsEnabled bool) Mode {
	switch {
	case writesEnabled && readsEnabled:
		return ModeReadWrite
	case writesEnabled:
		return ModeWriteOnly
	default:
		return ModeOff
	}
}

// Reason codes recorded on forced-degradation records and metric labels.
const (
	ReasonConsecutiveFailures = "consecutive_failures"
	ReasonAuthFailure         = "auth_failure"
	ReasonProbeFailed         = "probe_failed"
	ReasonManual              = "manual"
)

// ForcedRecord is the degradation overlay persisted in the shared state
// store. While now < Until, the effective mode is capped at write-only.
// After Until the record lingers (the store keeps it on a grace TTL) so
// the prober can gate recovery instead of reads resuming blind.
type ForcedRecord struct {
	Reason   string    `json:"reason"`
	ForcedAt time.Time `json:"forced_at"`
	Until    time.Time `json:"until"`
}

// Active reports whether the record still caps the mode at the given time.
func (r *ForcedRecord) Active(now time.Time) bool {
	return r != nil && now.Before(r.Until)
}

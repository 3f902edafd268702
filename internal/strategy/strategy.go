package strategy

import "time"

// Strategy supplies the tunable parameters the cycle manager and pool
// consult on every operation. Implementations must not block.
type Strategy interface {
	// RebalanceWindow is how long an on-chain rebalancing phase may run
	// before third-party settlement of lagging LPs is allowed.
	RebalanceWindow() time.Duration
	// HaltThreshold is the additional grace beyond the window after
	// which forced settlement into the halted state is allowed.
	HaltThreshold() time.Duration
	// OracleStaleAfter bounds the age of the last oracle update accepted
	// by phase-initiation operations.
	OracleStaleAfter() time.Duration
	// InterestRatePerSecond at rate scale 1e8.
	InterestRatePerSecond() int64
	// MinCollateralRatio at ratio scale 1e6.
	MinCollateralRatio() int64
}

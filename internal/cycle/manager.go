package cycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthPool/internal/bank"
	"SynthPool/internal/fpmath"
	"SynthPool/internal/liquidity"
	"SynthPool/internal/oracle"
	"SynthPool/internal/strategy"
)

// SplitRatio is one entry of the price-discontinuity log: synthetic
// amounts booked before the split scale by Numerator/Denominator.
type SplitRatio struct {
	Numerator   int64
	Denominator int64
}

// Record is the settlement summary of a completed cycle.
type Record struct {
	Index         int64
	SettlePrice   int64
	Open          int64
	High          int64
	Low           int64
	Close         int64
	LPCount       int64
	Interest      int64
	InterestIndex int64
	Halted        bool
	CompletedAt   time.Time
}

// Manager drives the pool lifecycle: ACTIVE -> REBALANCING_OFFCHAIN ->
// REBALANCING_ONCHAIN -> ACTIVE, with HALTED as the forced-settlement
// terminal. It is owned by the core goroutine; operations take explicit
// timestamps and never read the wall clock.
type Manager struct {
	log zerolog.Logger

	oracle    oracle.Oracle
	strategy  strategy.Strategy
	liquidity liquidity.Ledger
	reserve   bank.ReserveBank
	token     bank.SyntheticToken

	admin uuid.UUID

	state        State
	cycleIndex   int64
	lastActionAt time.Time

	lastSettlePrice int64
	band            oracle.OHLC
	cycleLPCount    int64
	rebalanced      int64
	lastSettled     map[uuid.UUID]int64
	forceHalt       bool

	settlePrices map[int64]int64
	indexByCycle map[int64]int64

	cycleInterest    int64
	cumulativeIndex  int64
	interestAnchored bool
	lastAccrualAt    time.Time

	splits []SplitRatio

	completed *Record
}

func NewManager(
	log zerolog.Logger,
	orc oracle.Oracle,
	strat strategy.Strategy,
	liq liquidity.Ledger,
	reserve bank.ReserveBank,
	token bank.SyntheticToken,
	admin uuid.UUID,
	initialCycle int64,
	initialSettlePrice int64,
) *Manager {
	return &Manager{
		log:             log,
		oracle:          orc,
		strategy:        strat,
		liquidity:       liq,
		reserve:         reserve,
		token:           token,
		admin:           admin,
		state:           StateActive,
		cycleIndex:      initialCycle,
		lastSettlePrice: initialSettlePrice,
		lastSettled:     make(map[uuid.UUID]int64),
		settlePrices:    make(map[int64]int64),
		indexByCycle:    make(map[int64]int64),
	}
}

// ===========================================================================
// Queries
// ===========================================================================

func (m *Manager) State() State            { return m.state }
func (m *Manager) CycleIndex() int64       { return m.cycleIndex }
func (m *Manager) LastActionAt() time.Time { return m.lastActionAt }
func (m *Manager) LastSettlePrice() int64  { return m.lastSettlePrice }
func (m *Manager) Band() oracle.OHLC       { return m.band }
func (m *Manager) RebalancedLPs() int64    { return m.rebalanced }
func (m *Manager) CycleLPCount() int64     { return m.cycleLPCount }
func (m *Manager) CycleInterest() int64    { return m.cycleInterest }

// SettlePrice returns the settlement price of a completed cycle.
func (m *Manager) SettlePrice(cycle int64) (int64, bool) {
	p, ok := m.settlePrices[cycle]
	return p, ok
}

// InterestIndexAt returns the cumulative interest index recorded when
// the given cycle completed.
func (m *Manager) InterestIndexAt(cycle int64) (int64, bool) {
	idx, ok := m.indexByCycle[cycle]
	return idx, ok
}

func (m *Manager) CurrentInterestIndex() int64 { return m.cumulativeIndex }

// SplitIndex is the global split counter: the number of resolved splits.
func (m *Manager) SplitIndex() int64 { return int64(len(m.splits)) }

// SplitsSince returns the ratios applied after the given stamp, oldest
// first, for position reconciliation.
func (m *Manager) SplitsSince(stamp int64) []SplitRatio {
	if stamp < 0 {
		stamp = 0
	}
	if stamp >= int64(len(m.splits)) {
		return nil
	}
	return m.splits[stamp:]
}

// LastSettledCycle reports the most recent cycle the provider settled.
func (m *Manager) LastSettledCycle(lp uuid.UUID) (int64, bool) {
	c, ok := m.lastSettled[lp]
	return c, ok
}

// TakeCompletedCycle returns and clears the record of a cycle completed
// by the last operation, if any.
func (m *Manager) TakeCompletedCycle() *Record {
	rec := m.completed
	m.completed = nil
	return rec
}

// ===========================================================================
// Interest accrual
// ===========================================================================

// AnchorInterest starts the accrual clock. The pool calls this on the
// first mint that takes supply above zero; accruing from pool genesis
// would charge interest on value that never existed.
func (m *Manager) AnchorInterest(now time.Time) {
	if m.interestAnchored {
		return
	}
	m.interestAnchored = true
	m.lastAccrualAt = now
}

func (m *Manager) accrueInterest(now time.Time) {
	supply := m.token.TotalSupply()
	if supply == 0 {
		m.lastAccrualAt = now
		return
	}
	if !m.interestAnchored {
		// Supply appeared without a mint through us (restored state);
		// anchor here instead of back-charging.
		m.interestAnchored = true
		m.lastAccrualAt = now
		return
	}

	elapsed := int64(now.Sub(m.lastAccrualAt) / time.Second)
	if elapsed <= 0 {
		return
	}

	price, err := m.oracle.CurrentPrice()
	if err != nil || price <= 0 {
		price = m.lastSettlePrice
	}

	value := fpmath.ComputeAssetValue(supply, price)
	interest := fpmath.ComputeInterest(elapsed, m.strategy.InterestRatePerSecond(), value)

	m.cycleInterest += interest
	m.cumulativeIndex += fpmath.ComputeIndexDelta(interest, supply)
	m.lastAccrualAt = now
}

// ===========================================================================
// Phase initiation
// ===========================================================================

func (m *Manager) checkOracleFresh(now time.Time) error {
	updated := m.oracle.LastUpdated()
	if updated.IsZero() || now.Sub(updated) > m.strategy.OracleStaleAfter() {
		return fmt.Errorf("last update %s: %w", updated, ErrOracleNotUpdated)
	}
	return nil
}

// InitiateOffchainRebalance moves ACTIVE -> REBALANCING_OFFCHAIN while
// the tracked market trades.
func (m *Manager) InitiateOffchainRebalance(caller uuid.UUID, now time.Time) error {
	if caller != m.admin {
		return fmt.Errorf("initiate offchain by %s: %w", caller, ErrUnauthorizedCaller)
	}
	if m.state != StateActive {
		return fmt.Errorf("initiate offchain in %s: %w", m.state, ErrInvalidCycleState)
	}
	if !m.oracle.IsMarketOpen() {
		return fmt.Errorf("initiate offchain: %w", ErrMarketClosed)
	}
	if err := m.checkOracleFresh(now); err != nil {
		return err
	}

	m.accrueInterest(now)
	m.state = StateRebalancingOffchain
	m.lastActionAt = now

	m.log.Info().Int64("cycle", m.cycleIndex).Msg("offchain rebalancing started")
	return nil
}

// InitiateOnchainRebalance moves REBALANCING_OFFCHAIN ->
// REBALANCING_ONCHAIN after the tracked market closes, snapshotting the
// session band and the provider count.
func (m *Manager) InitiateOnchainRebalance(caller uuid.UUID, now time.Time) error {
	if caller != m.admin {
		return fmt.Errorf("initiate onchain by %s: %w", caller, ErrUnauthorizedCaller)
	}
	if m.state != StateRebalancingOffchain {
		return fmt.Errorf("initiate onchain in %s: %w", m.state, ErrInvalidCycleState)
	}
	if m.oracle.IsMarketOpen() {
		return fmt.Errorf("initiate onchain: %w", ErrMarketOpen)
	}
	if err := m.checkOracleFresh(now); err != nil {
		return err
	}
	band, err := m.oracle.SessionOHLC()
	if err != nil {
		return fmt.Errorf("session band: %w", ErrOracleNotUpdated)
	}
	// A zero-provider snapshot could never reach the completion count;
	// stay in the off-chain phase until someone joins.
	lpCount := m.liquidity.LPCount()
	if lpCount == 0 {
		return fmt.Errorf("initiate onchain: %w", ErrNoLiquidityProviders)
	}

	m.accrueInterest(now)
	m.band = band
	m.cycleLPCount = lpCount
	m.rebalanced = 0
	m.forceHalt = false
	m.state = StateRebalancingOnchain
	m.lastActionAt = now

	m.log.Info().
		Int64("cycle", m.cycleIndex).
		Int64("lp_count", m.cycleLPCount).
		Int64("band_low", band.Low).
		Int64("band_high", band.High).
		Msg("onchain rebalancing started")
	return nil
}

// ===========================================================================
// LP settlement
// ===========================================================================

// CalculateLPRebalanceAmount is the pure per-provider settlement quote:
// the provider's pro-rata share of the supply's value change since the
// previous settlement. isDeposit reports the direction (true: the
// provider pays the pool). Zero supply or zero total liquidity quote
// zero without error.
func (m *Manager) CalculateLPRebalanceAmount(lp uuid.UUID, price int64) (amount int64, isDeposit bool) {
	delta := fpmath.ComputeExposureDelta(m.token.TotalSupply(), m.lastSettlePrice, price)
	isDeposit = delta > 0
	if delta < 0 {
		delta = -delta
	}
	amount = fpmath.ComputeProportionalShare(delta, m.liquidity.Liquidity(lp), m.liquidity.TotalLiquidity())
	return amount, isDeposit
}

// RebalancePool settles the calling provider at a price it proposes,
// validated against the session band (inclusive bounds).
func (m *Manager) RebalancePool(caller, lp uuid.UUID, price int64, now time.Time) error {
	if m.state != StateRebalancingOnchain {
		return fmt.Errorf("rebalance pool in %s: %w", m.state, ErrInvalidCycleState)
	}
	if !m.liquidity.IsLP(caller) {
		return fmt.Errorf("rebalance pool by %s: %w", caller, ErrNotLP)
	}
	if caller != lp {
		return fmt.Errorf("rebalance pool for %s by %s: %w", lp, caller, ErrUnauthorizedCaller)
	}
	if price < m.band.Low || price > m.band.High {
		return fmt.Errorf("price %d outside [%d, %d]: %w", price, m.band.Low, m.band.High, ErrInvalidRebalancePrice)
	}
	return m.settle(lp, price, now)
}

// RebalanceLP settles a lagging provider at the session close once the
// rebalance window has elapsed. Callable by anyone.
func (m *Manager) RebalanceLP(caller, lp uuid.UUID, now time.Time) error {
	if m.state != StateRebalancingOnchain {
		return fmt.Errorf("rebalance lp in %s: %w", m.state, ErrInvalidCycleState)
	}
	if elapsed := now.Sub(m.lastActionAt); elapsed <= m.strategy.RebalanceWindow() {
		return fmt.Errorf("elapsed %s of %s: %w", elapsed, m.strategy.RebalanceWindow(), ErrOnChainRebalancingInProgress)
	}
	if !m.liquidity.IsLP(lp) {
		return fmt.Errorf("rebalance lp %s: %w", lp, ErrNotLP)
	}
	return m.settle(lp, m.band.Close, now)
}

// ForceRebalanceLP settles a provider at the session close after the
// window plus the halt threshold; completion of a cycle that saw a
// forced settlement lands in HALTED instead of ACTIVE.
func (m *Manager) ForceRebalanceLP(caller, lp uuid.UUID, now time.Time) error {
	if m.state != StateRebalancingOnchain {
		return fmt.Errorf("force rebalance in %s: %w", m.state, ErrInvalidCycleState)
	}
	deadline := m.strategy.RebalanceWindow() + m.strategy.HaltThreshold()
	if elapsed := now.Sub(m.lastActionAt); elapsed <= deadline {
		return fmt.Errorf("elapsed %s of %s: %w", elapsed, deadline, ErrInvalidCycleState)
	}
	if !m.liquidity.IsLP(lp) {
		return fmt.Errorf("force rebalance lp %s: %w", lp, ErrNotLP)
	}

	m.forceHalt = true
	return m.settle(lp, m.band.Close, now)
}

func (m *Manager) settle(lp uuid.UUID, price int64, now time.Time) error {
	if last, ok := m.lastSettled[lp]; ok && last == m.cycleIndex {
		return fmt.Errorf("lp %s cycle %d: %w", lp, m.cycleIndex, ErrAlreadyRebalanced)
	}

	amount, isDeposit := m.CalculateLPRebalanceAmount(lp, price)
	if amount > 0 {
		var err error
		if isDeposit {
			err = m.reserve.Pull(lp, amount)
		} else {
			err = m.reserve.Push(lp, amount)
		}
		if err != nil {
			return fmt.Errorf("settle lp %s: %w", lp, err)
		}
	}

	m.lastSettled[lp] = m.cycleIndex
	m.rebalanced++

	m.log.Info().
		Str("lp", lp.String()).
		Int64("cycle", m.cycleIndex).
		Int64("amount", amount).
		Bool("is_deposit", isDeposit).
		Int64("price", price).
		Msg("lp settled")

	if m.rebalanced >= m.cycleLPCount {
		m.complete(price, now)
	}
	return nil
}

func (m *Manager) complete(price int64, now time.Time) {
	rec := &Record{
		Index:         m.cycleIndex,
		SettlePrice:   price,
		Open:          m.band.Open,
		High:          m.band.High,
		Low:           m.band.Low,
		Close:         m.band.Close,
		LPCount:       m.cycleLPCount,
		Interest:      m.cycleInterest,
		InterestIndex: m.cumulativeIndex,
		Halted:        m.forceHalt,
		CompletedAt:   now,
	}

	m.settlePrices[m.cycleIndex] = price
	m.indexByCycle[m.cycleIndex] = m.cumulativeIndex
	m.lastSettlePrice = price

	next := StateActive
	if m.forceHalt {
		next = StateHalted
	}

	m.log.Info().
		Int64("cycle", m.cycleIndex).
		Int64("settle_price", price).
		Int64("interest", m.cycleInterest).
		Str("next_state", next.String()).
		Msg("cycle completed")

	m.cycleIndex++
	m.cycleInterest = 0
	m.rebalanced = 0
	m.cycleLPCount = 0
	m.forceHalt = false
	m.state = next
	m.lastActionAt = now
	m.completed = rec
}

// ===========================================================================
// Price-deviation resolution
// ===========================================================================

// ResolvePriceDeviation handles an oracle price that cannot validate
// against the session band. isSplit=true records a corporate-action
// split: the band and previous settlement price rescale by
// denominator/numerator, synthetic amounts by numerator/denominator,
// and the global split counter advances. isSplit=false treats the band
// itself as corrupt and re-snapshots it from the oracle.
func (m *Manager) ResolvePriceDeviation(caller uuid.UUID, isSplit bool, numerator, denominator int64, now time.Time) error {
	if caller != m.admin {
		return fmt.Errorf("resolve deviation by %s: %w", caller, ErrUnauthorizedCaller)
	}
	if m.state != StateRebalancingOnchain {
		return fmt.Errorf("resolve deviation in %s: %w", m.state, ErrInvalidCycleState)
	}

	if !isSplit {
		band, err := m.oracle.SessionOHLC()
		if err != nil {
			return fmt.Errorf("session band: %w", ErrOracleNotUpdated)
		}
		m.band = band
		m.log.Warn().
			Int64("cycle", m.cycleIndex).
			Int64("band_low", band.Low).
			Int64("band_high", band.High).
			Msg("session band reset")
		return nil
	}

	if numerator <= 0 || denominator <= 0 {
		return fmt.Errorf("ratio %d/%d: %w", numerator, denominator, ErrInvalidSplitRatio)
	}

	if err := m.token.Rebase(numerator, denominator); err != nil {
		return fmt.Errorf("rebase supply: %w", err)
	}

	// Prices move inversely to amounts across a split.
	m.lastSettlePrice = fpmath.ApplyRatio(m.lastSettlePrice, denominator, numerator)
	m.band.Open = fpmath.ApplyRatio(m.band.Open, denominator, numerator)
	m.band.High = fpmath.ApplyRatio(m.band.High, denominator, numerator)
	m.band.Low = fpmath.ApplyRatio(m.band.Low, denominator, numerator)
	m.band.Close = fpmath.ApplyRatio(m.band.Close, denominator, numerator)

	// The settlement history is price-denominated and the interest index
	// is per synthetic unit, so both rescale with the prices. Deposits
	// settled before the split then mint against the adjusted price, and
	// interest spans stay value-preserving against rescaled unit counts.
	for c, sp := range m.settlePrices {
		m.settlePrices[c] = fpmath.ApplyRatio(sp, denominator, numerator)
	}
	for c, idx := range m.indexByCycle {
		m.indexByCycle[c] = fpmath.ApplyRatio(idx, denominator, numerator)
	}
	m.cumulativeIndex = fpmath.ApplyRatio(m.cumulativeIndex, denominator, numerator)

	m.splits = append(m.splits, SplitRatio{Numerator: numerator, Denominator: denominator})

	m.log.Warn().
		Int64("cycle", m.cycleIndex).
		Int64("numerator", numerator).
		Int64("denominator", denominator).
		Int64("split_index", m.SplitIndex()).
		Msg("split resolved")
	return nil
}

package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthPool/internal/bank"
	"SynthPool/internal/cycle"
	"SynthPool/internal/fpmath"
	"SynthPool/internal/liquidity"
	"SynthPool/internal/strategy"
)

// Pool is the user-facing request/position ledger. Deposits and
// redemptions queue while a cycle is active, settle at the cycle's
// settlement price, and are claimed afterwards. Owned by the core
// goroutine; all operations take explicit timestamps.
type Pool struct {
	log zerolog.Logger

	cycles    *cycle.Manager
	strategy  strategy.Strategy
	liquidity liquidity.Ledger
	reserve   bank.ReserveBank
	token     bank.SyntheticToken

	positions map[uuid.UUID]*Position
	requests  map[uuid.UUID]*Request

	totalDeposits     int64 // reserve backing claimed positions
	queuedDeposits    int64 // reserve in pending deposit requests
	queuedRedemptions int64 // synthetic units escrowed for redemption
}

// Info is the aggregate snapshot returned by the pool-info query.
type Info struct {
	State             cycle.State
	CycleIndex        int64
	LastActionAt      time.Time
	TotalDeposits     int64
	QueuedDeposits    int64
	QueuedRedemptions int64
	TotalSupply       int64
	SplitIndex        int64
	RebalancedLPs     int64
	CycleLPCount      int64
	PoolReserve       int64
}

func New(
	log zerolog.Logger,
	cycles *cycle.Manager,
	strat strategy.Strategy,
	liq liquidity.Ledger,
	reserve bank.ReserveBank,
	token bank.SyntheticToken,
) *Pool {
	return &Pool{
		log:       log,
		cycles:    cycles,
		strategy:  strat,
		liquidity: liq,
		reserve:   reserve,
		token:     token,
		positions: make(map[uuid.UUID]*Position),
		requests:  make(map[uuid.UUID]*Request),
	}
}

// reconcile applies any splits the user's bookkeeping has not seen yet.
// It runs at the top of every user-mutating entry point, so a missed
// split is applied exactly once no matter which operation — or whose
// call — touches the slot next.
func (p *Pool) reconcile(user uuid.UUID) {
	global := p.cycles.SplitIndex()

	if pos, ok := p.positions[user]; ok && pos.SplitStamp < global {
		for _, r := range p.cycles.SplitsSince(pos.SplitStamp) {
			pos.AssetAmount = fpmath.ApplyRatio(pos.AssetAmount, r.Numerator, r.Denominator)
			// The entry index is per synthetic unit; it scales inversely,
			// keeping accrued-interest spans value-preserving.
			pos.EntryIndex = fpmath.ApplyRatio(pos.EntryIndex, r.Denominator, r.Numerator)
		}
		pos.SplitStamp = global
		pos.Version++
	}

	if req, ok := p.requests[user]; ok && req.SplitStamp < global {
		if req.Type == RequestRedemption {
			// Escrowed synthetic units rescale; reserve amounts do not.
			old := req.Amount
			for _, r := range p.cycles.SplitsSince(req.SplitStamp) {
				req.Amount = fpmath.ApplyRatio(req.Amount, r.Numerator, r.Denominator)
			}
			p.queuedRedemptions += req.Amount - old
		}
		req.SplitStamp = global
	}
}

// ===========================================================================
// Requests
// ===========================================================================

// DepositRequest queues reserve currency to be converted to synthetic
// units at the next settlement price, with collateral attached.
func (p *Pool) DepositRequest(user uuid.UUID, amount, collateral int64) error {
	if collateral <= 0 {
		return fmt.Errorf("collateral %d: %w", collateral, ErrInvalidAmount)
	}
	return p.queueDeposit(user, amount, collateral)
}

// DepositRequestWithoutCollateral queues a bare deposit. The claim will
// not succeed until the position's collateral meets the minimum ratio.
func (p *Pool) DepositRequestWithoutCollateral(user uuid.UUID, amount int64) error {
	return p.queueDeposit(user, amount, 0)
}

func (p *Pool) queueDeposit(user uuid.UUID, amount, collateral int64) error {
	if st := p.cycles.State(); st != cycle.StateActive {
		return fmt.Errorf("deposit request in %s: %w", st, ErrPoolNotActive)
	}
	p.reconcile(user)

	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	if req, ok := p.requests[user]; ok {
		return fmt.Errorf("%s request from cycle %d: %w", req.Type, req.Cycle, ErrRequestPending)
	}
	capacity := p.liquidity.TotalLiquidity() - p.totalDeposits - p.queuedDeposits
	if amount > capacity {
		return fmt.Errorf("amount %d exceeds capacity %d: %w", amount, capacity, ErrInsufficientLiquidity)
	}

	if err := p.reserve.Pull(user, amount+collateral); err != nil {
		return fmt.Errorf("deposit request: %w", err)
	}

	p.requests[user] = &Request{
		Type:       RequestDeposit,
		Amount:     amount,
		Collateral: collateral,
		Cycle:      p.cycles.CycleIndex(),
		SplitStamp: p.cycles.SplitIndex(),
	}
	p.queuedDeposits += amount

	p.log.Info().
		Str("user", user.String()).
		Int64("amount", amount).
		Int64("collateral", collateral).
		Int64("cycle", p.cycles.CycleIndex()).
		Msg("deposit requested")
	return nil
}

// RedemptionRequest escrows synthetic units to be paid out in reserve
// currency after the next settlement.
func (p *Pool) RedemptionRequest(user uuid.UUID, amount int64) error {
	if st := p.cycles.State(); st != cycle.StateActive {
		return fmt.Errorf("redemption request in %s: %w", st, ErrPoolNotActive)
	}
	p.reconcile(user)

	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	if req, ok := p.requests[user]; ok {
		return fmt.Errorf("%s request from cycle %d: %w", req.Type, req.Cycle, ErrRequestPending)
	}
	if held := p.token.BalanceOf(user); held < amount {
		return fmt.Errorf("amount %d of %d held: %w", amount, held, ErrInsufficientBalance)
	}

	if err := p.token.Escrow(user, amount); err != nil {
		return fmt.Errorf("redemption request: %w", err)
	}

	p.requests[user] = &Request{
		Type:       RequestRedemption,
		Amount:     amount,
		Cycle:      p.cycles.CycleIndex(),
		SplitStamp: p.cycles.SplitIndex(),
	}
	p.queuedRedemptions += amount

	p.log.Info().
		Str("user", user.String()).
		Int64("amount", amount).
		Int64("cycle", p.cycles.CycleIndex()).
		Msg("redemption requested")
	return nil
}

// ===========================================================================
// Claims
// ===========================================================================

func (p *Pool) checkClaimable() error {
	st := p.cycles.State()
	if st != cycle.StateActive && st != cycle.StateHalted {
		return fmt.Errorf("claim in %s: %w", st, ErrPoolNotClaimable)
	}
	return nil
}

// ClaimAsset mints synthetic units for a settled deposit request.
// Callable by anyone on behalf of the user.
func (p *Pool) ClaimAsset(user uuid.UUID, now time.Time) error {
	if err := p.checkClaimable(); err != nil {
		return err
	}
	p.reconcile(user)

	req, ok := p.requests[user]
	if !ok || req.Type != RequestDeposit {
		return fmt.Errorf("user %s: %w", user, ErrNothingToClaim)
	}
	if req.Cycle >= p.cycles.CycleIndex() {
		return fmt.Errorf("cycle %d not settled: %w", req.Cycle, ErrNothingToClaim)
	}
	price, ok := p.cycles.SettlePrice(req.Cycle)
	if !ok {
		return fmt.Errorf("no settlement price for cycle %d: %w", req.Cycle, ErrNothingToClaim)
	}

	pos := p.positions[user]
	var curAsset, curDeposit, curCollateral, curIndex int64
	if pos != nil {
		curAsset = pos.AssetAmount
		curDeposit = pos.DepositAmount
		curCollateral = pos.CollateralAmount
		curIndex = pos.EntryIndex
	}

	newDeposit := curDeposit + req.Amount
	newCollateral := curCollateral + req.Collateral
	if fpmath.ComputeCollateralRatio(newCollateral, newDeposit) < p.strategy.MinCollateralRatio() {
		return fmt.Errorf("collateral %d for deposit %d: %w", newCollateral, newDeposit, ErrInsufficientCollateral)
	}

	minted := fpmath.ComputeMintAmount(req.Amount, price)
	wasZero := p.token.TotalSupply() == 0
	if err := p.token.Mint(user, minted); err != nil {
		return fmt.Errorf("claim asset: %w", err)
	}

	if pos == nil {
		pos = &Position{UserID: user, SplitStamp: p.cycles.SplitIndex()}
		p.positions[user] = pos
	}
	pos.EntryIndex = fpmath.ComputeWeightedIndex(curAsset, curIndex, minted, p.cycles.CurrentInterestIndex())
	pos.AssetAmount = curAsset + minted
	pos.DepositAmount = newDeposit
	pos.CollateralAmount = newCollateral
	pos.Version++

	delete(p.requests, user)
	p.totalDeposits += req.Amount
	p.queuedDeposits -= req.Amount

	if wasZero && minted > 0 {
		p.cycles.AnchorInterest(now)
	}

	p.log.Info().
		Str("user", user.String()).
		Int64("deposit", req.Amount).
		Int64("price", price).
		Int64("minted", minted).
		Msg("asset claimed")
	return nil
}

// ClaimReserve pays out a settled redemption request: the proportional
// share of the position's deposit and collateral, net of accrued
// interest. Fully redeemed positions are cleared.
func (p *Pool) ClaimReserve(user uuid.UUID, now time.Time) error {
	if err := p.checkClaimable(); err != nil {
		return err
	}
	p.reconcile(user)

	req, ok := p.requests[user]
	if !ok || req.Type != RequestRedemption {
		return fmt.Errorf("user %s: %w", user, ErrNothingToClaim)
	}
	if req.Cycle >= p.cycles.CycleIndex() {
		return fmt.Errorf("cycle %d not settled: %w", req.Cycle, ErrNothingToClaim)
	}
	pos := p.positions[user]
	if pos == nil || pos.AssetAmount == 0 {
		return fmt.Errorf("user %s holds no position: %w", user, ErrNothingToClaim)
	}

	// Escrow can exceed the booked position only through externally
	// acquired units; the surplus is released, not paid out.
	amount := req.Amount
	if amount > pos.AssetAmount {
		amount = pos.AssetAmount
	}
	leftover := req.Amount - amount

	depositShare := fpmath.MulDiv(pos.DepositAmount, amount, pos.AssetAmount)
	collateralShare := fpmath.MulDiv(pos.CollateralAmount, amount, pos.AssetAmount)
	span := p.cycles.CurrentInterestIndex() - pos.EntryIndex
	charge := fpmath.ComputeIndexCharge(amount, span)

	payout := depositShare + collateralShare - charge
	if payout < 0 {
		payout = 0
	}
	if payout > p.reserve.PoolBalance() {
		return fmt.Errorf("payout %d of pool %d: %w", payout, p.reserve.PoolBalance(), ErrInsufficientLiquidity)
	}

	if err := p.token.BurnEscrowed(amount); err != nil {
		return fmt.Errorf("claim reserve: %w", err)
	}
	if leftover > 0 {
		if err := p.token.Release(user, leftover); err != nil {
			return fmt.Errorf("claim reserve: %w", err)
		}
	}
	if payout > 0 {
		if err := p.reserve.Push(user, payout); err != nil {
			return fmt.Errorf("claim reserve: %w", err)
		}
	}

	pos.AssetAmount -= amount
	pos.DepositAmount -= depositShare
	pos.CollateralAmount -= collateralShare
	pos.Version++
	if pos.AssetAmount == 0 && pos.DepositAmount == 0 && pos.CollateralAmount == 0 {
		delete(p.positions, user)
	}

	delete(p.requests, user)
	p.totalDeposits -= depositShare
	p.queuedRedemptions -= req.Amount

	p.log.Info().
		Str("user", user.String()).
		Int64("burned", amount).
		Int64("payout", payout).
		Int64("interest", charge).
		Msg("reserve claimed")
	return nil
}

// ===========================================================================
// Collateral
// ===========================================================================

// AddCollateral tops up a position's collateral, including positions
// that only exist as a pending uncollateralized deposit.
func (p *Pool) AddCollateral(user uuid.UUID, amount int64) error {
	if st := p.cycles.State(); st != cycle.StateActive {
		return fmt.Errorf("add collateral in %s: %w", st, ErrPoolNotActive)
	}
	p.reconcile(user)

	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	if err := p.reserve.Pull(user, amount); err != nil {
		return fmt.Errorf("add collateral: %w", err)
	}

	pos := p.positions[user]
	if pos == nil {
		pos = &Position{UserID: user, SplitStamp: p.cycles.SplitIndex()}
		p.positions[user] = pos
	}
	pos.CollateralAmount += amount
	pos.Version++

	p.log.Info().
		Str("user", user.String()).
		Int64("amount", amount).
		Int64("collateral", pos.CollateralAmount).
		Msg("collateral added")
	return nil
}

// ReduceCollateral withdraws collateral down to the minimum ratio for
// the position's current deposit.
func (p *Pool) ReduceCollateral(user uuid.UUID, amount int64) error {
	if st := p.cycles.State(); st != cycle.StateActive {
		return fmt.Errorf("reduce collateral in %s: %w", st, ErrPoolNotActive)
	}
	p.reconcile(user)

	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, ErrInvalidAmount)
	}
	pos := p.positions[user]
	if pos == nil {
		return fmt.Errorf("user %s holds no position: %w", user, ErrExcessiveWithdrawal)
	}
	remaining := pos.CollateralAmount - amount
	if remaining < 0 {
		return fmt.Errorf("amount %d of %d held: %w", amount, pos.CollateralAmount, ErrExcessiveWithdrawal)
	}
	minRequired := fpmath.MulDiv(pos.DepositAmount, p.strategy.MinCollateralRatio(), fpmath.RatioConfig.Scale)
	if remaining < minRequired {
		return fmt.Errorf("remaining %d below minimum %d: %w", remaining, minRequired, ErrExcessiveWithdrawal)
	}

	if err := p.reserve.Push(user, amount); err != nil {
		return fmt.Errorf("reduce collateral: %w", err)
	}
	pos.CollateralAmount = remaining
	pos.Version++
	if pos.AssetAmount == 0 && pos.DepositAmount == 0 && pos.CollateralAmount == 0 {
		delete(p.positions, user)
	}

	p.log.Info().
		Str("user", user.String()).
		Int64("amount", amount).
		Int64("collateral", remaining).
		Msg("collateral reduced")
	return nil
}

// ===========================================================================
// Queries
// ===========================================================================

func (p *Pool) GetInfo() Info {
	return Info{
		State:             p.cycles.State(),
		CycleIndex:        p.cycles.CycleIndex(),
		LastActionAt:      p.cycles.LastActionAt(),
		TotalDeposits:     p.totalDeposits,
		QueuedDeposits:    p.queuedDeposits,
		QueuedRedemptions: p.queuedRedemptions,
		TotalSupply:       p.token.TotalSupply(),
		SplitIndex:        p.cycles.SplitIndex(),
		RebalancedLPs:     p.cycles.RebalancedLPs(),
		CycleLPCount:      p.cycles.CycleLPCount(),
		PoolReserve:       p.reserve.PoolBalance(),
	}
}

// PositionOf returns a copy of the user's position as stored; splits
// not yet reconciled are not applied by this read.
func (p *Pool) PositionOf(user uuid.UUID) (Position, bool) {
	pos, ok := p.positions[user]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (p *Pool) RequestOf(user uuid.UUID) (Request, bool) {
	req, ok := p.requests[user]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

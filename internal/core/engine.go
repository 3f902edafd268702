package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthPool/internal/cycle"
	"SynthPool/internal/observability"
	"SynthPool/internal/pool"
)

var ErrUnknownCommand = errors.New("unknown command kind")

// AppliedOp is the persistence record of one applied operation.
// CompletedCycle is non-nil when the operation finished a cycle.
type AppliedOp struct {
	Sequence       int64
	Command        Command
	CycleIndex     int64
	State          cycle.State
	CompletedCycle *cycle.Record
}

// Notification is the outbound event published for keepers and
// downstream consumers. Best-effort: dropped when the channel is full.
type Notification struct {
	Sequence   int64
	Kind       string
	CycleIndex int64
	State      string
	Timestamp  time.Time
}

type submission struct {
	cmd   *Command
	query func()
	reply chan error
}

// Engine serializes every operation through one goroutine, so gate
// checks and mutations are atomic per command and the first caller to
// satisfy a gate wins. Sequence numbers are assigned only to applied
// operations.
type Engine struct {
	log     zerolog.Logger
	metrics *observability.Metrics

	pool   *pool.Pool
	cycles *cycle.Manager

	sequence int64

	persistChan chan<- AppliedOp
	publishChan chan<- Notification
	submitChan  chan submission
}

func NewEngine(
	log zerolog.Logger,
	metrics *observability.Metrics,
	p *pool.Pool,
	cycles *cycle.Manager,
	persistChan chan<- AppliedOp,
	publishChan chan<- Notification,
) *Engine {
	return &Engine{
		log:         log,
		metrics:     metrics,
		pool:        p,
		cycles:      cycles,
		persistChan: persistChan,
		publishChan: publishChan,
		submitChan:  make(chan submission, 1024),
	}
}

// Run processes submissions until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Msg("engine started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sub := <-e.submitChan:
			if sub.query != nil {
				sub.query()
				sub.reply <- nil
				continue
			}
			sub.reply <- e.apply(ctx, *sub.cmd)
		}
	}
}

// Submit runs one command through the engine and returns its outcome.
func (e *Engine) Submit(ctx context.Context, cmd Command) error {
	sub := submission{cmd: &cmd, reply: make(chan error, 1)}
	select {
	case e.submitChan <- sub:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-sub.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runQuery executes fn on the core goroutine, serialized with commands.
func (e *Engine) runQuery(ctx context.Context, fn func()) error {
	sub := submission{query: fn, reply: make(chan error, 1)}
	select {
	case e.submitChan <- sub:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-sub.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PoolInfo reads the aggregate snapshot through the serialization point.
func (e *Engine) PoolInfo(ctx context.Context) (pool.Info, error) {
	var info pool.Info
	err := e.runQuery(ctx, func() { info = e.pool.GetInfo() })
	return info, err
}

// UserView is a user's position and pending request.
type UserView struct {
	Position    pool.Position
	HasPosition bool
	Request     pool.Request
	HasRequest  bool
}

func (e *Engine) UserView(ctx context.Context, user uuid.UUID) (UserView, error) {
	var v UserView
	err := e.runQuery(ctx, func() {
		v.Position, v.HasPosition = e.pool.PositionOf(user)
		v.Request, v.HasRequest = e.pool.RequestOf(user)
	})
	return v, err
}

// CycleView is the cycle manager's externally visible state.
type CycleView struct {
	State           cycle.State
	CycleIndex      int64
	LastActionAt    time.Time
	LastSettlePrice int64
	BandOpen        int64
	BandHigh        int64
	BandLow         int64
	BandClose       int64
	RebalancedLPs   int64
	CycleLPCount    int64
	CycleInterest   int64
	InterestIndex   int64
	SplitIndex      int64
}

func (e *Engine) CycleView(ctx context.Context) (CycleView, error) {
	var v CycleView
	err := e.runQuery(ctx, func() {
		band := e.cycles.Band()
		v = CycleView{
			State:           e.cycles.State(),
			CycleIndex:      e.cycles.CycleIndex(),
			LastActionAt:    e.cycles.LastActionAt(),
			LastSettlePrice: e.cycles.LastSettlePrice(),
			BandOpen:        band.Open,
			BandHigh:        band.High,
			BandLow:         band.Low,
			BandClose:       band.Close,
			RebalancedLPs:   e.cycles.RebalancedLPs(),
			CycleLPCount:    e.cycles.CycleLPCount(),
			CycleInterest:   e.cycles.CycleInterest(),
			InterestIndex:   e.cycles.CurrentInterestIndex(),
			SplitIndex:      e.cycles.SplitIndex(),
		}
	})
	return v, err
}

// LPView is a provider's settlement status plus a quote at the given
// price.
type LPView struct {
	LastSettledCycle int64
	HasSettled       bool
	QuoteAmount      int64
	QuoteIsDeposit   bool
}

func (e *Engine) LPView(ctx context.Context, lp uuid.UUID, price int64) (LPView, error) {
	var v LPView
	err := e.runQuery(ctx, func() {
		v.LastSettledCycle, v.HasSettled = e.cycles.LastSettledCycle(lp)
		v.QuoteAmount, v.QuoteIsDeposit = e.cycles.CalculateLPRebalanceAmount(lp, price)
	})
	return v, err
}

func (e *Engine) apply(ctx context.Context, cmd Command) error {
	start := time.Now()
	err := e.dispatch(cmd)
	e.metrics.CoreOpDuration.WithLabelValues(cmd.Kind.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.CoreOpsRejected.WithLabelValues(cmd.Kind.String()).Inc()
		e.log.Debug().
			Str("command_id", cmd.ID.String()).
			Str("kind", cmd.Kind.String()).
			Err(err).
			Msg("command rejected")
		return err
	}

	e.sequence++
	e.metrics.CoreOpsApplied.WithLabelValues(cmd.Kind.String()).Inc()
	e.metrics.CoreSequence.Set(float64(e.sequence))
	e.metrics.CycleIndex.Set(float64(e.cycles.CycleIndex()))
	e.metrics.CycleState.Set(float64(e.cycles.State()))

	switch cmd.Kind {
	case KindRebalancePool, KindRebalanceLP, KindForceRebalanceLP:
		e.metrics.LPsSettled.Inc()
	case KindResolvePriceDeviation:
		if cmd.IsSplit {
			e.metrics.SplitsResolved.Inc()
		}
	}

	info := e.pool.GetInfo()
	e.metrics.TotalDeposits.Set(float64(info.TotalDeposits))
	e.metrics.QueuedDeposits.Set(float64(info.QueuedDeposits))
	e.metrics.QueuedRedemptions.Set(float64(info.QueuedRedemptions))
	e.metrics.SyntheticSupply.Set(float64(info.TotalSupply))

	op := AppliedOp{
		Sequence:       e.sequence,
		Command:        cmd,
		CycleIndex:     e.cycles.CycleIndex(),
		State:          e.cycles.State(),
		CompletedCycle: e.cycles.TakeCompletedCycle(),
	}
	if op.CompletedCycle != nil {
		e.metrics.CyclesCompleted.Inc()
		if op.CompletedCycle.Halted {
			e.metrics.CyclesHalted.Inc()
		}
	}

	// Persist is the durability path: block rather than drop.
	select {
	case e.persistChan <- op:
	default:
		e.metrics.PersistBackpressure.Inc()
		select {
		case e.persistChan <- op:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	note := Notification{
		Sequence:   e.sequence,
		Kind:       cmd.Kind.String(),
		CycleIndex: e.cycles.CycleIndex(),
		State:      e.cycles.State().String(),
		Timestamp:  cmd.Timestamp,
	}
	select {
	case e.publishChan <- note:
	default:
		e.metrics.PublishDrops.Inc()
	}

	return nil
}

func (e *Engine) dispatch(cmd Command) error {
	if cmd.Timestamp.IsZero() {
		return fmt.Errorf("command %s: zero timestamp", cmd.ID)
	}

	switch cmd.Kind {
	case KindDepositRequest:
		return e.pool.DepositRequest(cmd.Account, cmd.Amount, cmd.Collateral)
	case KindDepositRequestNoCollateral:
		return e.pool.DepositRequestWithoutCollateral(cmd.Account, cmd.Amount)
	case KindRedemptionRequest:
		return e.pool.RedemptionRequest(cmd.Account, cmd.Amount)
	case KindClaimAsset:
		return e.pool.ClaimAsset(cmd.Account, cmd.Timestamp)
	case KindClaimReserve:
		return e.pool.ClaimReserve(cmd.Account, cmd.Timestamp)
	case KindAddCollateral:
		return e.pool.AddCollateral(cmd.Account, cmd.Amount)
	case KindReduceCollateral:
		return e.pool.ReduceCollateral(cmd.Account, cmd.Amount)
	case KindInitiateOffchainRebalance:
		return e.cycles.InitiateOffchainRebalance(cmd.Caller, cmd.Timestamp)
	case KindInitiateOnchainRebalance:
		return e.cycles.InitiateOnchainRebalance(cmd.Caller, cmd.Timestamp)
	case KindRebalancePool:
		return e.cycles.RebalancePool(cmd.Caller, cmd.Account, cmd.Price, cmd.Timestamp)
	case KindRebalanceLP:
		return e.cycles.RebalanceLP(cmd.Caller, cmd.Account, cmd.Timestamp)
	case KindForceRebalanceLP:
		return e.cycles.ForceRebalanceLP(cmd.Caller, cmd.Account, cmd.Timestamp)
	case KindResolvePriceDeviation:
		return e.cycles.ResolvePriceDeviation(cmd.Caller, cmd.IsSplit, cmd.Numerator, cmd.Denominator, cmd.Timestamp)
	default:
		return fmt.Errorf("kind %d: %w", cmd.Kind, ErrUnknownCommand)
	}
}

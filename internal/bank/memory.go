package bank

import (
	"fmt"

	"github.com/google/uuid"

	"SynthPool/internal/fpmath"
)

// InMemory implements ReserveBank and SyntheticToken with double-entry
// bookkeeping: every Pull/Push moves value between an account bucket and
// the pool bucket, so the sum over all buckets is invariant. Owned by
// the core goroutine, therefore unsynchronized.
type InMemory struct {
	reserve     map[uuid.UUID]int64
	poolReserve int64

	synth    map[uuid.UUID]int64
	escrowed int64
	supply   int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		reserve: make(map[uuid.UUID]int64),
		synth:   make(map[uuid.UUID]int64),
	}
}

// Credit funds an external account, e.g. from a deposit bridge.
func (b *InMemory) Credit(id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.reserve[id] += amount
	return nil
}

func (b *InMemory) Pull(from uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.reserve[from] < amount {
		return fmt.Errorf("pull %d from %s: %w", amount, from, ErrInsufficientFunds)
	}
	b.reserve[from] -= amount
	b.poolReserve += amount
	return nil
}

func (b *InMemory) Push(to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.poolReserve < amount {
		return fmt.Errorf("push %d to %s: %w", amount, to, ErrInsufficientFunds)
	}
	b.poolReserve -= amount
	b.reserve[to] += amount
	return nil
}

func (b *InMemory) PoolBalance() int64 {
	return b.poolReserve
}

func (b *InMemory) ReserveBalance(id uuid.UUID) int64 {
	return b.reserve[id]
}

func (b *InMemory) Mint(to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.synth[to] += amount
	b.supply += amount
	return nil
}

func (b *InMemory) BalanceOf(id uuid.UUID) int64 {
	return b.synth[id]
}

func (b *InMemory) TotalSupply() int64 {
	return b.supply
}

func (b *InMemory) Escrow(from uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.synth[from] < amount {
		return fmt.Errorf("escrow %d from %s: %w", amount, from, ErrInsufficientFunds)
	}
	b.synth[from] -= amount
	b.escrowed += amount
	return nil
}

func (b *InMemory) Release(to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.escrowed < amount {
		return fmt.Errorf("release %d to %s: %w", amount, to, ErrInsufficientEscrow)
	}
	b.escrowed -= amount
	b.synth[to] += amount
	return nil
}

func (b *InMemory) BurnEscrowed(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.escrowed < amount {
		return fmt.Errorf("burn %d: %w", amount, ErrInsufficientEscrow)
	}
	b.escrowed -= amount
	b.supply -= amount
	return nil
}

// Rebase rescales every synthetic balance by numerator/denominator and
// recomputes supply from the rescaled balances so conservation survives
// per-balance rounding.
func (b *InMemory) Rebase(numerator, denominator int64) error {
	if numerator <= 0 || denominator <= 0 {
		return fmt.Errorf("rebase ratio %d/%d: %w", numerator, denominator, ErrInvalidAmount)
	}
	var supply int64
	for id, bal := range b.synth {
		scaled := fpmath.ApplyRatio(bal, numerator, denominator)
		b.synth[id] = scaled
		supply += scaled
	}
	b.escrowed = fpmath.ApplyRatio(b.escrowed, numerator, denominator)
	b.supply = supply + b.escrowed
	return nil
}

// EscrowedSupply reports units held for pending redemptions.
func (b *InMemory) EscrowedSupply() int64 {
	return b.escrowed
}

package bank

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds  = errors.New("bank: insufficient funds")
	ErrInsufficientEscrow = errors.New("bank: insufficient escrow")
	ErrInvalidAmount      = errors.New("bank: amount must be positive")
)

// ReserveBank moves reserve currency between external accounts and the
// pool. The pool side of every transfer is implicit.
type ReserveBank interface {
	// Pull transfers amount from the account into the pool.
	Pull(from uuid.UUID, amount int64) error
	// Push transfers amount from the pool to the account.
	Push(to uuid.UUID, amount int64) error
	PoolBalance() int64
}

// SyntheticToken is the minted asset. Mechanics beyond these operations
// (transfers between holders, external rebase) live outside the core.
type SyntheticToken interface {
	Mint(to uuid.UUID, amount int64) error
	BalanceOf(id uuid.UUID) int64
	TotalSupply() int64
	// Escrow moves units from a holder into the pool's redemption escrow.
	Escrow(from uuid.UUID, amount int64) error
	// Release returns escrowed units to a holder.
	Release(to uuid.UUID, amount int64) error
	// BurnEscrowed destroys escrowed units.
	BurnEscrowed(amount int64) error
	// Rebase rescales every balance by numerator/denominator.
	Rebase(numerator, denominator int64) error
}

package pool

import "errors"

var (
	ErrPoolNotActive          = errors.New("pool not active")
	ErrPoolNotClaimable       = errors.New("pool not active or halted")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrRequestPending         = errors.New("request already pending")
	ErrInsufficientLiquidity  = errors.New("insufficient pool liquidity")
	ErrInsufficientBalance    = errors.New("insufficient synthetic balance")
	ErrInsufficientCollateral = errors.New("collateral below minimum ratio")
	ErrExcessiveWithdrawal    = errors.New("withdrawal would breach minimum collateral")
	ErrNothingToClaim         = errors.New("nothing to claim")
)

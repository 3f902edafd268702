package cycle

import "errors"

var (
	ErrInvalidCycleState            = errors.New("invalid cycle state")
	ErrMarketOpen                   = errors.New("tracked market is open")
	ErrMarketClosed                 = errors.New("tracked market is closed")
	ErrOracleNotUpdated             = errors.New("oracle not updated recently enough")
	ErrOnChainRebalancingInProgress = errors.New("on-chain rebalancing window still running")
	ErrNotLP                        = errors.New("not a recognized liquidity provider")
	ErrNoLiquidityProviders         = errors.New("no liquidity providers to settle")
	ErrUnauthorizedCaller           = errors.New("caller not authorized")
	ErrAlreadyRebalanced            = errors.New("provider already settled this cycle")
	ErrInvalidRebalancePrice        = errors.New("price outside session band")
	ErrInvalidSplitRatio            = errors.New("split ratio must be positive")
)

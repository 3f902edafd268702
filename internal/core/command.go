package core

import (
	"time"

	"github.com/google/uuid"
)

// CommandKind enumerates every mutating operation the engine accepts.
type CommandKind int32

const (
	KindUnknown CommandKind = iota
	KindDepositRequest
	KindDepositRequestNoCollateral
	KindRedemptionRequest
	KindClaimAsset
	KindClaimReserve
	KindAddCollateral
	KindReduceCollateral
	KindInitiateOffchainRebalance
	KindInitiateOnchainRebalance
	KindRebalancePool
	KindRebalanceLP
	KindForceRebalanceLP
	KindResolvePriceDeviation
)

func (k CommandKind) String() string {
	switch k {
	case KindDepositRequest:
		return "deposit_request"
	case KindDepositRequestNoCollateral:
		return "deposit_request_no_collateral"
	case KindRedemptionRequest:
		return "redemption_request"
	case KindClaimAsset:
		return "claim_asset"
	case KindClaimReserve:
		return "claim_reserve"
	case KindAddCollateral:
		return "add_collateral"
	case KindReduceCollateral:
		return "reduce_collateral"
	case KindInitiateOffchainRebalance:
		return "initiate_offchain_rebalance"
	case KindInitiateOnchainRebalance:
		return "initiate_onchain_rebalance"
	case KindRebalancePool:
		return "rebalance_pool"
	case KindRebalanceLP:
		return "rebalance_lp"
	case KindForceRebalanceLP:
		return "force_rebalance_lp"
	case KindResolvePriceDeviation:
		return "resolve_price_deviation"
	default:
		return "unknown"
	}
}

// Command is one serialized operation. Caller is the authenticated
// origin; Account is the user or provider the operation acts on (equal
// to Caller except for third-party claims and settlements). Timestamp
// is assigned at the edge — the core never reads the wall clock.
type Command struct {
	ID          uuid.UUID
	Kind        CommandKind
	Caller      uuid.UUID
	Account     uuid.UUID
	Amount      int64
	Collateral  int64
	Price       int64
	IsSplit     bool
	Numerator   int64
	Denominator int64
	Timestamp   time.Time
}

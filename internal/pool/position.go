package pool

import (
	"github.com/google/uuid"
)

// RequestType distinguishes the single pending request a user may hold.
type RequestType int32

const (
	RequestNone RequestType = iota
	RequestDeposit
	RequestRedemption
)

func (t RequestType) String() string {
	switch t {
	case RequestNone:
		return "NONE"
	case RequestDeposit:
		return "DEPOSIT"
	case RequestRedemption:
		return "REDEMPTION"
	default:
		return "UNKNOWN"
	}
}

// Request is a queued deposit or redemption awaiting the next cycle's
// settlement price. Amount is reserve currency for deposits and
// escrowed synthetic units for redemptions.
type Request struct {
	Type       RequestType
	Amount     int64
	Collateral int64
	Cycle      int64 // cycle the request was filed in
	SplitStamp int64 // split counter at filing / last reconcile
}

// Position is a user's claimed holding.
type Position struct {
	UserID           uuid.UUID
	AssetAmount      int64 // synthetic units
	DepositAmount    int64 // reserve backing
	CollateralAmount int64 // reserve collateral
	EntryIndex       int64 // interest index stamp, 1e12 scale
	SplitStamp       int64 // split counter at last reconcile
	Version          int64
}

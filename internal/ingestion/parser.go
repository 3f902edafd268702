package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"SynthPool/internal/core"
	"SynthPool/internal/oracle"
)

// OracleUpdateKind distinguishes the three oracle subjects.
type OracleUpdateKind int32

const (
	OracleUpdatePrice OracleUpdateKind = iota
	OracleUpdateSession
	OracleUpdateMarketState
)

// OracleUpdate is a parsed message from one of the synth.oracle.*
// subjects, applied to the oracle feed by the shell.
type OracleUpdate struct {
	Kind       OracleUpdateKind
	Price      int64
	Session    oracle.OHLC
	MarketOpen bool
	Timestamp  time.Time
}

// IsOracleSubject reports whether a raw message belongs to the oracle
// feed rather than the command stream.
func IsOracleSubject(subject string) bool {
	return strings.HasPrefix(subject, "synth.oracle.")
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers; timestamps
// are integer microseconds.

type priceJSON struct {
	Price       int64 `json:"price"`
	TimestampUs int64 `json:"timestamp_us"`
}

type sessionJSON struct {
	Open        int64 `json:"open"`
	High        int64 `json:"high"`
	Low         int64 `json:"low"`
	Close       int64 `json:"close"`
	TimestampUs int64 `json:"timestamp_us"`
}

type marketStateJSON struct {
	Open        bool  `json:"open"`
	TimestampUs int64 `json:"timestamp_us"`
}

// ParseOracleUpdate converts a synth.oracle.* message.
func ParseOracleUpdate(subject string, data []byte) (*OracleUpdate, error) {
	switch subject {
	case "synth.oracle.price":
		var j priceJSON
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, fmt.Errorf("parse oracle price: %w", err)
		}
		return &OracleUpdate{
			Kind:      OracleUpdatePrice,
			Price:     j.Price,
			Timestamp: time.UnixMicro(j.TimestampUs),
		}, nil

	case "synth.oracle.session":
		var j sessionJSON
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, fmt.Errorf("parse oracle session: %w", err)
		}
		return &OracleUpdate{
			Kind: OracleUpdateSession,
			Session: oracle.OHLC{
				Open:      j.Open,
				High:      j.High,
				Low:       j.Low,
				Close:     j.Close,
				Timestamp: time.UnixMicro(j.TimestampUs),
			},
			Timestamp: time.UnixMicro(j.TimestampUs),
		}, nil

	case "synth.oracle.market":
		var j marketStateJSON
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, fmt.Errorf("parse oracle market state: %w", err)
		}
		return &OracleUpdate{
			Kind:       OracleUpdateMarketState,
			MarketOpen: j.Open,
			Timestamp:  time.UnixMicro(j.TimestampUs),
		}, nil

	default:
		return nil, fmt.Errorf("unknown oracle subject: %s", subject)
	}
}

type userOpJSON struct {
	CommandID   string `json:"command_id"`
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Collateral  int64  `json:"collateral"`
	TimestampUs int64  `json:"timestamp_us"`
}

type claimJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	UserID      string `json:"user_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

type initiateJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

type rebalancePoolJSON struct {
	CommandID   string `json:"command_id"`
	LPID        string `json:"lp_id"`
	Price       int64  `json:"price"`
	TimestampUs int64  `json:"timestamp_us"`
}

type rebalanceLPJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	LPID        string `json:"lp_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

type resolveJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	IsSplit     bool   `json:"is_split"`
	Numerator   int64  `json:"numerator"`
	Denominator int64  `json:"denominator"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParseCommand converts a synth.ops.* message into an engine command.
func ParseCommand(subject string, data []byte) (core.Command, error) {
	switch subject {
	case "synth.ops.requests.deposit":
		j, cmd, err := parseUserOp(data, core.KindDepositRequest)
		if err != nil {
			return core.Command{}, err
		}
		cmd.Collateral = j.Collateral
		return cmd, nil

	case "synth.ops.requests.deposit_bare":
		_, cmd, err := parseUserOp(data, core.KindDepositRequestNoCollateral)
		return cmd, err

	case "synth.ops.requests.redeem":
		_, cmd, err := parseUserOp(data, core.KindRedemptionRequest)
		return cmd, err

	case "synth.ops.claims.asset":
		return parseClaim(data, core.KindClaimAsset)

	case "synth.ops.claims.reserve":
		return parseClaim(data, core.KindClaimReserve)

	case "synth.ops.collateral.add":
		_, cmd, err := parseUserOp(data, core.KindAddCollateral)
		return cmd, err

	case "synth.ops.collateral.reduce":
		_, cmd, err := parseUserOp(data, core.KindReduceCollateral)
		return cmd, err

	case "synth.ops.rebalance.offchain":
		return parseInitiate(data, core.KindInitiateOffchainRebalance)

	case "synth.ops.rebalance.onchain":
		return parseInitiate(data, core.KindInitiateOnchainRebalance)

	case "synth.ops.rebalance.pool":
		var j rebalancePoolJSON
		if err := json.Unmarshal(data, &j); err != nil {
			return core.Command{}, fmt.Errorf("parse rebalance pool: %w", err)
		}
		id, err := uuid.Parse(j.CommandID)
		if err != nil {
			return core.Command{}, fmt.Errorf("parse command_id: %w", err)
		}
		lp, err := uuid.Parse(j.LPID)
		if err != nil {
			return core.Command{}, fmt.Errorf("parse lp_id: %w", err)
		}
		return core.Command{
			ID:        id,
			Kind:      core.KindRebalancePool,
			Caller:    lp,
			Account:   lp,
			Price:     j.Price,
			Timestamp: time.UnixMicro(j.TimestampUs),
		}, nil

	case "synth.ops.rebalance.lp":
		return parseThirdPartySettle(data, core.KindRebalanceLP)

	case "synth.ops.rebalance.force":
		return parseThirdPartySettle(data, core.KindForceRebalanceLP)

	case "synth.ops.admin.resolve":
		var j resolveJSON
		if err := json.Unmarshal(data, &j); err != nil {
			return core.Command{}, fmt.Errorf("parse resolve deviation: %w", err)
		}
		id, err := uuid.Parse(j.CommandID)
		if err != nil {
			return core.Command{}, fmt.Errorf("parse command_id: %w", err)
		}
		caller, err := uuid.Parse(j.CallerID)
		if err != nil {
			return core.Command{}, fmt.Errorf("parse caller_id: %w", err)
		}
		return core.Command{
			ID:          id,
			Kind:        core.KindResolvePriceDeviation,
			Caller:      caller,
			Account:     caller,
			IsSplit:     j.IsSplit,
			Numerator:   j.Numerator,
			Denominator: j.Denominator,
			Timestamp:   time.UnixMicro(j.TimestampUs),
		}, nil

	default:
		return core.Command{}, fmt.Errorf("unknown ops subject: %s", subject)
	}
}

func parseUserOp(data []byte, kind core.CommandKind) (userOpJSON, core.Command, error) {
	var j userOpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return j, core.Command{}, fmt.Errorf("parse %s: %w", kind, err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return j, core.Command{}, fmt.Errorf("parse command_id: %w", err)
	}
	user, err := uuid.Parse(j.UserID)
	if err != nil {
		return j, core.Command{}, fmt.Errorf("parse user_id: %w", err)
	}
	return j, core.Command{
		ID:        id,
		Kind:      kind,
		Caller:    user,
		Account:   user,
		Amount:    j.Amount,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseClaim(data []byte, kind core.CommandKind) (core.Command, error) {
	var j claimJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return core.Command{}, fmt.Errorf("parse %s: %w", kind, err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse command_id: %w", err)
	}
	caller, err := uuid.Parse(j.CallerID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse caller_id: %w", err)
	}
	user, err := uuid.Parse(j.UserID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse user_id: %w", err)
	}
	return core.Command{
		ID:        id,
		Kind:      kind,
		Caller:    caller,
		Account:   user,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseInitiate(data []byte, kind core.CommandKind) (core.Command, error) {
	var j initiateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return core.Command{}, fmt.Errorf("parse %s: %w", kind, err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse command_id: %w", err)
	}
	caller, err := uuid.Parse(j.CallerID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse caller_id: %w", err)
	}
	return core.Command{
		ID:        id,
		Kind:      kind,
		Caller:    caller,
		Account:   caller,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseThirdPartySettle(data []byte, kind core.CommandKind) (core.Command, error) {
	var j rebalanceLPJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return core.Command{}, fmt.Errorf("parse %s: %w", kind, err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse command_id: %w", err)
	}
	caller, err := uuid.Parse(j.CallerID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse caller_id: %w", err)
	}
	lp, err := uuid.Parse(j.LPID)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse lp_id: %w", err)
	}
	return core.Command{
		ID:        id,
		Kind:      kind,
		Caller:    caller,
		Account:   lp,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

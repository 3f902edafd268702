package cycle

// State is the pool lifecycle state.
type State int32

const (
	StateActive State = iota
	StateRebalancingOffchain
	StateRebalancingOnchain
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateRebalancingOffchain:
		return "REBALANCING_OFFCHAIN"
	case StateRebalancingOnchain:
		return "REBALANCING_ONCHAIN"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// validTransitions defines the lifecycle graph. HALTED is terminal:
// claims stay serviceable but no further cycle may start.
var validTransitions = map[State][]State{
	StateActive:              {StateRebalancingOffchain},
	StateRebalancingOffchain: {StateRebalancingOnchain},
	StateRebalancingOnchain:  {StateActive, StateHalted},
	StateHalted:              {},
}

func (s State) CanTransitionTo(target State) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

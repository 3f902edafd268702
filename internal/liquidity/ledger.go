package liquidity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrUnknownLP = errors.New("liquidity: unknown provider")

// Ledger reports the liquidity-provider book backing the pool. LP
// admission, withdrawal rules and liquidation live behind this interface;
// the core only reads it.
type Ledger interface {
	LPCount() int64
	IsLP(id uuid.UUID) bool
	Liquidity(id uuid.UUID) int64
	TotalLiquidity() int64
}

// Manager is the in-memory Ledger used by the binary and tests. It is
// owned by the core goroutine and therefore unsynchronized.
type Manager struct {
	providers map[uuid.UUID]int64
	total     int64
}

func NewManager() *Manager {
	return &Manager{providers: make(map[uuid.UUID]int64)}
}

// Join registers a provider or tops up an existing one.
func (m *Manager) Join(id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("liquidity: join amount must be positive, got %d", amount)
	}
	m.providers[id] += amount
	m.total += amount
	return nil
}

// Withdraw reduces a provider's stake, removing it at zero.
func (m *Manager) Withdraw(id uuid.UUID, amount int64) error {
	held, ok := m.providers[id]
	if !ok {
		return ErrUnknownLP
	}
	if amount <= 0 || amount > held {
		return fmt.Errorf("liquidity: cannot withdraw %d of %d", amount, held)
	}
	if amount == held {
		delete(m.providers, id)
	} else {
		m.providers[id] = held - amount
	}
	m.total -= amount
	return nil
}

func (m *Manager) LPCount() int64 {
	return int64(len(m.providers))
}

func (m *Manager) IsLP(id uuid.UUID) bool {
	_, ok := m.providers[id]
	return ok
}

func (m *Manager) Liquidity(id uuid.UUID) int64 {
	return m.providers[id]
}

func (m *Manager) TotalLiquidity() int64 {
	return m.total
}

package pool

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/reservelabs/reserve-gateway/internal/reserve"
)

// Memory is an in-memory pool for tests and local mode. Same semantics as
// Store, no Redis.
type Memory struct {
	mu         sync.Mutex
	base       *big.Int
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
}

// NewMemory creates an in-memory pool seeded with the given base reserve and
// wrapped supply. Nil seeds mean empty.
func NewMemory(baseBalance, wrappedSupply *big.Int) *Memory {
	m := &Memory{
		base:       new(big.Int),
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
	if baseBalance != nil {
		m.base.Set(baseBalance)
	}
	if wrappedSupply != nil {
		m.supply.Set(wrappedSupply)
	}
	return m
}

func (m *Memory) TotalBaseBalance(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.base), nil
}

func (m *Memory) TotalWrappedSupply(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.supply), nil
}

func (m *Memory) ReceiveBase(_ context.Context, _ common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base.Add(m.base, amount)
	return nil
}

func (m *Memory) ReleaseBase(_ context.Context, _ common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base.Cmp(amount) < 0 {
		return fmt.Errorf("reserve underfunded: have %s, need %s", m.base, amount)
	}
	m.base.Sub(m.base, amount)
	return nil
}

func (m *Memory) CreditTo(_ context.Context, account common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = add(m.balances[account], amount)
	m.supply.Add(m.supply, amount)
	return nil
}

func (m *Memory) DebitFrom(_ context.Context, account common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowance := m.allowances[account]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return reserve.ErrInsufficientAuthorization
	}
	bal := m.balances[account]
	if bal == nil || bal.Cmp(amount) < 0 {
		return reserve.ErrInsufficientBalance
	}
	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	m.supply.Sub(m.supply, amount)
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Allowance(_ context.Context, account common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.allowances[account]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Approve(_ context.Context, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("allowance must be >= 0")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[account] = new(big.Int).Set(amount)
	return nil
}

func add(a, b *big.Int) *big.Int {
	if a == nil {
		return new(big.Int).Set(b)
	}
	return a.Add(a, b)
}

// Package oracle provides the protocol settings the gateway reads: deposit
// fee rate, enable flag, capacity ceiling, and cooldown length.
package oracle

import (
	"context"
	"math/big"
	"sync"

	"github.com/reservelabs/reserve-gateway/internal/reserve"
)

// Static serves a fixed settings snapshot, replaceable at runtime. Used in
// local mode and tests.
type Static struct {
	mu       sync.RWMutex
	settings reserve.Settings
}

// NewStatic creates a static source. A nil fee rate means zero fee; a nil
// max deposit means uncapped.
func NewStatic(s reserve.Settings) *Static {
	if s.DepositFeeRate == nil {
		s.DepositFeeRate = new(big.Int)
	}
	return &Static{settings: s}
}

func (s *Static) Settings(_ context.Context) (*reserve.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.DepositFeeRate = new(big.Int).Set(s.settings.DepositFeeRate)
	if s.settings.MaxDepositAmount != nil {
		out.MaxDepositAmount = new(big.Int).Set(s.settings.MaxDepositAmount)
	}
	return &out, nil
}

// Update replaces the served settings.
func (s *Static) Update(next reserve.Settings) {
	if next.DepositFeeRate == nil {
		next.DepositFeeRate = new(big.Int)
	}
	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()
}

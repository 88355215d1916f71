package reserve

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Gateway converts between the base asset and the pool-backed wrapped token.
// It owns the capacity/availability gating and the per-account deposit
// cooldown; pool balances and token issuance live behind the injected
// collaborators.
//
// Mutating operations are serialized: at most one deposit or redemption is
// in flight at a time, so a cooldown check always observes a fully committed
// ledger.
type Gateway struct {
	settings SettingsSource
	reserve  ReserveReader
	token    WrappedToken
	sink     DepositSink
	ledger   DepositLedger
	clock    BlockClock
	logger   *logrus.Logger

	// onReceipt, if set, is called after every committed operation.
	onReceipt func(*Receipt)

	mu sync.Mutex
}

// GatewayDeps bundles the collaborators a Gateway needs.
type GatewayDeps struct {
	Settings SettingsSource
	Reserve  ReserveReader
	Token    WrappedToken
	Sink     DepositSink
	Ledger   DepositLedger
	Clock    BlockClock
	Logger   *logrus.Logger
}

// NewGateway creates a gateway. All dependencies except the logger are
// required.
func NewGateway(deps GatewayDeps) (*Gateway, error) {
	switch {
	case deps.Settings == nil:
		return nil, fmt.Errorf("settings source is nil")
	case deps.Reserve == nil:
		return nil, fmt.Errorf("reserve reader is nil")
	case deps.Token == nil:
		return nil, fmt.Errorf("wrapped token is nil")
	case deps.Sink == nil:
		return nil, fmt.Errorf("deposit sink is nil")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("deposit ledger is nil")
	case deps.Clock == nil:
		return nil, fmt.Errorf("block clock is nil")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Gateway{
		settings: deps.Settings,
		reserve:  deps.Reserve,
		token:    deps.Token,
		sink:     deps.Sink,
		ledger:   deps.Ledger,
		clock:    deps.Clock,
		logger:   logger,
	}, nil
}

// OnReceipt registers a callback invoked after each committed deposit or
// redemption (used to fan receipts out to the history pipeline).
func (g *Gateway) OnReceipt(fn func(*Receipt)) {
	g.onReceipt = fn
}

// snapshot reads a fresh pool state for pricing. Never cached.
func (g *Gateway) snapshot(ctx context.Context, feeRate *big.Int) (*State, error) {
	base, err := g.reserve.TotalBaseBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("read base balance: %w", err)
	}
	supply, err := g.reserve.TotalWrappedSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("read wrapped supply: %w", err)
	}
	return &State{
		TotalBaseBalance:   base,
		TotalWrappedSupply: supply,
		DepositFeeRate:     feeRate,
	}, nil
}

// QuoteDeposit prices a deposit without executing it.
func (g *Gateway) QuoteDeposit(ctx context.Context, baseAmount *big.Int) (*Quote, error) {
	if baseAmount == nil || baseAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	state, err := g.snapshot(ctx, s.DepositFeeRate)
	if err != nil {
		return nil, err
	}
	return QuoteBaseToWrapped(state, baseAmount), nil
}

// QuoteRedeem prices a redemption without executing it.
func (g *Gateway) QuoteRedeem(ctx context.Context, wrappedAmount *big.Int) (*big.Int, error) {
	if wrappedAmount == nil || wrappedAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	state, err := g.snapshot(ctx, s.DepositFeeRate)
	if err != nil {
		return nil, err
	}
	return QuoteWrappedToBase(state, wrappedAmount)
}

// Availability returns the deposit enable flag and the per-deposit ceiling
// so callers can pre-validate before attempting a deposit.
func (g *Gateway) Availability(ctx context.Context) (bool, *big.Int, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("read settings: %w", err)
	}
	return s.DepositsEnabled, s.MaxDepositAmount, nil
}

// DepositDelay returns the configured cooldown length in blocks.
func (g *Gateway) DepositDelay(ctx context.Context) (uint64, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return 0, fmt.Errorf("read settings: %w", err)
	}
	return s.DepositDelayBlocks, nil
}

// LastDepositBlock returns the block of the account's most recent deposit,
// 0 if it has never deposited.
func (g *Gateway) LastDepositBlock(ctx context.Context, account common.Address) (uint64, error) {
	return g.ledger.LastDepositBlock(ctx, account)
}

// CooldownStatus describes where an account sits in its deposit cooldown.
type CooldownStatus struct {
	LastDepositBlock uint64
	CurrentBlock     uint64
	DelayBlocks      uint64
	BlocksRemaining  uint64
	Redeemable       bool
}

// Cooldown reports the account's cooldown state at the current block.
func (g *Gateway) Cooldown(ctx context.Context, account common.Address) (*CooldownStatus, error) {
	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	block, err := g.clock.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("read block height: %w", err)
	}
	last, err := g.ledger.LastDepositBlock(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("read deposit block: %w", err)
	}

	status := &CooldownStatus{
		LastDepositBlock: last,
		CurrentBlock:     block,
		DelayBlocks:      s.DepositDelayBlocks,
	}
	elapsed := uint64(0)
	if block >= last {
		elapsed = block - last
	}
	if elapsed >= s.DepositDelayBlocks {
		status.Redeemable = true
	} else {
		status.BlocksRemaining = s.DepositDelayBlocks - elapsed
	}
	return status, nil
}

// Deposit converts baseAmount of the base asset into wrapped token for the
// account. The base asset moves to the deposit sink, the wrapped token is
// credited, and the account's cooldown restarts at the current block.
//
// The ledger is written before the funds move: if a later step fails the
// account may carry a cooldown for a deposit that never landed, but a
// landed deposit can never be left without its cooldown.
func (g *Gateway) Deposit(ctx context.Context, account common.Address, baseAmount *big.Int) (*Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if baseAmount == nil || baseAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if !s.DepositsEnabled {
		return nil, ErrDepositsDisabled
	}
	// Inclusive ceiling, checked against the deposit amount alone.
	if s.MaxDepositAmount != nil && baseAmount.Cmp(s.MaxDepositAmount) > 0 {
		return nil, ErrCapacityExceeded
	}

	state, err := g.snapshot(ctx, s.DepositFeeRate)
	if err != nil {
		return nil, err
	}
	quote := QuoteBaseToWrapped(state, baseAmount)

	block, err := g.clock.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("read block height: %w", err)
	}
	if err := g.ledger.RecordDeposit(ctx, account, block); err != nil {
		return nil, fmt.Errorf("record deposit block: %w", err)
	}

	if err := g.sink.ReceiveBase(ctx, account, baseAmount); err != nil {
		return nil, fmt.Errorf("forward base asset: %w", err)
	}
	if err := g.token.CreditTo(ctx, account, quote.OutputAmount); err != nil {
		return nil, fmt.Errorf("credit wrapped token: %w", err)
	}

	receipt := &Receipt{
		Account:   account,
		Kind:      "deposit",
		AmountIn:  baseAmount,
		AmountOut: quote.OutputAmount,
		Fee:       quote.FeeAmount,
		Block:     block,
		Timestamp: time.Now().UTC(),
	}

	g.logger.WithFields(logrus.Fields{
		"account": account.Hex(),
		"in":      baseAmount.String(),
		"out":     quote.OutputAmount.String(),
		"fee":     quote.FeeAmount.String(),
		"block":   block,
	}).Info("deposit executed")

	if g.onReceipt != nil {
		g.onReceipt(receipt)
	}
	return receipt, nil
}

// Redeem converts wrappedAmount of the wrapped token back into base asset
// for the account. Rejected with ErrCooldownActive until DepositDelayBlocks
// have elapsed since the account's last deposit; elapsing exactly the delay
// is enough. Redeeming does not reset the cooldown.
func (g *Gateway) Redeem(ctx context.Context, account common.Address, wrappedAmount *big.Int) (*Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if wrappedAmount == nil || wrappedAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	s, err := g.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	block, err := g.clock.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("read block height: %w", err)
	}
	last, err := g.ledger.LastDepositBlock(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("read deposit block: %w", err)
	}
	if last > block || block-last < s.DepositDelayBlocks {
		return nil, ErrCooldownActive
	}

	state, err := g.snapshot(ctx, s.DepositFeeRate)
	if err != nil {
		return nil, err
	}
	baseOut, err := QuoteWrappedToBase(state, wrappedAmount)
	if err != nil {
		return nil, err
	}

	if err := g.token.DebitFrom(ctx, account, wrappedAmount); err != nil {
		return nil, fmt.Errorf("debit wrapped token: %w", err)
	}
	if err := g.sink.ReleaseBase(ctx, account, baseOut); err != nil {
		return nil, fmt.Errorf("release base asset: %w", err)
	}

	receipt := &Receipt{
		Account:   account,
		Kind:      "redeem",
		AmountIn:  wrappedAmount,
		AmountOut: baseOut,
		Fee:       new(big.Int),
		Block:     block,
		Timestamp: time.Now().UTC(),
	}

	g.logger.WithFields(logrus.Fields{
		"account": account.Hex(),
		"in":      wrappedAmount.String(),
		"out":     baseOut.String(),
		"block":   block,
	}).Info("redemption executed")

	if g.onReceipt != nil {
		g.onReceipt(receipt)
	}
	return receipt, nil
}

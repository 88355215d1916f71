package reserve

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is a point-in-time snapshot of the reserve pool used by the quote
// functions. Snapshots are taken fresh per operation and never cached, so a
// quote always prices off the current pool ratio.
type State struct {
	TotalBaseBalance   *big.Int
	TotalWrappedSupply *big.Int
	DepositFeeRate     *big.Int // fraction of FeeScale (1e18)
}

// Quote is the result of pricing a deposit: the wrapped amount the depositor
// receives and the fee retained by the pool.
type Quote struct {
	OutputAmount *big.Int
	FeeAmount    *big.Int
}

// Settings are the protocol-governed gateway parameters, read-only here.
type Settings struct {
	DepositFeeRate     *big.Int
	DepositsEnabled    bool
	MaxDepositAmount   *big.Int
	DepositDelayBlocks uint64
}

// SettingsSource provides the current protocol settings.
type SettingsSource interface {
	Settings(ctx context.Context) (*Settings, error)
}

// ReserveReader reads the pool totals backing the wrapped token.
type ReserveReader interface {
	TotalBaseBalance(ctx context.Context) (*big.Int, error)
	TotalWrappedSupply(ctx context.Context) (*big.Int, error)
}

// WrappedToken is the issuance side of the wrapped token. CreditTo is
// mint-equivalent, DebitFrom is burn-equivalent and must fail with
// ErrInsufficientBalance or ErrInsufficientAuthorization when the account
// cannot cover the amount.
type WrappedToken interface {
	CreditTo(ctx context.Context, account common.Address, amount *big.Int) error
	DebitFrom(ctx context.Context, account common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// DepositSink is where deposited base asset goes and redeemed base asset
// comes from.
type DepositSink interface {
	ReceiveBase(ctx context.Context, from common.Address, amount *big.Int) error
	ReleaseBase(ctx context.Context, to common.Address, amount *big.Int) error
}

// DepositLedger tracks the last deposit block per account. Entries are
// created lazily on first deposit and never deleted; a missing entry reads
// as block 0.
type DepositLedger interface {
	LastDepositBlock(ctx context.Context, account common.Address) (uint64, error)
	RecordDeposit(ctx context.Context, account common.Address, block uint64) error
}

// BlockClock reports the host chain's current block height.
type BlockClock interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// Receipt summarises an executed deposit or redemption.
type Receipt struct {
	Account   common.Address
	Kind      string // "deposit" or "redeem"
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
	Block     uint64
	Timestamp time.Time
}

// Package pool holds the reserve state backing the wrapped token: the pool's
// base-asset balance, the outstanding wrapped supply, and per-account wrapped
// balances and gateway allowances.
package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/reservelabs/reserve-gateway/internal/reserve"
)

const (
	baseBalanceKey   = "pool:base_balance"
	wrappedSupplyKey = "pool:wrapped_supply"
	balancesKey      = "pool:balances"
	allowancesKey    = "pool:allowances"
)

// Store is a Redis-backed implementation of reserve.ReserveReader,
// reserve.WrappedToken and reserve.DepositSink. Amounts are stored as
// decimal strings so they round-trip arbitrary-precision values.
//
// The gateway serializes all mutating calls, so reads-then-writes here do
// not race with each other.
type Store struct {
	client redis.Cmdable
}

// NewStore creates a pool store on an existing Redis client.
func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

func (s *Store) getAmount(ctx context.Context, key string) (*big.Int, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return parseAmount(val)
}

func (s *Store) getHashAmount(ctx context.Context, key, field string) (*big.Int, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s[%s]: %w", key, field, err)
	}
	return parseAmount(val)
}

func parseAmount(val string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(val, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("malformed amount %q", val)
	}
	return n, nil
}

// TotalBaseBalance returns the pool's base-asset reserve.
func (s *Store) TotalBaseBalance(ctx context.Context) (*big.Int, error) {
	return s.getAmount(ctx, baseBalanceKey)
}

// TotalWrappedSupply returns the outstanding wrapped-token supply.
func (s *Store) TotalWrappedSupply(ctx context.Context) (*big.Int, error) {
	return s.getAmount(ctx, wrappedSupplyKey)
}

// ReceiveBase adds a deposit to the pool's base reserve.
func (s *Store) ReceiveBase(ctx context.Context, _ common.Address, amount *big.Int) error {
	bal, err := s.getAmount(ctx, baseBalanceKey)
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	if err := s.client.Set(ctx, baseBalanceKey, bal.String(), 0).Err(); err != nil {
		return fmt.Errorf("set base balance: %w", err)
	}
	return nil
}

// ReleaseBase pays a redemption out of the pool's base reserve.
func (s *Store) ReleaseBase(ctx context.Context, _ common.Address, amount *big.Int) error {
	bal, err := s.getAmount(ctx, baseBalanceKey)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("reserve underfunded: have %s, need %s", bal, amount)
	}
	bal.Sub(bal, amount)
	if err := s.client.Set(ctx, baseBalanceKey, bal.String(), 0).Err(); err != nil {
		return fmt.Errorf("set base balance: %w", err)
	}
	return nil
}

// CreditTo mints wrapped token to the account, growing total supply.
func (s *Store) CreditTo(ctx context.Context, account common.Address, amount *big.Int) error {
	bal, err := s.getHashAmount(ctx, balancesKey, account.Hex())
	if err != nil {
		return err
	}
	supply, err := s.getAmount(ctx, wrappedSupplyKey)
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	supply.Add(supply, amount)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, balancesKey, account.Hex(), bal.String())
	pipe.Set(ctx, wrappedSupplyKey, supply.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("credit wrapped: %w", err)
	}
	return nil
}

// DebitFrom burns wrapped token from the account, shrinking total supply.
// The account must hold the amount and have approved the gateway for at
// least that much.
func (s *Store) DebitFrom(ctx context.Context, account common.Address, amount *big.Int) error {
	allowance, err := s.getHashAmount(ctx, allowancesKey, account.Hex())
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return reserve.ErrInsufficientAuthorization
	}
	bal, err := s.getHashAmount(ctx, balancesKey, account.Hex())
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reserve.ErrInsufficientBalance
	}
	supply, err := s.getAmount(ctx, wrappedSupplyKey)
	if err != nil {
		return err
	}

	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	supply.Sub(supply, amount)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, allowancesKey, account.Hex(), allowance.String())
	pipe.HSet(ctx, balancesKey, account.Hex(), bal.String())
	pipe.Set(ctx, wrappedSupplyKey, supply.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("debit wrapped: %w", err)
	}
	return nil
}

// BalanceOf returns the account's wrapped-token balance.
func (s *Store) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return s.getHashAmount(ctx, balancesKey, account.Hex())
}

// Allowance returns how much of the account's wrapped token the gateway may
// move.
func (s *Store) Allowance(ctx context.Context, account common.Address) (*big.Int, error) {
	return s.getHashAmount(ctx, allowancesKey, account.Hex())
}

// Approve sets the account's gateway allowance (an absolute value, not a
// delta).
func (s *Store) Approve(ctx context.Context, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("allowance must be >= 0")
	}
	if err := s.client.HSet(ctx, allowancesKey, account.Hex(), amount.String()).Err(); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

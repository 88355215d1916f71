package reserve

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const ledgerKey = "reserve:deposit_blocks"

// RedisLedger stores last-deposit blocks in a Redis hash keyed by account
// address.
type RedisLedger struct {
	client redis.Cmdable
}

// NewRedisLedger creates a ledger on an existing Redis client.
func NewRedisLedger(client redis.Cmdable) (*RedisLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisLedger{client: client}, nil
}

// LastDepositBlock returns the recorded block for the account, 0 if it has
// never deposited.
func (l *RedisLedger) LastDepositBlock(ctx context.Context, account common.Address) (uint64, error) {
	val, err := l.client.HGet(ctx, ledgerKey, account.Hex()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get deposit block: %w", err)
	}
	block, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse deposit block %q: %w", val, err)
	}
	return block, nil
}

// RecordDeposit stores the account's deposit block. Entries only move
// forward: an older block never overwrites a newer one.
func (l *RedisLedger) RecordDeposit(ctx context.Context, account common.Address, block uint64) error {
	last, err := l.LastDepositBlock(ctx, account)
	if err != nil {
		return err
	}
	if block < last {
		return nil
	}
	if err := l.client.HSet(ctx, ledgerKey, account.Hex(), strconv.FormatUint(block, 10)).Err(); err != nil {
		return fmt.Errorf("record deposit block: %w", err)
	}
	return nil
}

// MemoryLedger is a process-local DepositLedger for tests and local mode.
type MemoryLedger struct {
	mu     sync.RWMutex
	blocks map[common.Address]uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{blocks: make(map[common.Address]uint64)}
}

func (l *MemoryLedger) LastDepositBlock(_ context.Context, account common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[account], nil
}

func (l *MemoryLedger) RecordDeposit(_ context.Context, account common.Address, block uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if block >= l.blocks[account] {
		l.blocks[account] = block
	}
	return nil
}

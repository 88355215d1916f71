// Package chain provides the block-height clock the cooldown math runs on.
package chain

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/ethclient"
)

// RPCClock reads the current block height from an Ethereum JSON-RPC node.
type RPCClock struct {
	client *ethclient.Client
}

// DialRPCClock connects to the given RPC endpoint.
func DialRPCClock(ctx context.Context, rpcURL string) (*RPCClock, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	return &RPCClock{client: client}, nil
}

// CurrentBlock returns the chain head's block number.
func (c *RPCClock) CurrentBlock(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return n, nil
}

// Close releases the underlying RPC connection.
func (c *RPCClock) Close() {
	c.client.Close()
}

// ManualClock is a settable clock for tests and local mode.
type ManualClock struct {
	block atomic.Uint64
}

// NewManualClock starts a manual clock at the given height.
func NewManualClock(block uint64) *ManualClock {
	c := &ManualClock{}
	c.block.Store(block)
	return c
}

func (c *ManualClock) CurrentBlock(_ context.Context) (uint64, error) {
	return c.block.Load(), nil
}

// Advance moves the clock forward n blocks.
func (c *ManualClock) Advance(n uint64) {
	c.block.Add(n)
}

// Set jumps the clock to an absolute height.
func (c *ManualClock) Set(block uint64) {
	c.block.Store(block)
}

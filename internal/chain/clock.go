package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Clock supplies block timestamps in unix seconds.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (uint64, error) {
	return uint64(time.Now().Unix()), nil
}

// ManualClock is advanced explicitly, for tests and scripted simulations.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}

// Set pins the clock to ts.
func (c *ManualClock) Set(ts uint64) {
	c.mu.Lock()
	c.now = ts
	c.mu.Unlock()
}

// RPCClock follows the latest block header of a live node, so simulated TWAP windows
// line up with a real chain's timestamps.
type RPCClock struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewRPCClock dials the RPC endpoint.
func NewRPCClock(ctx context.Context, rpcURL string) (*RPCClock, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &RPCClock{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Now returns the timestamp of the latest header.
func (c *RPCClock) Now(ctx context.Context) (uint64, error) {
	header, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("latest header: %w", err)
	}
	return header.Time, nil
}

// Close closes the underlying RPC client.
func (c *RPCClock) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

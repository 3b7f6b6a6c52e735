// Package chain provides the block height and wall-clock view the ledgers run against.
package chain

import (
	"sync"
	"time"
)

// Clock reports the current block number and unix timestamp (seconds).
type Clock interface {
	BlockNumber() uint64
	Now() int64
}

// ManualClock is a Clock advanced explicitly. Used by tests and the scenario simulator.
type ManualClock struct {
	mu    sync.RWMutex
	block uint64
	now   int64
}

// NewManualClock creates a ManualClock at the given block and timestamp.
func NewManualClock(block uint64, now int64) *ManualClock {
	return &ManualClock{block: block, now: now}
}

// BlockNumber returns the current block.
func (c *ManualClock) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

// Now returns the current unix timestamp.
func (c *ManualClock) Now() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by the given number of blocks and seconds.
func (c *ManualClock) Advance(blocks uint64, seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block += blocks
	c.now += seconds
}

// Set jumps to an absolute block and timestamp.
func (c *ManualClock) Set(block uint64, now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = block
	c.now = now
}

// WallClock derives block numbers from wall time: one block per BlockInterval
// since Genesis, starting at GenesisBlock.
type WallClock struct {
	Genesis       time.Time
	GenesisBlock  uint64
	BlockInterval time.Duration

	now func() time.Time
}

// NewWallClock creates a WallClock. A non-positive interval defaults to one second.
func NewWallClock(genesis time.Time, genesisBlock uint64, interval time.Duration) *WallClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &WallClock{
		Genesis:       genesis,
		GenesisBlock:  genesisBlock,
		BlockInterval: interval,
		now:           time.Now,
	}
}

// WithNow overrides the time source (for testing).
func (c *WallClock) WithNow(now func() time.Time) *WallClock {
	c.now = now
	return c
}

// BlockNumber returns the block height implied by the current time.
func (c *WallClock) BlockNumber() uint64 {
	elapsed := c.now().Sub(c.Genesis)
	if elapsed <= 0 {
		return c.GenesisBlock
	}
	return c.GenesisBlock + uint64(elapsed/c.BlockInterval)
}

// Now returns the current unix timestamp.
func (c *WallClock) Now() int64 {
	return c.now().Unix()
}

var (
	_ Clock = (*ManualClock)(nil)
	_ Clock = (*WallClock)(nil)
)

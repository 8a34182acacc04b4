package custody

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientPool    = errors.New("insufficient pool collateral")
)

// Transferor moves collateral between the pool and user addresses. Amounts
// are positive integers in the collateral's smallest unit. Production
// deployments plug in a real custody API; the engine only needs the two
// calls to succeed or fail atomically.
type Transferor interface {
	TransferIn(ctx context.Context, from string, amount uint64) error
	TransferOut(ctx context.Context, to string, amount uint64) error
}

// Custodian is an in-memory Transferor that tracks per-address balances and
// a pool balance. Used in tests and single-node deployments.
type Custodian struct {
	mu       sync.RWMutex
	token    string
	balances map[string]uint64 // address -> balance
	pool     uint64            // collateral held by the engine
	version  uint64
}

// NewCustodian creates a custodian for the given token with initial balances
func NewCustodian(token string, initial map[string]uint64) *Custodian {
	balances := make(map[string]uint64)
	for k, v := range initial {
		balances[k] = v
	}
	return &Custodian{
		token:    token,
		balances: balances,
	}
}

// Deposit credits an address, funding it out of band
func (c *Custodian) Deposit(addr string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] += amount
	c.version++
}

// TransferIn moves collateral from an address into the pool
func (c *Custodian) TransferIn(_ context.Context, from string, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.balances[from] < amount {
		return ErrInsufficientBalance
	}

	c.balances[from] -= amount
	c.pool += amount
	c.version++

	return nil
}

// TransferOut moves collateral from the pool to an address
func (c *Custodian) TransferOut(_ context.Context, to string, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool < amount {
		return ErrInsufficientPool
	}

	c.pool -= amount
	c.balances[to] += amount
	c.version++

	return nil
}

// Balance returns the balance for an address
func (c *Custodian) Balance(addr string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[addr]
}

// PoolBalance returns the collateral currently held by the engine
func (c *Custodian) PoolBalance() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool
}

// Snapshot is a JSON-serializable view of the custodian state
type Snapshot struct {
	Token    string            `json:"token"`
	Balances map[string]uint64 `json:"balances"`
	Pool     uint64            `json:"pool"`
	Version  uint64            `json:"version"`
}

func (c *Custodian) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	balances := make(map[string]uint64)
	for k, v := range c.balances {
		balances[k] = v
	}

	return Snapshot{
		Token:    c.token,
		Balances: balances,
		Pool:     c.pool,
		Version:  c.version,
	}
}

// ToJSON returns the snapshot as JSON
func (c *Custodian) ToJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

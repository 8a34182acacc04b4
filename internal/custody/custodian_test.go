package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustodian_TransferCycle(t *testing.T) {
	c := NewCustodian("tok", map[string]uint64{"alice": 1000})
	ctx := context.Background()

	require.NoError(t, c.TransferIn(ctx, "alice", 400))
	assert.Equal(t, uint64(600), c.Balance("alice"))
	assert.Equal(t, uint64(400), c.PoolBalance())

	require.NoError(t, c.TransferOut(ctx, "bob", 150))
	assert.Equal(t, uint64(150), c.Balance("bob"))
	assert.Equal(t, uint64(250), c.PoolBalance())
}

func TestCustodian_InsufficientFunds(t *testing.T) {
	c := NewCustodian("tok", nil)
	ctx := context.Background()

	err := c.TransferIn(ctx, "alice", 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = c.TransferOut(ctx, "alice", 1)
	assert.ErrorIs(t, err, ErrInsufficientPool)

	// Failed transfers change nothing.
	assert.Zero(t, c.Balance("alice"))
	assert.Zero(t, c.PoolBalance())
}

func TestCustodian_DepositFundsOutOfBand(t *testing.T) {
	c := NewCustodian("tok", nil)
	c.Deposit("alice", 500)
	c.Deposit("alice", 250)
	assert.Equal(t, uint64(750), c.Balance("alice"))
}

func TestCustodian_SnapshotIsDetached(t *testing.T) {
	c := NewCustodian("tok", map[string]uint64{"alice": 100})
	require.NoError(t, c.TransferIn(context.Background(), "alice", 40))

	snap := c.Snapshot()
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, uint64(40), snap.Pool)
	assert.Equal(t, uint64(60), snap.Balances["alice"])

	// Mutating the snapshot never leaks back.
	snap.Balances["alice"] = 0
	assert.Equal(t, uint64(60), c.Balance("alice"))
}

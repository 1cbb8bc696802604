package testutil

import (
	"context"
	"testing"

	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustBalance_GuardsAgainstOverdraft(t *testing.T) {
	store := NewStore()
	store.SeedPlayer("100", 100, 0)
	ctx := context.Background()

	balance, err := store.AdjustBalance(ctx, "100", -150)
	var fundsErr *economy.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, int64(100), fundsErr.Balance)
	assert.Equal(t, int64(150), fundsErr.Cost)
	assert.Equal(t, int64(100), balance, "failed debit must not move the balance")

	// Draining to exactly zero is allowed.
	balance, err = store.AdjustBalance(ctx, "100", -100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	balance, err = store.AdjustBalance(ctx, "100", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	_, err = store.AdjustBalance(ctx, "nobody", 10)
	assert.Error(t, err)
}

func TestAdjustPacks_GuardsAgainstNegativeCount(t *testing.T) {
	store := NewStore()
	store.SeedPlayer("100", 0, 1)
	ctx := context.Background()

	_, err := store.AdjustPacks(ctx, "100", -2)
	var stateErr *economy.InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	p, err := store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Packs, "failed debit must not consume packs")

	packs, err := store.AdjustPacks(ctx, "100", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), packs)

	packs, err = store.AdjustPacks(ctx, "100", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), packs)

	_, err = store.AdjustPacks(ctx, "nobody", 1)
	assert.Error(t, err)
}

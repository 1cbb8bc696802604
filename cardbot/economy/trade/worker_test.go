package trade

import (
	"context"
	"testing"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories/testutil"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryWorker_SweepsOverdueTrades(t *testing.T) {
	store := testutil.NewStore()
	seedCopies(store, alice, "haru", 1)
	seedCopies(store, bob, "mina", 1)
	c := newTestCoordinator(store, time.Millisecond)
	ctx := context.Background()

	trade, err := c.Propose(ctx, alice, bob,
		[]economy.CardRef{{Series: "idols", CardID: "haru", Count: 1}},
		[]economy.CardRef{{Series: "idols", CardID: "mina", Count: 1}},
	)
	require.NoError(t, err)

	worker := NewExpiryWorker(c, 5*time.Millisecond)
	worker.Start()
	defer worker.Stop()

	require.Eventually(t, func() bool {
		stored, err := c.Get(ctx, trade.TradeID)
		return err == nil && stored.Status == models.TradeExpired
	}, time.Second, 5*time.Millisecond)
}

func TestExpiryWorker_DefaultsInterval(t *testing.T) {
	worker := NewExpiryWorker(newTestCoordinator(testutil.NewStore(), time.Minute), 0)
	assert.Equal(t, time.Minute, worker.interval)
}

package packs

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/catalog"
	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories/mock"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories/testutil"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/blackbirdbot/cardbot/cardbot/economy/draw"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const buyer = snowflake.ID(100001)

func newCatalog(t *testing.T, shares map[int]float64, cards []*models.CardDefinition) *catalog.Catalog {
	t.Helper()
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().
		GetSeries(gomock.Any()).
		Return([]*models.SeriesDefinition{
			{Series: "idols", DisplayName: "Idol Collection", Shorthand: "IDL"},
		}, nil)
	repo.EXPECT().GetBySeries(gomock.Any(), "idols").Return(cards, nil)

	c := catalog.New(repo, nil, shares)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func newTestService(t *testing.T, store *testutil.Store) *Service {
	t.Helper()
	cat := newCatalog(t, map[int]float64{1: 1.0}, []*models.CardDefinition{
		{CardID: "haru", Series: "idols", Name: "Haru", Rarity: 1},
	})
	engine := draw.NewEngine(cat.AllWeights())
	rng := rand.New(rand.NewPCG(11, 11))
	return New(store, store, cat, engine, Config{}, rng)
}

func TestBuyPacks_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 1400, 0)
	svc := newTestService(t, store)

	_, err := svc.BuyPacks(context.Background(), buyer, 3)

	var fundsErr *economy.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, int64(1400), fundsErr.Balance)
	assert.Equal(t, int64(1500), fundsErr.Cost)

	player, err := store.Get(context.Background(), buyer.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1400), player.Balance)
	assert.Equal(t, int64(0), player.Packs)
}

func TestBuyPacks_DebitsAndCreditsAtomically(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 1500, 0)
	svc := newTestService(t, store)

	receipt, err := svc.BuyPacks(context.Background(), buyer, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, receipt.Count)
	assert.Equal(t, int64(1500), receipt.Cost)
	assert.Equal(t, int64(0), receipt.Balance)
	assert.Equal(t, int64(3), receipt.Packs)
}

func TestBuyPacks_MaterializesNewPlayer(t *testing.T) {
	store := testutil.NewStore()
	svc := newTestService(t, store)

	// First touch creates the player with the starting balance, which covers
	// exactly one pack.
	receipt, err := svc.BuyPacks(context.Background(), buyer, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.Balance)
	assert.Equal(t, int64(1), receipt.Packs)
}

func TestBuyPacks_RejectsNonPositiveCount(t *testing.T) {
	svc := newTestService(t, testutil.NewStore())

	_, err := svc.BuyPacks(context.Background(), buyer, 0)

	var vErr *economy.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestMaxAffordable(t *testing.T) {
	svc := newTestService(t, testutil.NewStore())

	assert.Equal(t, 0, svc.MaxAffordable(-10))
	assert.Equal(t, 0, svc.MaxAffordable(499))
	assert.Equal(t, 1, svc.MaxAffordable(500))
	assert.Equal(t, 3, svc.MaxAffordable(1999))
}

func TestOpenPack_DrawsFullPackAndFlagsNewCards(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 0, 1)
	svc := newTestService(t, store)

	manifest, err := svc.OpenPack(context.Background(), buyer, "idols")
	require.NoError(t, err)

	assert.Equal(t, "Idol Collection", manifest.SeriesName)
	assert.Equal(t, int64(0), manifest.PacksRemaining)
	require.Len(t, manifest.Cards, 12)
	for _, card := range manifest.Cards {
		// Newness is judged against ownership before the draw, so every copy
		// in a first pack counts as new, duplicates included.
		assert.True(t, card.New)
	}

	summary, err := store.Summary(context.Background(), buyer.String())
	require.NoError(t, err)
	assert.Equal(t, int64(12), summary.TotalCards)
}

func TestOpenPack_KnownCardsNotFlaggedNew(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 0, 1)
	store.SeedEntry(buyer.String(), "haru", "idols", time.Now().Add(-time.Hour))
	svc := newTestService(t, store)

	manifest, err := svc.OpenPack(context.Background(), buyer, "idols")
	require.NoError(t, err)

	for _, card := range manifest.Cards {
		assert.False(t, card.New)
	}
}

func TestOpenPack_WithoutPacksFails(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 9000, 0)
	svc := newTestService(t, store)

	_, err := svc.OpenPack(context.Background(), buyer, "idols")

	var stateErr *economy.InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	summary, sErr := store.Summary(context.Background(), buyer.String())
	require.NoError(t, sErr)
	assert.Equal(t, int64(0), summary.TotalCards, "failed open must not insert cards")
}

func TestOpenPack_UnknownSeriesFails(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 0, 1)
	svc := newTestService(t, store)

	_, err := svc.OpenPack(context.Background(), buyer, "nope")

	var vErr *economy.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestOpenPack_ConcurrentOpensConsumeOnePackEach(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(buyer.String(), 0, 1)
	svc := newTestService(t, store)

	const openers = 8
	var wg sync.WaitGroup
	errs := make(chan error, openers)
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.OpenPack(context.Background(), buyer, "idols")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, failed int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		failed++
		var stateErr *economy.InvalidStateError
		assert.ErrorAs(t, err, &stateErr)
	}
	assert.Equal(t, 1, succeeded, "a single pack supports exactly one open")
	assert.Equal(t, openers-1, failed)

	summary, err := store.Summary(context.Background(), buyer.String())
	require.NoError(t, err)
	assert.Equal(t, int64(12), summary.TotalCards)
}

package services

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
	"github.com/blackbirdbot/cardbot/cardbot/economy/freebie"
	"github.com/blackbirdbot/cardbot/cardbot/economy/packs"
	"github.com/blackbirdbot/cardbot/cardbot/economy/trade"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	player = snowflake.ID(400001)
	friend = snowflake.ID(400002)
)

func newTestEconomy(t *testing.T, store *testutil.Store) *Service {
	t.Helper()
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().
		GetSeries(gomock.Any()).
		Return([]*models.SeriesDefinition{
			{Series: "idols", DisplayName: "Idol Collection", Shorthand: "IDL"},
		}, nil)
	repo.EXPECT().
		GetBySeries(gomock.Any(), "idols").
		Return([]*models.CardDefinition{
			{CardID: "haru", Series: "idols", Name: "Haru", Rarity: 1},
			{CardID: "mina", Series: "idols", Name: "Mina", Rarity: 1},
		}, nil)

	cat := catalog.New(repo, nil, map[int]float64{1: 1.0})
	require.NoError(t, cat.Load(context.Background()))

	engine := draw.NewEngine(cat.AllWeights())

	// Separate sources: the pack service and the freebie gate synchronize
	// independently, so they must not share PCG state.
	packService := packs.New(store, store, cat, engine, packs.Config{}, rand.New(rand.NewPCG(9, 9)))
	gate := freebie.New(store, store, cat, engine, time.Hour, rand.New(rand.NewPCG(7, 7)))
	coordinator := trade.NewCoordinator(store, store, store, 10*time.Minute)

	return New(store, store, cat, packService, gate, coordinator)
}

func TestGetInventory(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(player.String(), 750, 2)
	acquired := time.Now().Add(-time.Hour)
	store.SeedEntry(player.String(), "haru", "idols", acquired)
	store.SeedEntry(player.String(), "haru", "idols", acquired)
	minaID := store.SeedEntry(friend.String(), "mina", "idols", acquired)
	require.NoError(t, store.ReassignOwnership(context.Background(), minaID, friend.String(), player.String(), friend.String()))

	svc := newTestEconomy(t, store)

	view, err := svc.GetInventory(context.Background(), player)
	require.NoError(t, err)

	assert.Equal(t, int64(750), view.Balance)
	assert.Equal(t, int64(2), view.Packs)
	assert.Equal(t, int64(3), view.TotalCards)
	assert.Equal(t, int64(2), view.UniqueCards)
	assert.Equal(t, int64(1), view.TradedCards)

	require.Len(t, view.Cards, 2)
	assert.Equal(t, "haru", view.Cards[0].CardID)
	assert.Equal(t, "Haru", view.Cards[0].Name)
	assert.Equal(t, "IDL", view.Cards[0].Shorthand)
	assert.Equal(t, int64(2), view.Cards[0].Count)
	assert.Equal(t, "mina", view.Cards[1].CardID)
	assert.Equal(t, int64(1), view.Cards[1].Count)
}

func TestGetInventory_MaterializesNewPlayer(t *testing.T) {
	svc := newTestEconomy(t, testutil.NewStore())

	view, err := svc.GetInventory(context.Background(), player)
	require.NoError(t, err)

	assert.Equal(t, economy.DefaultBalance, view.Balance)
	assert.Empty(t, view.Cards)
}

func TestAwardActivity(t *testing.T) {
	store := testutil.NewStore()
	svc := newTestEconomy(t, store)
	ctx := context.Background()

	// First reward creates the player, then credits on top of the default.
	require.NoError(t, svc.AwardActivity(ctx, player, economy.MessageReward))
	require.NoError(t, svc.AwardActivity(ctx, player, economy.PostReward))

	p, err := store.Get(ctx, player.String())
	require.NoError(t, err)
	assert.Equal(t, economy.DefaultBalance+economy.MessageReward+economy.PostReward, p.Balance)

	var vErr *economy.ValidationError
	assert.ErrorAs(t, svc.AwardActivity(ctx, player, 0), &vErr)
	assert.ErrorAs(t, svc.AwardActivity(ctx, player, -5), &vErr)
}

func TestGetOwnershipCount(t *testing.T) {
	store := testutil.NewStore()
	acquired := time.Now()
	store.SeedEntry(player.String(), "haru", "idols", acquired)
	store.SeedEntry(player.String(), "haru", "idols", acquired)
	store.SeedEntry(friend.String(), "haru", "idols", acquired)
	store.SeedEntry(snowflake.ID(999999).String(), "haru", "idols", acquired)

	svc := newTestEconomy(t, store)
	ctx := context.Background()

	count, err := svc.GetOwnershipCount(ctx, "haru", "idols", []snowflake.ID{player, friend})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "outsiders' copies stay out of scope")

	_, err = svc.GetOwnershipCount(ctx, "nope", "idols", []snowflake.ID{player})
	var vErr *economy.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestSearchCards(t *testing.T) {
	svc := newTestEconomy(t, testutil.NewStore())

	refs := svc.SearchCards("mina", 3)
	require.NotEmpty(t, refs)
	assert.Equal(t, "mina", refs[0].CardID)
}

// Pack opens and freebie claims draw on different goroutines; run them
// together under -race to catch any sharing of random state between the two
// services.
func TestConcurrentPackOpensAndFreebieClaims(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(player.String(), 0, 4)
	svc := newTestEconomy(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	openErrs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, openErrs[i] = svc.OpenPack(ctx, player, "idols")
		}(i)
	}
	claimErrs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, claimErrs[i] = svc.TryClaimFreebie(ctx, player)
		}(i)
	}
	wg.Wait()

	for i, err := range openErrs {
		assert.NoError(t, err, "open %d", i)
	}
	var claims int
	for _, err := range claimErrs {
		if err == nil {
			claims++
			continue
		}
		var cdErr *economy.OnCooldownError
		assert.ErrorAs(t, err, &cdErr)
	}
	assert.Equal(t, 1, claims, "cooldown admits exactly one claim")

	view, err := svc.GetInventory(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, int64(4*economy.PackSize+1), view.TotalCards)
}

func TestFullPlayerJourney(t *testing.T) {
	store := testutil.NewStore()
	store.SeedPlayer(player.String(), 1000, 0)
	svc := newTestEconomy(t, store)
	ctx := context.Background()

	receipt, err := svc.BuyPacks(ctx, player, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.Balance)

	manifest, err := svc.OpenPack(ctx, player, "idols")
	require.NoError(t, err)
	assert.Len(t, manifest.Cards, 12)
	assert.Equal(t, int64(1), manifest.PacksRemaining)

	result, err := svc.TryClaimFreebie(ctx, player)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Card.CardID)

	view, err := svc.GetInventory(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, int64(13), view.TotalCards)
}

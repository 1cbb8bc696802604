package catalog

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/economy/draw"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories/mock"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticResolver struct{}

func (staticResolver) CardImageURL(series, path string) string { return "img://" + series + "/" + path }
func (staticResolver) ThumbnailURL(series, path string) string {
	return "thumb://" + series + "/" + path
}

var testShares = map[int]float64{1: 0.7, 2: 0.3}

func idolsCards() []*models.CardDefinition {
	return []*models.CardDefinition{
		{CardID: "haru", Series: "idols", Name: "Haru", Rarity: 1, ImagePath: "haru.jpg", ThumbnailPath: "haru.jpg"},
		{CardID: "mina", Series: "idols", Name: "Mina", Rarity: 1, ImagePath: "mina.jpg", ThumbnailPath: "mina.jpg"},
		{CardID: "sora", Series: "idols", Name: "Sora", Rarity: 2, ImagePath: "sora.jpg", ThumbnailPath: "sora.jpg"},
	}
}

func loadedCatalog(t *testing.T) *Catalog {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().
		GetSeries(gomock.Any()).
		Return([]*models.SeriesDefinition{
			{Series: "idols", DisplayName: "Idol Collection", Shorthand: "IDL"},
		}, nil)
	repo.EXPECT().
		GetBySeries(gomock.Any(), "idols").
		Return(idolsCards(), nil)

	c := New(repo, staticResolver{}, testShares)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestLoad_ComputesTierWeights(t *testing.T) {
	c := loadedCatalog(t)

	weights, err := c.Weights("idols")
	require.NoError(t, err)

	// Tier shares split evenly across the cards of each tier and sum to 1.
	assert.InDelta(t, 0.35, weights["haru"], 1e-9)
	assert.InDelta(t, 0.35, weights["mina"], 1e-9)
	assert.InDelta(t, 0.30, weights["sora"], 1e-9)

	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLoad_EmptyTierFails(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().
		GetSeries(gomock.Any()).
		Return([]*models.SeriesDefinition{{Series: "idols"}}, nil)
	repo.EXPECT().
		GetBySeries(gomock.Any(), "idols").
		Return([]*models.CardDefinition{
			{CardID: "haru", Series: "idols", Name: "Haru", Rarity: 1},
		}, nil)

	c := New(repo, nil, testShares)
	err := c.Load(context.Background())

	var cfgErr *economy.CatalogConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "idols", cfgErr.Series)
	assert.Equal(t, 2, cfgErr.Tier)
}

func TestLoad_NoSeriesFails(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().GetSeries(gomock.Any()).Return(nil, nil)

	c := New(repo, nil, testShares)
	assert.Error(t, c.Load(context.Background()))
}

func TestLoadSeries_RejectsEmptyManifest(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	c := New(repo, nil, testShares)

	err := c.LoadSeries(context.Background(), Manifest{Series: "idols"})

	var vErr *economy.ValidationError
	require.ErrorAs(t, err, &vErr)
}

type verifyingResolver struct {
	staticResolver
	checked []string
	missing map[string]bool
	err     error
}

func (r *verifyingResolver) VerifyCardImage(ctx context.Context, series, path string) (bool, error) {
	r.checked = append(r.checked, series+"/"+path)
	if r.err != nil {
		return false, r.err
	}
	return !r.missing[path], nil
}

func TestLoadSeries_VerifiesArtwork(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	repo.EXPECT().UpsertSeries(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	resolver := &verifyingResolver{missing: map[string]bool{"mina.jpg": true}}
	c := New(repo, resolver, testShares)

	// A missing object only warns; the import still goes through.
	require.NoError(t, c.LoadSeries(context.Background(), Manifest{
		Series: "idols",
		Cards: []CardSpec{
			{CardID: "haru", Name: "Haru", Rarity: 1, ImagePath: "haru.jpg"},
			{CardID: "mina", Name: "Mina", Rarity: 1, ImagePath: "mina.jpg"},
		},
	}))
	assert.Equal(t, []string{"idols/haru.jpg", "idols/mina.jpg"}, resolver.checked)
}

func TestLoadSeries_VerifierErrorAbortsImport(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))

	resolver := &verifyingResolver{err: errors.New("bucket unreachable")}
	c := New(repo, resolver, testShares)

	err := c.LoadSeries(context.Background(), Manifest{
		Series: "idols",
		Cards:  []CardSpec{{CardID: "haru", Name: "Haru", Rarity: 1, ImagePath: "haru.jpg"}},
	})
	require.ErrorContains(t, err, "bucket unreachable")
}

func TestLoad_PicksUpSeriesImportedAfterEmptyStart(t *testing.T) {
	repo := mock.NewMockCardRepository(gomock.NewController(t))
	gomock.InOrder(
		repo.EXPECT().GetSeries(gomock.Any()).Return(nil, nil),
		repo.EXPECT().UpsertSeries(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
		repo.EXPECT().GetSeries(gomock.Any()).Return([]*models.SeriesDefinition{
			{Series: "idols", DisplayName: "Idol Collection", Shorthand: "IDL"},
		}, nil),
		repo.EXPECT().GetBySeries(gomock.Any(), "idols").Return(idolsCards(), nil),
	)

	c := New(repo, staticResolver{}, testShares)
	ctx := context.Background()

	// A fresh store has nothing to load until a manifest is imported.
	require.Error(t, c.Load(ctx))

	require.NoError(t, c.LoadSeries(ctx, Manifest{
		Series:      "idols",
		DisplayName: "Idol Collection",
		Shorthand:   "IDL",
		Cards: []CardSpec{
			{CardID: "haru", Name: "Haru", Rarity: 1, ImagePath: "haru.jpg"},
			{CardID: "mina", Name: "Mina", Rarity: 1, ImagePath: "mina.jpg"},
			{CardID: "sora", Name: "Sora", Rarity: 2, ImagePath: "sora.jpg"},
		},
	}))
	require.NoError(t, c.Load(ctx))

	// An engine built now must be able to draw from the imported series;
	// building it before the import would miss it.
	engine := draw.NewEngine(c.AllWeights())
	rng := rand.New(rand.NewPCG(3, 3))
	drawn, err := engine.DrawCards("idols", 5, rng)
	require.NoError(t, err)
	assert.Len(t, drawn, 5)
}

func TestCard_UnknownLookups(t *testing.T) {
	c := loadedCatalog(t)

	_, err := c.Card("haru", "nope")
	var vErr *economy.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = c.Card("nope", "idols")
	assert.ErrorAs(t, err, &vErr)

	card, err := c.Card("haru", "idols")
	require.NoError(t, err)
	assert.Equal(t, "Haru", card.Name)
}

func TestSearch_MatchesNameAndShorthand(t *testing.T) {
	c := loadedCatalog(t)

	refs := c.Search("haru", 5)
	require.NotEmpty(t, refs)
	assert.Equal(t, economy.CardRef{Series: "idols", CardID: "haru", Count: 1}, refs[0])

	// Shorthand-qualified queries also resolve.
	refs = c.Search("IDL-#sora", 5)
	require.NotEmpty(t, refs)
	assert.Equal(t, "sora", refs[0].CardID)

	assert.Empty(t, c.Search("zzzzzz", 5))
	assert.Len(t, c.Search("a", 1), 1)
}

func TestCardInfo_ResolvesURLsAndCaches(t *testing.T) {
	c := loadedCatalog(t)

	info, err := c.CardInfo("haru", "idols")
	require.NoError(t, err)
	assert.Equal(t, "Idol Collection", info.SeriesName)
	assert.Equal(t, "IDL", info.Shorthand)
	assert.Equal(t, "img://idols/haru.jpg", info.ImageURL)
	assert.Equal(t, "thumb://idols/haru.jpg", info.ThumbnailURL)

	again, err := c.CardInfo("haru", "idols")
	require.NoError(t, err)
	assert.Same(t, info, again, "second lookup should come from the cache")
}

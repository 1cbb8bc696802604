package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
)

const defaultInfoCacheSize = 512

// ImageResolver turns stored asset paths into public URLs. Implemented by
// services.SpacesService; nil disables URL resolution.
type ImageResolver interface {
	CardImageURL(series, path string) string
	ThumbnailURL(series, path string) string
}

// ImageVerifier is an optional extension of ImageResolver. When the resolver
// implements it, LoadSeries checks each card's artwork against the bucket and
// warns about objects that are missing.
type ImageVerifier interface {
	VerifyCardImage(ctx context.Context, series, path string) (bool, error)
}

// CardSpec and Manifest are the import collaborator's input format: ready
// card records, already parsed from whatever asset convention it scans.
type CardSpec struct {
	CardID        string
	Name          string
	Rarity        int
	ImagePath     string
	ThumbnailPath string
}

type Manifest struct {
	Series      string
	DisplayName string
	Shorthand   string
	Cards       []CardSpec
}

type seriesEntry struct {
	def     *models.SeriesDefinition
	cards   map[string]*models.CardDefinition
	weights map[string]float64
}

// Catalog is the immutable-after-Load registry of card and series metadata
// plus the per-series rarity draw weights.
type Catalog struct {
	repo   repositories.CardRepository
	images ImageResolver
	shares map[int]float64

	mu     sync.RWMutex
	series map[string]*seriesEntry
	index  searchIndex

	infoCache *lru.Cache
}

func New(repo repositories.CardRepository, images ImageResolver, shares map[int]float64) *Catalog {
	if shares == nil {
		shares = economy.DefaultRarityShares
	}
	cache, _ := lru.New(defaultInfoCacheSize)
	return &Catalog{
		repo:      repo,
		images:    images,
		shares:    shares,
		series:    make(map[string]*seriesEntry),
		infoCache: cache,
	}
}

// LoadSeries upserts one series manifest. Idempotent; re-imports update card
// metadata without duplicating rows.
func (c *Catalog) LoadSeries(ctx context.Context, m Manifest) error {
	if m.Series == "" || len(m.Cards) == 0 {
		return &economy.ValidationError{Reason: "series manifest must name a series and contain cards"}
	}

	def := &models.SeriesDefinition{
		Series:      m.Series,
		DisplayName: m.DisplayName,
		Shorthand:   m.Shorthand,
	}
	cards := make([]*models.CardDefinition, 0, len(m.Cards))
	for _, spec := range m.Cards {
		cards = append(cards, &models.CardDefinition{
			CardID:        spec.CardID,
			Series:        m.Series,
			Name:          spec.Name,
			Rarity:        spec.Rarity,
			ImagePath:     spec.ImagePath,
			ThumbnailPath: spec.ThumbnailPath,
		})
	}

	if verifier, ok := c.images.(ImageVerifier); ok {
		for _, card := range cards {
			exists, err := verifier.VerifyCardImage(ctx, card.Series, card.ImagePath)
			if err != nil {
				return err
			}
			if !exists {
				slog.Warn("Card artwork missing from storage",
					slog.String("series", card.Series),
					slog.String("card_id", card.CardID),
					slog.String("path", card.ImagePath))
			}
		}
	}

	if err := c.repo.UpsertSeries(ctx, def, cards); err != nil {
		return err
	}

	slog.Info("Series loaded",
		slog.String("series", m.Series),
		slog.Int("cards", len(cards)))
	return nil
}

// Load reads every imported series back from the store and computes draw
// weights. Called once at startup; weights are immutable afterwards. A
// rarity tier with probability mass but no cards is fatal here.
func (c *Catalog) Load(ctx context.Context) error {
	defs, err := c.repo.GetSeries(ctx)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return fmt.Errorf("catalog is empty: no series imported")
	}

	start := time.Now()
	loaded := make(map[string]*seriesEntry, len(defs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, def := range defs {
		def := def
		g.Go(func() error {
			cards, err := c.repo.GetBySeries(gctx, def.Series)
			if err != nil {
				return err
			}
			weights, err := computeWeights(def.Series, cards, c.shares)
			if err != nil {
				return err
			}

			entry := &seriesEntry{
				def:     def,
				cards:   make(map[string]*models.CardDefinition, len(cards)),
				weights: weights,
			}
			for _, card := range cards {
				entry.cards[card.CardID] = card
			}

			mu.Lock()
			loaded[def.Series] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	c.series = loaded
	c.index = buildSearchIndex(loaded)
	c.mu.Unlock()

	slog.Info("Catalog loaded",
		slog.Int("series", len(loaded)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// computeWeights splits each tier's probability mass evenly across the cards
// of that tier. The result sums to 1 over the series.
func computeWeights(series string, cards []*models.CardDefinition, shares map[int]float64) (map[string]float64, error) {
	tierCounts := make(map[int]int)
	for _, card := range cards {
		tierCounts[card.Rarity]++
	}

	for tier, share := range shares {
		if share > 0 && tierCounts[tier] == 0 {
			return nil, &economy.CatalogConfigError{Series: series, Tier: tier}
		}
	}

	weights := make(map[string]float64, len(cards))
	for _, card := range cards {
		share := shares[card.Rarity]
		if share <= 0 {
			continue
		}
		weights[card.CardID] = share / float64(tierCounts[card.Rarity])
	}
	return weights, nil
}

// Series returns the loaded series ids in sorted order.
func (c *Catalog) Series() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.series))
	for id := range c.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) SeriesInfo(series string) (*models.SeriesDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.series[series]
	if !ok {
		return nil, &economy.ValidationError{Reason: fmt.Sprintf("unknown series %q", series)}
	}
	return entry.def, nil
}

// Weights returns the card id to draw weight mapping for a series. The map
// is shared and must not be mutated.
func (c *Catalog) Weights(series string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.series[series]
	if !ok {
		return nil, &economy.ValidationError{Reason: fmt.Sprintf("unknown series %q", series)}
	}
	return entry.weights, nil
}

// AllWeights returns weights for every loaded series, keyed by series id.
func (c *Catalog) AllWeights() map[string]map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make(map[string]map[string]float64, len(c.series))
	for id, entry := range c.series {
		all[id] = entry.weights
	}
	return all
}

func (c *Catalog) Card(cardID, series string) (*models.CardDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.series[series]
	if !ok {
		return nil, &economy.ValidationError{Reason: fmt.Sprintf("unknown series %q", series)}
	}
	card, ok := entry.cards[cardID]
	if !ok {
		return nil, &economy.ValidationError{Reason: fmt.Sprintf("unknown card %q in series %q", cardID, series)}
	}
	return card, nil
}

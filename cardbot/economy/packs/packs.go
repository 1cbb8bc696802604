// Package packs implements pack purchase and opening on top of the economy
// store and the draw engine.
package packs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/catalog"
	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/blackbirdbot/cardbot/cardbot/economy/draw"
	"github.com/disgoorg/snowflake/v2"
)

type Config struct {
	Price int64
	Size  int
}

type Service struct {
	players    repositories.PlayerRepository
	collection repositories.CollectionRepository
	catalog    *catalog.Catalog
	engine     *draw.Engine
	cfg        Config

	mu  sync.Mutex
	rng *rand.Rand
}

func New(players repositories.PlayerRepository, collection repositories.CollectionRepository, cat *catalog.Catalog, engine *draw.Engine, cfg Config, rng *rand.Rand) *Service {
	if cfg.Price <= 0 {
		cfg.Price = economy.PackPrice
	}
	if cfg.Size <= 0 {
		cfg.Size = economy.PackSize
	}
	return &Service{
		players:    players,
		collection: collection,
		catalog:    cat,
		engine:     engine,
		cfg:        cfg,
		rng:        rng,
	}
}

// PurchaseReceipt reports the post-purchase state for display.
type PurchaseReceipt struct {
	Count   int
	Cost    int64
	Balance int64
	Packs   int64
}

// PackManifest is the result of opening one pack.
type PackManifest struct {
	Series         string
	SeriesName     string
	Cards          []economy.DrawnCard
	PacksRemaining int64
}

// BuyPacks debits count*price and credits count packs atomically. On
// insufficient funds the returned error carries the current balance and
// nothing is mutated.
func (s *Service) BuyPacks(ctx context.Context, playerID snowflake.ID, count int) (*PurchaseReceipt, error) {
	if count < 1 {
		return nil, &economy.ValidationError{Reason: "pack count must be at least 1"}
	}

	id := playerID.String()
	if _, err := s.players.GetOrCreate(ctx, id); err != nil {
		return nil, err
	}

	balance, packCount, err := s.players.PurchasePacks(ctx, id, count, s.cfg.Price)
	if err != nil {
		return nil, err
	}

	slog.Info("Packs purchased",
		slog.String("player_id", id),
		slog.Int("count", count),
		slog.Int64("balance", balance))

	return &PurchaseReceipt{
		Count:   count,
		Cost:    s.cfg.Price * int64(count),
		Balance: balance,
		Packs:   packCount,
	}, nil
}

// MaxAffordable reports how many packs a balance buys ("buy max").
func (s *Service) MaxAffordable(balance int64) int {
	if balance <= 0 {
		return 0
	}
	return int(balance / s.cfg.Price)
}

// OpenPack consumes one pack and draws the pack's cards from the given
// series (or a uniformly chosen one when series is empty). The pack count is
// re-checked at the moment of mutation: with zero packs nothing is drawn and
// economy.InvalidStateError is returned. Each card carries a "new to this
// player" flag computed against ownership recorded before this draw.
func (s *Service) OpenPack(ctx context.Context, playerID snowflake.ID, series string) (*PackManifest, error) {
	if series == "" {
		s.mu.Lock()
		series = s.engine.ChooseSeries(s.catalog.Series(), s.rng)
		s.mu.Unlock()
	}
	seriesDef, err := s.catalog.SeriesInfo(series)
	if err != nil {
		return nil, err
	}

	id := playerID.String()
	if _, err := s.players.GetOrCreate(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	drawn, err := s.engine.DrawCards(series, s.cfg.Size, s.rng)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// Ownership as of before this pack, for the new-card flags.
	ownedBefore, err := s.collection.CountsForPlayer(ctx, id, series, dedupe(drawn))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]*models.CollectionEntry, 0, len(drawn))
	for _, cardID := range drawn {
		entries = append(entries, &models.CollectionEntry{
			OwnerID:    id,
			CardID:     cardID,
			Series:     series,
			AcquiredAt: now,
		})
	}

	if err := s.collection.RecordPackOpening(ctx, id, entries); err != nil {
		return nil, err
	}

	player, err := s.players.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	manifest := &PackManifest{
		Series:         series,
		SeriesName:     seriesDef.DisplayName,
		Cards:          make([]economy.DrawnCard, 0, len(drawn)),
		PacksRemaining: player.Packs,
	}
	for _, cardID := range drawn {
		card, err := s.catalog.Card(cardID, series)
		if err != nil {
			return nil, fmt.Errorf("drawn card missing from catalog: %w", err)
		}
		manifest.Cards = append(manifest.Cards, economy.DrawnCard{
			CardID:        cardID,
			Series:        series,
			Name:          card.Name,
			Rarity:        card.Rarity,
			ThumbnailPath: card.ThumbnailPath,
			New:           ownedBefore[cardID] == 0,
		})
	}

	slog.Info("Pack opened",
		slog.String("player_id", id),
		slog.String("series", series),
		slog.Int("cards", len(drawn)),
		slog.Int64("packs_remaining", player.Packs))

	return manifest, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

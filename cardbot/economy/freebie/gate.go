// Package freebie implements the time-gated free card draw. Last-claim
// timers are kept in process memory only: a restart resets every player's
// cooldown. That durability trade-off is deliberate and matches the
// original deployment; persist the timers if it ever matters.
package freebie

import (
	"context"
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

type Gate struct {
	players    repositories.PlayerRepository
	collection repositories.CollectionRepository
	catalog    *catalog.Catalog
	engine     *draw.Engine
	cooldown   time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	lastClaim sync.Map // player id -> time.Time of last successful claim
}

func New(players repositories.PlayerRepository, collection repositories.CollectionRepository, cat *catalog.Catalog, engine *draw.Engine, cooldown time.Duration, rng *rand.Rand) *Gate {
	if cooldown <= 0 {
		cooldown = economy.FreebieCooldown
	}
	return &Gate{
		players:    players,
		collection: collection,
		catalog:    cat,
		engine:     engine,
		cooldown:   cooldown,
		rng:        rng,
	}
}

// Result is the claimed card plus ownership context for display.
type Result struct {
	Card economy.DrawnCard
	// OwnedNow counts the player's copies of this card including the one
	// just claimed.
	OwnedNow int64
}

// TryClaimFreebie draws one free card from a uniformly chosen series if the
// player's cooldown has elapsed, otherwise fails with
// economy.OnCooldownError carrying the remaining wait.
func (g *Gate) TryClaimFreebie(ctx context.Context, playerID snowflake.ID, now time.Time) (*Result, error) {
	id := playerID.String()

	prev, had, remaining, ok := g.reserve(id, now)
	if !ok {
		return nil, &economy.OnCooldownError{Remaining: remaining}
	}

	result, err := g.claim(ctx, id, now)
	if err != nil {
		g.release(id, prev, had)
		return nil, err
	}
	return result, nil
}

// Remaining reports the wait until the next claim without touching state.
func (g *Gate) Remaining(playerID snowflake.ID, now time.Time) time.Duration {
	if v, ok := g.lastClaim.Load(playerID.String()); ok {
		if elapsed := now.Sub(v.(time.Time)); elapsed < g.cooldown {
			return g.cooldown - elapsed
		}
	}
	return 0
}

// reserve atomically checks the cooldown and records the claim attempt, so
// two concurrent claims cannot both pass the gate.
func (g *Gate) reserve(id string, now time.Time) (prev time.Time, had bool, remaining time.Duration, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v, loaded := g.lastClaim.Load(id); loaded {
		prev, had = v.(time.Time), true
		if elapsed := now.Sub(prev); elapsed < g.cooldown {
			return prev, had, g.cooldown - elapsed, false
		}
	}
	g.lastClaim.Store(id, now)
	return prev, had, 0, true
}

// release restores the previous timer after a failed claim so the player is
// not charged a cooldown for a draw that never happened.
func (g *Gate) release(id string, prev time.Time, had bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if had {
		g.lastClaim.Store(id, prev)
	} else {
		g.lastClaim.Delete(id)
	}
}

func (g *Gate) claim(ctx context.Context, id string, now time.Time) (*Result, error) {
	if _, err := g.players.GetOrCreate(ctx, id); err != nil {
		return nil, err
	}

	g.mu.Lock()
	series := g.engine.ChooseSeries(g.catalog.Series(), g.rng)
	drawn, err := g.engine.DrawCards(series, 1, g.rng)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	cardID := drawn[0]

	card, err := g.catalog.Card(cardID, series)
	if err != nil {
		return nil, err
	}

	ownedBefore, err := g.collection.CountOwned(ctx, id, cardID, series)
	if err != nil {
		return nil, err
	}

	err = g.collection.RecordAcquisition(ctx, &models.CollectionEntry{
		OwnerID:    id,
		CardID:     cardID,
		Series:     series,
		AcquiredAt: now,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Freebie claimed",
		slog.String("player_id", id),
		slog.String("series", series),
		slog.String("card_id", cardID))

	return &Result{
		Card: economy.DrawnCard{
			CardID:        cardID,
			Series:        series,
			Name:          card.Name,
			Rarity:        card.Rarity,
			ThumbnailPath: card.ThumbnailPath,
			New:           ownedBefore == 0,
		},
		OwnedNow: ownedBefore + 1,
	}, nil
}

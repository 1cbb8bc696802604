package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/uptrace/bun"
)

// OwnedCount is one line of a grouped inventory view.
type OwnedCount struct {
	CardID string `bun:"card_id"`
	Series string `bun:"series"`
	Count  int64  `bun:"count"`
}

type InventorySummary struct {
	TotalCards  int64 `bun:"total_cards"`
	UniqueCards int64 `bun:"unique_cards"`
	TradedCards int64 `bun:"traded_cards"`
}

type CollectionRepository interface {
	RecordAcquisition(ctx context.Context, entry *models.CollectionEntry) error
	// RecordPackOpening decrements the owner's pack count and appends all
	// drawn entries in a single transaction. The decrement re-checks the
	// count at mutation time; with zero packs nothing is inserted and
	// economy.InvalidStateError is returned.
	RecordPackOpening(ctx context.Context, ownerID string, entries []*models.CollectionEntry) error
	// ReassignOwnership moves a single entry to a new owner, recording trade
	// provenance. The update is guarded by the expected current owner.
	ReassignOwnership(ctx context.Context, entryID int64, expectedOwner, newOwner, tradedFrom string) error
	// OldestOwned returns up to limit entries of one card owned by a player,
	// oldest acquisition first with the row id as deterministic tie-break.
	OldestOwned(ctx context.Context, ownerID, cardID, series string, limit int) ([]*models.CollectionEntry, error)
	CountOwned(ctx context.Context, ownerID, cardID, series string) (int64, error)
	// CountsForPlayer returns per-card owned counts for the given card ids
	// within one series; cards with zero copies are absent from the map.
	CountsForPlayer(ctx context.Context, ownerID, series string, cardIDs []string) (map[string]int64, error)
	GroupedInventory(ctx context.Context, ownerID string) ([]*OwnedCount, error)
	Summary(ctx context.Context, ownerID string) (*InventorySummary, error)
	// CountByOwners counts copies of a card across the supplied owner scope;
	// group membership is resolved by the caller.
	CountByOwners(ctx context.Context, cardID, series string, ownerIDs []string) (int64, error)
}

type collectionRepository struct {
	db *bun.DB
}

func NewCollectionRepository(db *bun.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) RecordAcquisition(ctx context.Context, entry *models.CollectionEntry) error {
	if entry.AcquiredAt.IsZero() {
		entry.AcquiredAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record acquisition: %w", err)
	}
	return nil
}

func (r *collectionRepository) RecordPackOpening(ctx context.Context, ownerID string, entries []*models.CollectionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("packs = packs - 1").
			Set("updated_at = ?", time.Now()).
			Where("discord_id = ? AND packs >= 1", ownerID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to consume pack: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check pack decrement: %w", err)
		}
		if affected == 0 {
			return &economy.InvalidStateError{Reason: "no unopened packs"}
		}

		_, err = tx.NewInsert().Model(&entries).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record drawn cards: %w", err)
		}
		return nil
	})
}

func (r *collectionRepository) ReassignOwnership(ctx context.Context, entryID int64, expectedOwner, newOwner, tradedFrom string) error {
	res, err := r.db.NewUpdate().
		Model((*models.CollectionEntry)(nil)).
		Set("owner_id = ?", newOwner).
		Set("traded_from = ?", tradedFrom).
		Where("id = ? AND owner_id = ?", entryID, expectedOwner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reassign entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reassignment: %w", err)
	}
	if affected == 0 {
		return &economy.InvalidStateError{Reason: "card is no longer owned by the expected player"}
	}
	return nil
}

func (r *collectionRepository) OldestOwned(ctx context.Context, ownerID, cardID, series string, limit int) ([]*models.CollectionEntry, error) {
	var entries []*models.CollectionEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("owner_id = ? AND card_id = ? AND series = ?", ownerID, cardID, series).
		Order("acquired_at ASC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get owned entries: %w", err)
	}
	return entries, nil
}

func (r *collectionRepository) CountOwned(ctx context.Context, ownerID, cardID, series string) (int64, error) {
	count, err := r.db.NewSelect().
		Model((*models.CollectionEntry)(nil)).
		Where("owner_id = ? AND card_id = ? AND series = ?", ownerID, cardID, series).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count owned cards: %w", err)
	}
	return int64(count), nil
}

func (r *collectionRepository) CountsForPlayer(ctx context.Context, ownerID, series string, cardIDs []string) (map[string]int64, error) {
	if len(cardIDs) == 0 {
		return map[string]int64{}, nil
	}

	var rows []*OwnedCount
	err := r.db.NewSelect().
		Model((*models.CollectionEntry)(nil)).
		ColumnExpr("card_id").
		ColumnExpr("series").
		ColumnExpr("COUNT(*) AS count").
		Where("owner_id = ? AND series = ? AND card_id IN (?)", ownerID, series, bun.In(cardIDs)).
		GroupExpr("card_id, series").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count cards for player: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.CardID] = row.Count
	}
	return counts, nil
}

func (r *collectionRepository) GroupedInventory(ctx context.Context, ownerID string) ([]*OwnedCount, error) {
	var rows []*OwnedCount
	err := r.db.NewSelect().
		Model((*models.CollectionEntry)(nil)).
		ColumnExpr("card_id").
		ColumnExpr("series").
		ColumnExpr("COUNT(*) AS count").
		Where("owner_id = ?", ownerID).
		GroupExpr("card_id, series").
		OrderExpr("series ASC, card_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return rows, nil
}

func (r *collectionRepository) Summary(ctx context.Context, ownerID string) (*InventorySummary, error) {
	summary := new(InventorySummary)
	err := r.db.NewSelect().
		Model((*models.CollectionEntry)(nil)).
		ColumnExpr("COUNT(*) AS total_cards").
		ColumnExpr("COUNT(DISTINCT (card_id, series)) AS unique_cards").
		ColumnExpr("COUNT(*) FILTER (WHERE traded_from IS NOT NULL) AS traded_cards").
		Where("owner_id = ?", ownerID).
		Scan(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory summary: %w", err)
	}
	return summary, nil
}

func (r *collectionRepository) CountByOwners(ctx context.Context, cardID, series string, ownerIDs []string) (int64, error) {
	if len(ownerIDs) == 0 {
		return 0, nil
	}
	count, err := r.db.NewSelect().
		Model((*models.CollectionEntry)(nil)).
		Where("card_id = ? AND series = ? AND owner_id IN (?)", cardID, series, bun.In(ownerIDs)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count card owners: %w", err)
	}
	return int64(count), nil
}

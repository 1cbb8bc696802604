package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/uptrace/bun"
)

const maxBatchSize = 500

type CardRepository interface {
	// UpsertSeries writes a series definition and its cards idempotently;
	// re-imports update names and paths but never duplicate rows.
	UpsertSeries(ctx context.Context, series *models.SeriesDefinition, cards []*models.CardDefinition) error
	GetSeries(ctx context.Context) ([]*models.SeriesDefinition, error)
	GetBySeries(ctx context.Context, series string) ([]*models.CardDefinition, error)
	Get(ctx context.Context, cardID, series string) (*models.CardDefinition, error)
}

type cardRepository struct {
	db *bun.DB
}

func NewCardRepository(db *bun.DB) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) UpsertSeries(ctx context.Context, series *models.SeriesDefinition, cards []*models.CardDefinition) error {
	now := time.Now()
	series.CreatedAt = now
	series.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(series).
		On("CONFLICT (series) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("shorthand = EXCLUDED.shorthand").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert series %s: %w", series.Series, err)
	}

	for i := 0; i < len(cards); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(cards) {
			end = len(cards)
		}
		batch := cards[i:end]

		for _, card := range batch {
			card.CreatedAt = now
			card.UpdatedAt = now
		}

		_, err := r.db.NewInsert().
			Model(&batch).
			On("CONFLICT (card_id, series) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("rarity = EXCLUDED.rarity").
			Set("image_path = EXCLUDED.image_path").
			Set("thumbnail_path = EXCLUDED.thumbnail_path").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert cards for %s: %w", series.Series, err)
		}
	}

	return nil
}

func (r *cardRepository) GetSeries(ctx context.Context) ([]*models.SeriesDefinition, error) {
	var series []*models.SeriesDefinition
	err := r.db.NewSelect().
		Model(&series).
		Order("series ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get series definitions: %w", err)
	}
	return series, nil
}

func (r *cardRepository) GetBySeries(ctx context.Context, series string) ([]*models.CardDefinition, error) {
	var cards []*models.CardDefinition
	err := r.db.NewSelect().
		Model(&cards).
		Where("series = ?", series).
		Order("card_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for series %s: %w", series, err)
	}
	return cards, nil
}

func (r *cardRepository) Get(ctx context.Context, cardID, series string) (*models.CardDefinition, error) {
	card := new(models.CardDefinition)
	err := r.db.NewSelect().
		Model(card).
		Where("card_id = ? AND series = ?", cardID, series).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s/%s not found", series, cardID)
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/uptrace/bun"
)

type PlayerRepository interface {
	// GetOrCreate materializes the player on first touch. The insert relies
	// on the discord_id unique constraint, not a read-then-insert check, so
	// concurrent first touches cannot create duplicates.
	GetOrCreate(ctx context.Context, discordID string) (*models.Player, error)
	Get(ctx context.Context, discordID string) (*models.Player, error)
	// AddBalance credits activity rewards unconditionally.
	AddBalance(ctx context.Context, discordID string, amount int64) error
	// AdjustBalance applies delta atomically and fails with
	// economy.InsufficientFundsError if the result would be negative.
	AdjustBalance(ctx context.Context, discordID string, delta int64) (int64, error)
	// AdjustPacks applies delta atomically and fails with
	// economy.InvalidStateError if the result would be negative.
	AdjustPacks(ctx context.Context, discordID string, delta int64) (int64, error)
	// PurchasePacks debits count*unitPrice and credits count packs as one
	// transaction; either both apply or neither does.
	PurchasePacks(ctx context.Context, discordID string, count int, unitPrice int64) (balance int64, packs int64, err error)
}

type playerRepository struct {
	db *bun.DB
}

func NewPlayerRepository(db *bun.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetOrCreate(ctx context.Context, discordID string) (*models.Player, error) {
	now := time.Now()
	player := &models.Player{
		DiscordID: discordID,
		Balance:   economy.DefaultBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.NewInsert().
		Model(player).
		On("CONFLICT (discord_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return r.Get(ctx, discordID)
}

func (r *playerRepository) Get(ctx context.Context, discordID string) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().
		Model(player).
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s not found", discordID)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (r *playerRepository) AddBalance(ctx context.Context, discordID string, amount int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Player)(nil)).
		Set("balance = balance + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ?", discordID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add balance: %w", err)
	}
	return nil
}

func (r *playerRepository) AdjustBalance(ctx context.Context, discordID string, delta int64) (int64, error) {
	var balance int64
	err := r.db.NewUpdate().
		Model((*models.Player)(nil)).
		Set("balance = balance + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ? AND balance + ? >= 0", discordID, delta).
		Returning("balance").
		Scan(ctx, &balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	player, getErr := r.Get(ctx, discordID)
	if getErr != nil {
		return 0, getErr
	}
	return player.Balance, &economy.InsufficientFundsError{Balance: player.Balance, Cost: -delta}
}

func (r *playerRepository) AdjustPacks(ctx context.Context, discordID string, delta int64) (int64, error) {
	var packs int64
	err := r.db.NewUpdate().
		Model((*models.Player)(nil)).
		Set("packs = packs + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ? AND packs + ? >= 0", discordID, delta).
		Returning("packs").
		Scan(ctx, &packs)
	if err == nil {
		return packs, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust packs: %w", err)
	}
	return 0, &economy.InvalidStateError{Reason: "no unopened packs"}
}

func (r *playerRepository) PurchasePacks(ctx context.Context, discordID string, count int, unitPrice int64) (int64, int64, error) {
	cost := unitPrice * int64(count)
	var balance, packs int64

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("balance = balance - ?", cost).
			Set("updated_at = ?", time.Now()).
			Where("discord_id = ? AND balance >= ?", discordID, cost).
			Returning("balance").
			Scan(ctx, &balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				current := new(models.Player)
				if selErr := tx.NewSelect().
					Model(current).
					Where("discord_id = ?", discordID).
					Scan(ctx); selErr != nil {
					return fmt.Errorf("failed to get player: %w", selErr)
				}
				return &economy.InsufficientFundsError{Balance: current.Balance, Cost: cost}
			}
			return fmt.Errorf("failed to debit balance: %w", err)
		}

		err = tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("packs = packs + ?", count).
			Set("updated_at = ?", time.Now()).
			Where("discord_id = ?", discordID).
			Returning("packs").
			Scan(ctx, &packs)
		if err != nil {
			return fmt.Errorf("failed to credit packs: %w", err)
		}
		return nil
	})
	if err != nil {
		return balance, packs, err
	}

	slog.Debug("Pack purchase committed",
		slog.String("type", "db"),
		slog.String("player_id", discordID),
		slog.Int("count", count),
		slog.Int64("balance", balance))

	return balance, packs, nil
}

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

type TradeRepository interface {
	Create(ctx context.Context, trade *models.Trade) error
	GetByTradeID(ctx context.Context, tradeID string) (*models.Trade, error)
	TradeIDExists(ctx context.Context, tradeID string) (bool, error)
	// UpdateStatusIf transitions a trade from one status to another; returns
	// false without error when the trade was not in the expected status.
	UpdateStatusIf(ctx context.Context, tradeID string, from, to models.TradeStatus) (bool, error)
	// ExecuteAccept re-validates ownership of every resolved entry under row
	// locks and swaps both sides atomically. Any drift cancels the trade and
	// returns economy.TradeInvalidatedError with no inventory mutation.
	ExecuteAccept(ctx context.Context, tradeID string) error
	// ExpireOld marks overdue proposals expired; returns how many.
	ExpireOld(ctx context.Context) (int64, error)
}

type tradeRepository struct {
	db *bun.DB
}

func NewTradeRepository(db *bun.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	now := time.Now()
	trade.CreatedAt = now
	trade.UpdatedAt = now
	trade.Status = models.TradeProposed

	_, err := r.db.NewInsert().Model(trade).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

func (r *tradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*models.Trade, error) {
	trade := new(models.Trade)
	err := r.db.NewSelect().
		Model(trade).
		Where("trade_id = ?", tradeID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trade not found")
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return trade, nil
}

func (r *tradeRepository) TradeIDExists(ctx context.Context, tradeID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.Trade)(nil)).
		Where("trade_id = ?", tradeID).
		Exists(ctx)
	return exists, err
}

func (r *tradeRepository) UpdateStatusIf(ctx context.Context, tradeID string, from, to models.TradeStatus) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Trade)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("trade_id = ? AND status = ?", tradeID, from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update trade status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check status update: %w", err)
	}
	return affected > 0, nil
}

func (r *tradeRepository) ExecuteAccept(ctx context.Context, tradeID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	trade := new(models.Trade)
	err = tx.NewSelect().
		Model(trade).
		Where("trade_id = ?", tradeID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("trade not found")
		}
		return fmt.Errorf("failed to get trade: %w", err)
	}

	if trade.Status != models.TradeProposed {
		return &economy.InvalidStateError{Reason: fmt.Sprintf("trade is %s, not open", trade.Status)}
	}

	// A late accept that raced the expiry worker loses here.
	if time.Now().After(trade.ExpiresAt) {
		if err := setTradeStatusTx(ctx, tx, trade.ID, models.TradeExpired); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit expiry: %w", err)
		}
		return &economy.InvalidStateError{Reason: "trade offer expired"}
	}

	offered, err := lockEntriesTx(ctx, tx, trade.OfferedEntryIDs)
	if err != nil {
		return err
	}
	requested, err := lockEntriesTx(ctx, tx, trade.RequestedEntryIDs)
	if err != nil {
		return err
	}

	invalidated := verifyOwners(offered, trade.OfferedEntryIDs, trade.InitiatorID) ||
		verifyOwners(requested, trade.RequestedEntryIDs, trade.CounterpartyID)
	if invalidated {
		if err := setTradeStatusTx(ctx, tx, trade.ID, models.TradeCancelled); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit invalidation: %w", err)
		}
		return &economy.TradeInvalidatedError{
			TradeID: trade.TradeID,
			Reason:  "a referenced card changed hands since the proposal",
		}
	}

	if err := reassignEntriesTx(ctx, tx, trade.OfferedEntryIDs, trade.InitiatorID, trade.CounterpartyID); err != nil {
		return err
	}
	if err := reassignEntriesTx(ctx, tx, trade.RequestedEntryIDs, trade.CounterpartyID, trade.InitiatorID); err != nil {
		return err
	}
	if err := setTradeStatusTx(ctx, tx, trade.ID, models.TradeAccepted); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}

	slog.Info("Trade executed",
		slog.String("trade_id", trade.TradeID),
		slog.String("initiator_id", trade.InitiatorID),
		slog.String("counterparty_id", trade.CounterpartyID),
		slog.Int("offered", len(trade.OfferedEntryIDs)),
		slog.Int("requested", len(trade.RequestedEntryIDs)))

	return nil
}

func (r *tradeRepository) ExpireOld(ctx context.Context) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Trade)(nil)).
		Set("status = ?", models.TradeExpired).
		Set("updated_at = ?", time.Now()).
		Where("status = ? AND expires_at <= ?", models.TradeProposed, time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire old trades: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired trades: %w", err)
	}
	return affected, nil
}

func lockEntriesTx(ctx context.Context, tx bun.Tx, entryIDs []int64) ([]*models.CollectionEntry, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	var entries []*models.CollectionEntry
	err := tx.NewSelect().
		Model(&entries).
		Where("id IN (?)", bun.In(entryIDs)).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock collection entries: %w", err)
	}
	return entries, nil
}

// verifyOwners reports true when any expected entry is missing or no longer
// owned by the expected party.
func verifyOwners(entries []*models.CollectionEntry, expectedIDs []int64, expectedOwner string) bool {
	if len(entries) != len(expectedIDs) {
		return true
	}
	for _, entry := range entries {
		if entry.OwnerID != expectedOwner {
			return true
		}
	}
	return false
}

func reassignEntriesTx(ctx context.Context, tx bun.Tx, entryIDs []int64, from, to string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	res, err := tx.NewUpdate().
		Model((*models.CollectionEntry)(nil)).
		Set("owner_id = ?", to).
		Set("traded_from = ?", from).
		Where("id IN (?) AND owner_id = ?", bun.In(entryIDs), from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reassign entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reassignment: %w", err)
	}
	if affected != int64(len(entryIDs)) {
		return fmt.Errorf("reassigned %d of %d entries", affected, len(entryIDs))
	}
	return nil
}

func setTradeStatusTx(ctx context.Context, tx bun.Tx, id int64, status models.TradeStatus) error {
	_, err := tx.NewUpdate().
		Model((*models.Trade)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set trade status: %w", err)
	}
	return nil
}

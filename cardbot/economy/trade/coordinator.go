// Package trade implements the two-party card exchange protocol: a proposal
// resolves symbolic card references to concrete collection entries, sits
// unlocked for up to the trade window, and is re-validated entry by entry at
// acceptance time before the all-or-nothing swap.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/disgoorg/snowflake/v2"
)

type Coordinator struct {
	trades     repositories.TradeRepository
	collection repositories.CollectionRepository
	players    repositories.PlayerRepository
	window     time.Duration
	idgen      *idGenerator
}

func NewCoordinator(trades repositories.TradeRepository, collection repositories.CollectionRepository, players repositories.PlayerRepository, window time.Duration) *Coordinator {
	if window <= 0 {
		window = economy.TradeWindow
	}
	return &Coordinator{
		trades:     trades,
		collection: collection,
		players:    players,
		window:     window,
		idgen:      newIDGenerator(trades),
	}
}

// Propose validates both parties and resolves both sides' references to
// concrete collection entries, oldest acquisitions first. Failure to resolve
// either side fails the whole proposal; nothing is reserved or mutated, and
// the resolved entries stay unlocked until acceptance.
func (c *Coordinator) Propose(ctx context.Context, initiator, counterparty economy.Party, offered, requested []economy.CardRef) (*models.Trade, error) {
	if initiator.ID == counterparty.ID {
		return nil, &economy.ValidationError{Reason: "you can't trade with yourself"}
	}
	if counterparty.Bot {
		return nil, &economy.ValidationError{Reason: "bots can't trade cards"}
	}

	offered, err := normalizeRefs(offered)
	if err != nil {
		return nil, err
	}
	requested, err = normalizeRefs(requested)
	if err != nil {
		return nil, err
	}

	initiatorID := initiator.ID.String()
	counterpartyID := counterparty.ID.String()
	if _, err := c.players.GetOrCreate(ctx, initiatorID); err != nil {
		return nil, err
	}
	if _, err := c.players.GetOrCreate(ctx, counterpartyID); err != nil {
		return nil, err
	}

	offeredIDs, err := c.resolve(ctx, initiatorID, offered)
	if err != nil {
		return nil, err
	}
	requestedIDs, err := c.resolve(ctx, counterpartyID, requested)
	if err != nil {
		return nil, err
	}

	tradeID, err := c.idgen.Generate(ctx)
	if err != nil {
		return nil, err
	}

	trade := &models.Trade{
		TradeID:           tradeID,
		InitiatorID:       initiatorID,
		CounterpartyID:    counterpartyID,
		OfferedEntryIDs:   offeredIDs,
		RequestedEntryIDs: requestedIDs,
		ExpiresAt:         time.Now().Add(c.window),
	}
	if err := c.trades.Create(ctx, trade); err != nil {
		return nil, err
	}

	slog.Info("Trade proposed",
		slog.String("trade_id", tradeID),
		slog.String("initiator_id", initiatorID),
		slog.String("counterparty_id", counterpartyID),
		slog.Int("offered", len(offeredIDs)),
		slog.Int("requested", len(requestedIDs)))

	return trade, nil
}

// Accept applies the trade if every resolved entry is still owned by its
// expected party. Ownership drift fails with economy.TradeInvalidatedError
// and terminates the trade with no inventory mutation; a trade past its
// window fails the same way an already-terminal one does.
func (c *Coordinator) Accept(ctx context.Context, tradeID string, acceptor snowflake.ID) error {
	trade, err := c.trades.GetByTradeID(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade.CounterpartyID != acceptor.String() {
		return &economy.ValidationError{Reason: "only the trade partner can accept this trade"}
	}
	return c.trades.ExecuteAccept(ctx, tradeID)
}

// Cancel terminates an open trade with no mutation. Either party may cancel.
func (c *Coordinator) Cancel(ctx context.Context, tradeID string, caller snowflake.ID) error {
	trade, err := c.trades.GetByTradeID(ctx, tradeID)
	if err != nil {
		return err
	}
	callerID := caller.String()
	if trade.InitiatorID != callerID && trade.CounterpartyID != callerID {
		return &economy.ValidationError{Reason: "only a trade participant can cancel this trade"}
	}

	ok, err := c.trades.UpdateStatusIf(ctx, tradeID, models.TradeProposed, models.TradeCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return &economy.InvalidStateError{Reason: "trade is no longer open"}
	}

	slog.Info("Trade cancelled",
		slog.String("trade_id", tradeID),
		slog.String("by", callerID))
	return nil
}

// ExpireOverdue marks every proposal past its window as expired. Idempotent;
// trades already terminal are untouched.
func (c *Coordinator) ExpireOverdue(ctx context.Context) (int64, error) {
	return c.trades.ExpireOld(ctx)
}

// Get returns a trade by its public id.
func (c *Coordinator) Get(ctx context.Context, tradeID string) (*models.Trade, error) {
	return c.trades.GetByTradeID(ctx, tradeID)
}

// normalizeRefs validates references and merges duplicates of the same card,
// summing multiplicities, preserving first-seen order.
func normalizeRefs(refs []economy.CardRef) ([]economy.CardRef, error) {
	if len(refs) == 0 {
		return nil, &economy.ValidationError{Reason: "a trade needs cards on both sides"}
	}

	type key struct{ series, cardID string }
	merged := make(map[key]int, len(refs))
	var order []key

	for _, ref := range refs {
		if ref.Series == "" || ref.CardID == "" {
			return nil, &economy.ValidationError{Reason: "card reference is missing a series or card id"}
		}
		count := ref.Count
		if count < 1 {
			count = 1
		}
		k := key{ref.Series, ref.CardID}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] += count
	}

	out := make([]economy.CardRef, 0, len(order))
	for _, k := range order {
		out = append(out, economy.CardRef{Series: k.series, CardID: k.cardID, Count: merged[k]})
	}
	return out, nil
}

// resolve maps each reference to the owner's oldest-acquired entries. The
// whole resolution fails atomically when any reference cannot be covered.
func (c *Coordinator) resolve(ctx context.Context, ownerID string, refs []economy.CardRef) ([]int64, error) {
	var entryIDs []int64
	for _, ref := range refs {
		entries, err := c.collection.OldestOwned(ctx, ownerID, ref.CardID, ref.Series, ref.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s/%s: %w", ref.Series, ref.CardID, err)
		}
		if len(entries) < ref.Count {
			return nil, &economy.InsufficientInventoryError{Ref: ref, Owned: len(entries)}
		}
		for _, entry := range entries {
			entryIDs = append(entryIDs, entry.ID)
		}
	}
	return entryIDs, nil
}

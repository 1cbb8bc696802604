package economy

import (
	"fmt"
	"time"
)

// ValidationError covers malformed requests that never reach the database:
// empty references, self-trades, bot counterparties.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InsufficientFundsError carries the player's current balance so callers can
// show it without a second lookup.
type InsufficientFundsError struct {
	Balance int64
	Cost    int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("not enough funds: need %d, have %d", e.Cost, e.Balance)
}

// InsufficientInventoryError means a trade reference asked for more copies of
// a card than the party owns. No state is mutated when this is returned.
type InsufficientInventoryError struct {
	Ref   CardRef
	Owned int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough copies of %s #%s: wanted %d, own %d",
		e.Ref.Series, e.Ref.CardID, e.Ref.Count, e.Owned)
}

// OnCooldownError reports how long until the next freebie claim.
type OnCooldownError struct {
	Remaining time.Duration
}

func (e *OnCooldownError) Error() string {
	return fmt.Sprintf("on cooldown for another %s", e.Remaining.Round(time.Second))
}

// InvalidStateError covers operations whose precondition no longer holds at
// the moment of mutation: opening a pack with none left, accepting a trade
// that is not open anymore.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// TradeInvalidatedError means ownership of a resolved entry changed between
// proposal and acceptance. The trade is terminal; neither inventory moved.
type TradeInvalidatedError struct {
	TradeID string
	Reason  string
}

func (e *TradeInvalidatedError) Error() string {
	return fmt.Sprintf("trade %s invalidated: %s", e.TradeID, e.Reason)
}

// CatalogConfigError is fatal at startup: the rarity distribution assigns
// probability mass to a tier that has no cards in the series.
type CatalogConfigError struct {
	Series string
	Tier   int
}

func (e *CatalogConfigError) Error() string {
	return fmt.Sprintf("series %s has no cards of rarity tier %d", e.Series, e.Tier)
}

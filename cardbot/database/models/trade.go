package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TradeStatus string

const (
	TradeProposed  TradeStatus = "proposed"
	TradeAccepted  TradeStatus = "accepted"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

// Trade is a two-party card exchange proposal. The entry id slices are the
// concrete collection rows resolved at proposal time; acceptance re-validates
// ownership of every one of them before any mutation.
type Trade struct {
	bun.BaseModel `bun:"table:trades,alias:t"`

	ID             int64  `bun:"id,pk,autoincrement"`
	TradeID        string `bun:"trade_id,notnull,unique"`
	InitiatorID    string `bun:"initiator_id,notnull"`
	CounterpartyID string `bun:"counterparty_id,notnull"`

	OfferedEntryIDs   []int64 `bun:"offered_entry_ids,type:jsonb"`
	RequestedEntryIDs []int64 `bun:"requested_entry_ids,type:jsonb"`

	Status    TradeStatus `bun:"status,notnull"`
	ExpiresAt time.Time   `bun:"expires_at,notnull"`
	CreatedAt time.Time   `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time   `bun:"updated_at,notnull,default:current_timestamp"`
}

// Terminal reports whether the trade can no longer change state.
func (t *Trade) Terminal() bool {
	return t.Status != TradeProposed
}

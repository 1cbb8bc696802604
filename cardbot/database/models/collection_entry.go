package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CollectionEntry is one owned copy of a card. Entries are appended by draws
// and never deleted; trades change OwnerID and TradedFrom in place, nothing
// else. TradedFrom is the player who last transferred this copy to its
// current owner (empty for pack/freebie pulls).
type CollectionEntry struct {
	bun.BaseModel `bun:"table:collection_entries,alias:ce"`

	ID         int64     `bun:"id,pk,autoincrement"`
	OwnerID    string    `bun:"owner_id,notnull"`
	CardID     string    `bun:"card_id,notnull"`
	Series     string    `bun:"series,notnull"`
	AcquiredAt time.Time `bun:"acquired_at,notnull"`
	TradedFrom string    `bun:"traded_from,nullzero"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CardDefinition is one printable card inside a series. The (CardID, Series)
// pair is the natural key; rows are written once by the catalog import and
// treated as read-only afterwards.
type CardDefinition struct {
	bun.BaseModel `bun:"table:card_definitions,alias:cd"`

	ID            int64  `bun:"id,pk,autoincrement"`
	CardID        string `bun:"card_id,notnull"`
	Series        string `bun:"series,notnull"`
	Name          string `bun:"name,notnull"`
	Rarity        int    `bun:"rarity,notnull"`
	ImagePath     string `bun:"image_path"`
	ThumbnailPath string `bun:"thumbnail_path"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type SeriesDefinition struct {
	bun.BaseModel `bun:"table:series_definitions,alias:sd"`

	Series      string `bun:"series,pk"`
	DisplayName string `bun:"display_name,notnull"`
	Shorthand   string `bun:"shorthand,notnull,unique"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

package economy

import "github.com/disgoorg/snowflake/v2"

// CardRef identifies cards structurally; the core never parses display
// strings. Count is the number of copies meant, minimum 1.
type CardRef struct {
	Series string
	CardID string
	Count  int
}

// Party is a trade participant as seen by the dispatch layer, which knows
// whether the account is a bot.
type Party struct {
	ID  snowflake.ID
	Bot bool
}

// DrawnCard is one card pulled from a pack or freebie, with the "new to this
// player" flag computed against ownership recorded before the draw.
type DrawnCard struct {
	CardID        string
	Series        string
	Name          string
	Rarity        int
	ThumbnailPath string
	New           bool
}

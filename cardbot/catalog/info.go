package catalog

import (
	"fmt"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
)

// CardInfo is the displayable detail view of a card, with asset paths
// resolved to URLs.
type CardInfo struct {
	Card         *models.CardDefinition
	SeriesName   string
	Shorthand    string
	ImageURL     string
	ThumbnailURL string
}

// CardInfo assembles the detail view for one card. Results are cached in an
// LRU since the underlying definitions never change after Load.
func (c *Catalog) CardInfo(cardID, series string) (*CardInfo, error) {
	key := fmt.Sprintf("%s/%s", series, cardID)
	if cached, ok := c.infoCache.Get(key); ok {
		return cached.(*CardInfo), nil
	}

	card, err := c.Card(cardID, series)
	if err != nil {
		return nil, err
	}
	def, err := c.SeriesInfo(series)
	if err != nil {
		return nil, err
	}

	info := &CardInfo{
		Card:       card,
		SeriesName: def.DisplayName,
		Shorthand:  def.Shorthand,
	}
	if c.images != nil {
		info.ImageURL = c.images.CardImageURL(series, card.ImagePath)
		info.ThumbnailURL = c.images.ThumbnailURL(series, card.ThumbnailPath)
	}

	c.infoCache.Add(key, info)
	return info, nil
}

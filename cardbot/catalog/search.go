package catalog

import (
	"fmt"
	"sort"

	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/sahilm/fuzzy"
)

type searchItem struct {
	text   string
	series string
	cardID string
}

// searchIndex implements fuzzy.Source over card display names.
type searchIndex []searchItem

func (s searchIndex) String(i int) string { return s[i].text }
func (s searchIndex) Len() int            { return len(s) }

func buildSearchIndex(series map[string]*seriesEntry) searchIndex {
	var index searchIndex
	for _, entry := range series {
		for _, card := range entry.cards {
			index = append(index, searchItem{
				text:   fmt.Sprintf("%s %s-#%s", card.Name, entry.def.Shorthand, card.CardID),
				series: card.Series,
				cardID: card.CardID,
			})
		}
	}
	sort.Slice(index, func(i, j int) bool { return index[i].text < index[j].text })
	return index
}

// Search fuzzy-matches card display names across all loaded series and
// returns structured references, best match first.
func (c *Catalog) Search(query string, limit int) []economy.CardRef {
	c.mu.RLock()
	index := c.index
	c.mu.RUnlock()

	matches := fuzzy.FindFrom(query, index)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	refs := make([]economy.CardRef, 0, len(matches))
	for _, match := range matches {
		item := index[match.Index]
		refs = append(refs, economy.CardRef{
			Series: item.series,
			CardID: item.cardID,
			Count:  1,
		})
	}
	return refs
}

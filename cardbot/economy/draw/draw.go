// Package draw implements rarity-weighted random card selection. The engine
// is pure given its inputs and safe for unsynchronized concurrent use; the
// caller supplies the random source, which keeps draws reproducible in tests.
package draw

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/blackbirdbot/cardbot/cardbot/economy"
)

type table struct {
	ids   []string
	cum   []float64
	total float64
}

type Engine struct {
	series map[string]*table
}

// NewEngine precomputes cumulative weights per series so each draw is a
// binary search. Input weights come from catalog.Catalog.AllWeights.
func NewEngine(weights map[string]map[string]float64) *Engine {
	e := &Engine{series: make(map[string]*table, len(weights))}
	for series, cardWeights := range weights {
		ids := make([]string, 0, len(cardWeights))
		for id := range cardWeights {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		t := &table{ids: ids, cum: make([]float64, len(ids))}
		for i, id := range ids {
			t.total += cardWeights[id]
			t.cum[i] = t.total
		}
		e.series[series] = t
	}
	return e
}

// DrawCards samples n card ids from a series, independently and with
// replacement; duplicates within one draw are expected.
func (e *Engine) DrawCards(series string, n int, rng *rand.Rand) ([]string, error) {
	t, ok := e.series[series]
	if !ok {
		return nil, &economy.ValidationError{Reason: fmt.Sprintf("unknown series %q", series)}
	}
	if len(t.ids) == 0 || t.total <= 0 {
		return nil, fmt.Errorf("series %q has no drawable cards", series)
	}

	drawn := make([]string, n)
	for i := 0; i < n; i++ {
		x := rng.Float64() * t.total
		idx := sort.SearchFloat64s(t.cum, x)
		if idx >= len(t.ids) {
			idx = len(t.ids) - 1
		}
		drawn[i] = t.ids[idx]
	}
	return drawn, nil
}

// ChooseSeries picks uniformly when the caller does not pin a series.
func (e *Engine) ChooseSeries(available []string, rng *rand.Rand) string {
	if len(available) == 0 {
		return ""
	}
	return available[rng.IntN(len(available))]
}

package economy

import "time"

const (
	// DefaultBalance is granted when a player row is first materialized.
	DefaultBalance int64 = 500

	PackPrice int64 = 500
	PackSize  int   = 12

	// MessageReward and PostReward are paid by the dispatch layer through
	// AwardActivity for chat messages and site posts respectively.
	MessageReward int64 = 25
	PostReward    int64 = 250

	FreebieCooldown = time.Hour
	TradeWindow     = 10 * time.Minute
)

// DefaultRarityShares is the probability mass per rarity tier, split evenly
// across the cards of that tier within a series.
var DefaultRarityShares = map[int]float64{
	1: 0.70,
	2: 0.20,
	3: 0.08,
	4: 0.012,
	5: 0.008,
}

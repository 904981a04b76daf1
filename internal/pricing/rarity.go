package pricing

import "github.com/navali-creations/soothsayer-sub010/internal/storage/models"

// Tier classifies how valuable a card currently is in its league.
// Tiers are derived from snapshot prices, never stored: the same card
// lands in different tiers in different leagues, and a reused snapshot
// recomputes them on load.
type Tier string

const (
	TierJackpot Tier = "jackpot" // worth a divine or more
	TierHigh    Tier = "high"    // a meaningful fraction of a divine
	TierMid     Tier = "mid"     // worth picking up
	TierLow     Tier = "low"     // vendor fodder
)

// Divine-denominated thresholds for the upper tiers.
const (
	jackpotDivine = 1.0
	highDivine    = 0.1
	midChaos      = 1.0
)

// ClassifyRarity buckets every card in the table into a Tier using its
// chaos value and the league's chaos-to-divine ratio.
func ClassifyRarity(table models.PriceTable) map[string]Tier {
	tiers := make(map[string]Tier, len(table.CardPrices))
	for name, price := range table.CardPrices {
		tiers[name] = classify(price, table.ChaosToDivineRatio)
	}
	return tiers
}

func classify(price models.CardPrice, chaosPerDivine float64) Tier {
	divine := price.DivineValue
	if divine == 0 && chaosPerDivine > 0 {
		divine = price.ChaosValue / chaosPerDivine
	}

	switch {
	case divine >= jackpotDivine:
		return TierJackpot
	case divine >= highDivine:
		return TierHigh
	case price.ChaosValue >= midChaos:
		return TierMid
	default:
		return TierLow
	}
}

package pricing

import (
	"testing"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

func TestClassifyRarity(t *testing.T) {
	table := models.PriceTable{
		ChaosToDivineRatio: 200,
		CardPrices: map[string]models.CardPrice{
			"House of Mirrors": {DivineValue: 18, ChaosValue: 3600},
			"The Doctor":       {ChaosValue: 2200}, // divine derived from ratio
			"The Nurse":        {DivineValue: 0.5, ChaosValue: 100},
			"The Union":        {ChaosValue: 25},
			"Emperor's Luck":   {ChaosValue: 3},
			"Rain of Chaos":    {ChaosValue: 0.3},
		},
	}

	want := map[string]Tier{
		"House of Mirrors": TierJackpot,
		"The Doctor":       TierJackpot,
		"The Nurse":        TierHigh,
		"The Union":        TierHigh, // 25/200 = 0.125 divine
		"Emperor's Luck":   TierMid,
		"Rain of Chaos":    TierLow,
	}

	got := ClassifyRarity(table)
	if len(got) != len(want) {
		t.Fatalf("expected %d tiers, got %d", len(want), len(got))
	}
	for name, tier := range want {
		if got[name] != tier {
			t.Errorf("%s: expected %s, got %s", name, tier, got[name])
		}
	}
}

func TestClassifyRarity_ZeroRatio(t *testing.T) {
	// Without a usable ratio the chaos value alone decides mid vs low.
	table := models.PriceTable{
		CardPrices: map[string]models.CardPrice{
			"The Doctor":    {ChaosValue: 2200},
			"Rain of Chaos": {ChaosValue: 0.3},
		},
	}

	got := ClassifyRarity(table)
	if got["The Doctor"] != TierMid {
		t.Errorf("expected mid without a divine ratio, got %s", got["The Doctor"])
	}
	if got["Rain of Chaos"] != TierLow {
		t.Errorf("expected low, got %s", got["Rain of Chaos"])
	}
}

func TestClassifyRarity_TierBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		price models.CardPrice
		want  Tier
	}{
		{"exactly one divine", models.CardPrice{DivineValue: 1.0}, TierJackpot},
		{"just under one divine", models.CardPrice{DivineValue: 0.999}, TierHigh},
		{"exactly a tenth divine", models.CardPrice{DivineValue: 0.1}, TierHigh},
		{"exactly one chaos", models.CardPrice{ChaosValue: 1.0}, TierMid},
		{"just under one chaos", models.CardPrice{ChaosValue: 0.99}, TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.price, 0)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

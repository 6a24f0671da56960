package services

import (
	"math"
	"sort"

	"quest-progression-system/models"
)

// MultiplierPolicy turns a streak length into an XP bonus multiplier.
type MultiplierPolicy struct {
	Enabled bool
	Tiers   []models.MultiplierTier
}

// DefaultMultiplierPolicy uses the reference tiers (3/7/14/30 days).
var DefaultMultiplierPolicy = NewMultiplierPolicy(true, models.DefaultMultiplierTiers())

// NewMultiplierPolicy copies tiers and orders them from the longest streak down.
func NewMultiplierPolicy(enabled bool, tiers []models.MultiplierTier) MultiplierPolicy {
	sorted := make([]models.MultiplierTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Days > sorted[j].Days })
	return MultiplierPolicy{Enabled: enabled, Tiers: sorted}
}

// For returns the multiplier for a post-update streak length.
func (p MultiplierPolicy) For(streak int) float64 {
	if !p.Enabled {
		return 1.0
	}
	for _, t := range p.Tiers {
		if streak >= t.Days {
			return t.Multiplier
		}
	}
	return 1.0
}

// Gain applies the multiplier to a base reward, rounding to the nearest XP.
func (p MultiplierPolicy) Gain(base int64, streak int) (int64, float64) {
	mult := p.For(streak)
	return int64(math.Round(float64(base) * mult)), mult
}

package service

import (
	"math"
	"math/big"

	"betrounds/models"
)

// DefaultFallbackMultiplier applies to a side whose ratio is undefined
const DefaultFallbackMultiplier = 2.0

// ComputeOdds derives the per-side view of a round from its committed wagers.
// It keeps no state: the same inputs always give the same result, so callers
// recompute from the stored rows instead of tracking running totals.
//
// multiplier_i = 1 + pool_other / pool_i, where pools are sums of pooled
// amounts. A side with an empty pool, or whose ratio is not a finite positive
// number, gets the fallback multiplier.
func ComputeOdds(sides []string, wagers []*models.RoundWager, fallback float64) *models.RoundOdds {
	odds := &models.RoundOdds{
		Sides: make([]models.SideOdds, len(sides)),
	}
	for i, name := range sides {
		odds.Sides[i] = models.SideOdds{Index: i, Name: name}
	}

	for _, w := range wagers {
		if w == nil || w.SideIndex < 0 || w.SideIndex >= len(sides) {
			continue
		}
		side := &odds.Sides[w.SideIndex]
		side.Pool += w.PooledAmount
		side.WagerCount++
		odds.TotalPool += w.PooledAmount
		odds.WagerCount++
	}

	for i := range odds.Sides {
		side := &odds.Sides[i]
		side.Multiplier = fallback
		side.Fallback = true

		if side.Pool <= 0 {
			continue
		}
		ratio := float64(odds.TotalPool-side.Pool) / float64(side.Pool)
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
			continue
		}
		side.Multiplier = 1 + ratio
		side.Fallback = false
	}

	return odds
}

// WinningPayout returns floor(pooled * multiplier) for a wager on the winning
// side. Non-fallback multipliers are applied in integer arithmetic so that
// e.g. 300 at 1+100/300 pays exactly 400.
func WinningPayout(pooled int64, side models.SideOdds, totalPool int64) int64 {
	if pooled <= 0 {
		return 0
	}
	if side.Fallback || side.Pool <= 0 {
		return int64(math.Floor(float64(pooled) * side.Multiplier))
	}

	share := new(big.Int).Mul(big.NewInt(pooled), big.NewInt(totalPool-side.Pool))
	share.Quo(share, big.NewInt(side.Pool))
	return pooled + share.Int64()
}

// PooledAmount is what remains of a stake after the placement fee
func PooledAmount(amount, feePercent int64) int64 {
	if feePercent <= 0 {
		return amount
	}
	if feePercent >= 100 {
		return 0
	}
	return amount - amount*feePercent/100
}

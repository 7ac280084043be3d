package service

import (
	"testing"

	"betrounds/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wager(discordID int64, side int, pooled int64) *models.RoundWager {
	return &models.RoundWager{DiscordID: discordID, SideIndex: side, Amount: pooled, PooledAmount: pooled}
}

func TestComputeOdds_TwoSides(t *testing.T) {
	odds := ComputeOdds([]string{"Red", "Blue"}, []*models.RoundWager{
		wager(1, 0, 100),
		wager(2, 1, 300),
	}, DefaultFallbackMultiplier)

	require.Len(t, odds.Sides, 2)
	assert.InDelta(t, 4.0, odds.Sides[0].Multiplier, 1e-9)
	assert.InDelta(t, 1.3333, odds.Sides[1].Multiplier, 1e-3)
	assert.False(t, odds.Sides[0].Fallback)
	assert.Equal(t, int64(100), odds.Sides[0].Pool)
	assert.Equal(t, int64(300), odds.Sides[1].Pool)
	assert.Equal(t, int64(400), odds.TotalPool)
	assert.Equal(t, 2, odds.WagerCount)

	assert.Equal(t, int64(400), WinningPayout(100, odds.Sides[0], odds.TotalPool))
	assert.Equal(t, int64(400), WinningPayout(300, odds.Sides[1], odds.TotalPool))
}

func TestComputeOdds_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		wagers   []*models.RoundWager
		fallback float64
		expected []float64
	}{
		{
			name:     "no wagers",
			wagers:   nil,
			fallback: 2.0,
			expected: []float64{2.0, 2.0},
		},
		{
			name:     "one side empty",
			wagers:   []*models.RoundWager{wager(1, 0, 500)},
			fallback: 2.0,
			expected: []float64{2.0, 2.0},
		},
		{
			name:     "custom fallback",
			wagers:   []*models.RoundWager{wager(1, 1, 50)},
			fallback: 1.5,
			expected: []float64{1.5, 1.5},
		},
		{
			name:     "zero pooled after fee",
			wagers:   []*models.RoundWager{wager(1, 0, 0), wager(2, 1, 100)},
			fallback: 2.0,
			expected: []float64{2.0, 2.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			odds := ComputeOdds([]string{"A", "B"}, tt.wagers, tt.fallback)
			for i, want := range tt.expected {
				assert.InDelta(t, want, odds.Sides[i].Multiplier, 1e-9, "side %d", i)
				assert.True(t, odds.Sides[i].Fallback, "side %d", i)
			}
		})
	}
}

func TestComputeOdds_ThreeSides(t *testing.T) {
	odds := ComputeOdds([]string{"A", "B", "C"}, []*models.RoundWager{
		wager(1, 0, 100),
		wager(2, 1, 100),
		wager(3, 1, 100),
		wager(4, 2, 200),
	}, DefaultFallbackMultiplier)

	assert.InDelta(t, 5.0, odds.Sides[0].Multiplier, 1e-9)
	assert.InDelta(t, 2.5, odds.Sides[1].Multiplier, 1e-9)
	assert.InDelta(t, 2.5, odds.Sides[2].Multiplier, 1e-9)
	assert.Equal(t, 2, odds.Sides[1].WagerCount)
}

func TestComputeOdds_IgnoresOutOfRangeSides(t *testing.T) {
	odds := ComputeOdds([]string{"A", "B"}, []*models.RoundWager{
		wager(1, 0, 100),
		wager(2, 7, 100),
		nil,
	}, DefaultFallbackMultiplier)

	assert.Equal(t, int64(100), odds.TotalPool)
	assert.Equal(t, 1, odds.WagerCount)
}

func TestComputeOdds_IsPure(t *testing.T) {
	wagers := []*models.RoundWager{wager(1, 0, 120), wager(2, 1, 80), wager(3, 1, 45)}
	sides := []string{"Red", "Blue"}

	first := ComputeOdds(sides, wagers, DefaultFallbackMultiplier)
	second := ComputeOdds(sides, wagers, DefaultFallbackMultiplier)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(120), wagers[0].PooledAmount)
	assert.Equal(t, []string{"Red", "Blue"}, sides)
}

func TestWinningPayout_FloorsFallback(t *testing.T) {
	side := models.SideOdds{Pool: 0, Multiplier: 1.5, Fallback: true}
	assert.Equal(t, int64(150), WinningPayout(100, side, 0))
	assert.Equal(t, int64(1), WinningPayout(1, side, 0))
	assert.Equal(t, int64(0), WinningPayout(0, side, 0))
}

func TestWinningPayout_FloorsRatio(t *testing.T) {
	// 1 + 100/700: 350 * 8/7 = 400, 7 * 8/7 = 8, 5 * 8/7 = 5.71 -> 5
	side := models.SideOdds{Pool: 700, Multiplier: 1 + 100.0/700.0}
	assert.Equal(t, int64(400), WinningPayout(350, side, 800))
	assert.Equal(t, int64(8), WinningPayout(7, side, 800))
	assert.Equal(t, int64(5), WinningPayout(5, side, 800))
}

func TestPooledAmount(t *testing.T) {
	assert.Equal(t, int64(1000), PooledAmount(1000, 0))
	assert.Equal(t, int64(950), PooledAmount(1000, 5))
	assert.Equal(t, int64(99), PooledAmount(99, 1)) // 0.99 fee rounds down to nothing
	assert.Equal(t, int64(0), PooledAmount(1000, 100))
}

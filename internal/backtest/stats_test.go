package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func closedTrade(ret float64) Trade {
	exit := DatedDecision{}
	return Trade{Exit: &exit, Return: ret}
}

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(nil)
	assert.Equal(t, Stats{}, stats)
}

func TestCalculateStats_WinRate(t *testing.T) {
	trades := []Trade{
		closedTrade(0.10),
		closedTrade(-0.05),
		closedTrade(0.02),
		{Return: 0.5}, // open: excluded from win rate
	}

	stats := CalculateStats(trades)
	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
	assert.InDelta(t, 7.0, stats.TotalReturn, 0.01)
}

func TestCalculateStats_MaxDrawdown(t *testing.T) {
	trades := []Trade{
		closedTrade(0.10),
		closedTrade(-0.20),
		closedTrade(0.05),
	}

	stats := CalculateStats(trades)
	assert.InDelta(t, 20.0, stats.MaxDrawdown, 0.01)
}

func TestCalculateStats_SharpeNeedsTwoReturns(t *testing.T) {
	stats := CalculateStats([]Trade{closedTrade(0.10)})
	assert.Zero(t, stats.SharpeRatio)
}

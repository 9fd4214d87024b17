package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}

	result := SMA(prices, 5)
	require.Len(t, result, 2)
	assert.InDelta(t, 3.0, result[0], 1e-9)
	assert.InDelta(t, 4.0, result[1], 1e-9)
}

func TestSMA_NotEnoughData(t *testing.T) {
	assert.Empty(t, SMA([]float64{1, 2, 3}, 5))
	assert.Empty(t, SMA(nil, 5))
	assert.Empty(t, SMA([]float64{1, 2, 3}, 0))
}

func TestStdDev_CorrectedSample(t *testing.T) {
	// Sample {2,4,4,4,5,5,7,9}: mean 5, sum of squares 32, n-1=7
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.13809, got, 1e-4)

	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestRollingStdDev(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10, 20}

	result := RollingStdDev(prices, 5)
	require.Len(t, result, 2)
	assert.InDelta(t, 0.0, result[0], 1e-9)
	// {10,10,10,10,20}: mean 12, squares 4*4+64=80, /4 = 20, sqrt ≈ 4.4721
	assert.InDelta(t, 4.4721, result[1], 1e-4)
}

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	result := RSI(prices, 14)
	require.NotEmpty(t, result)
	assert.InDelta(t, 100.0, result[len(result)-1], 1e-9)
}

func TestRSI_AllLosses(t *testing.T) {
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}

	result := RSI(prices, 14)
	require.NotEmpty(t, result)
	assert.InDelta(t, 0.0, result[len(result)-1], 1e-9)
}

func TestRSI_Flat(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100
	}

	result := RSI(prices, 14)
	require.NotEmpty(t, result)
	assert.InDelta(t, 50.0, result[0], 1e-9)
}

func TestRSI_Range(t *testing.T) {
	prices := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}

	result := RSI(prices, 14)
	require.NotEmpty(t, result)
	for _, v := range result {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	// Classic Wilder worked example: first RSI around 70
	assert.InDelta(t, 70.46, result[0], 0.5)
}

func TestRSI_NotEnoughData(t *testing.T) {
	assert.Empty(t, RSI([]float64{1, 2, 3}, 14))
}

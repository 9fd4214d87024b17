package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// StdDev returns the corrected sample standard deviation of window.
// Returns 0 for windows shorter than 2.
func StdDev(window []float64) float64 {
	n := len(window)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}

// RollingStdDev calculates the corrected sample standard deviation over a
// sliding window. Returns slice of length: len(prices) - period + 1.
func RollingStdDev(prices []float64, period int) []float64 {
	if period < 2 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	for i := period; i <= len(prices); i++ {
		result = append(result, StdDev(prices[i-period:i]))
	}
	return result
}

// RSI calculates Wilder's Relative Strength Index. Each value needs period
// price changes, so the result has length: len(prices) - period.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return []float64{}
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	// Seed with the simple average of the first period changes
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	result := make([]float64, 0, len(prices)-period)
	result = append(result, rsiValue(avgGain, avgLoss))

	// Wilder smoothing for the rest
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

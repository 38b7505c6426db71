package indicators

import "math"

// SMA returns the trailing simple moving average for every index; entries
// before period-1 are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA seeds with the SMA of the first period values and then applies
// k = 2/(period+1).
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[period-1] = prev
	for i := period; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// RSI uses Wilder smoothing and needs period+1 closes for its first value.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, the signal line and the histogram. The signal
// is an EMA over the defined part of the MACD line.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(closes)
	line = nanSlice(n)
	sig = nanSlice(n)
	hist = nanSlice(n)
	if n < slow {
		return line, sig, hist
	}
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = ef[i] - es[i]
	}
	defined := line[slow-1:]
	s := EMA(defined, signal)
	for i, v := range s {
		idx := slow - 1 + i
		sig[idx] = v
		if !math.IsNaN(v) {
			hist[idx] = line[idx] - v
		}
	}
	return line, sig, hist
}

// Bollinger computes middle/upper/lower bands at the last index using the
// population standard deviation.
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, 0, 0, false
	}
	window := closes[len(closes)-period:]
	middle = mean(window)
	sd := stddev(window, middle)
	return middle + k*sd, middle, middle - k*sd, true
}

// TrueRange needs the previous close, so index 0 is NaN.
func TrueRange(high, low, close []float64) []float64 {
	out := nanSlice(len(close))
	for i := 1; i < len(close); i++ {
		pc := close[i-1]
		out[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-pc), math.Abs(low[i]-pc)))
	}
	return out
}

// ATR seeds with the mean of the first period true ranges and then applies
// Wilder's recursion.
func ATR(high, low, close []float64, period int) []float64 {
	out := nanSlice(len(close))
	if period <= 0 || len(close) < period+1 {
		return out
	}
	tr := TrueRange(high, low, close)
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	p := float64(period)
	for i := period + 1; i < len(close); i++ {
		prev = (prev*(p-1) + tr[i]) / p
		out[i] = prev
	}
	return out
}

// SwingLevels finds the nearest swing low below and swing high above price
// within the last lookback bars. A swing needs strength bars on each side.
func SwingLevels(high, low []float64, price float64, lookback, strength int) (support, resistance float64, hasSupport, hasResistance bool) {
	n := len(high)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	for i := start + strength; i < n-strength; i++ {
		if isSwingLow(low, i, strength) && low[i] < price {
			if !hasSupport || low[i] > support {
				support, hasSupport = low[i], true
			}
		}
		if isSwingHigh(high, i, strength) && high[i] > price {
			if !hasResistance || high[i] < resistance {
				resistance, hasResistance = high[i], true
			}
		}
	}
	return support, resistance, hasSupport, hasResistance
}

func isSwingLow(low []float64, i, strength int) bool {
	for j := 1; j <= strength; j++ {
		if low[i] >= low[i-j] || low[i] >= low[i+j] {
			return false
		}
	}
	return true
}

func isSwingHigh(high []float64, i, strength int) bool {
	for j := 1; j <= strength; j++ {
		if high[i] <= high[i-j] || high[i] <= high[i+j] {
			return false
		}
	}
	return true
}

// lastN returns the last n defined values, oldest first. ok is false when
// fewer than n trailing values are defined.
func lastN(values []float64, n int) ([]float64, bool) {
	if len(values) < n {
		return nil, false
	}
	tail := values[len(values)-n:]
	for _, v := range tail {
		if math.IsNaN(v) {
			return nil, false
		}
	}
	out := make([]float64, n)
	copy(out, tail)
	return out, true
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 || math.IsNaN(values[len(values)-1]) {
		return 0, false
	}
	return values[len(values)-1], true
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func stddev(v []float64, m float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		d := x - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(v)))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

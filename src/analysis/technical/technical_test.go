package technical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-analytics/src/models"
)

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func candlesFromCloses(closes []float64) []models.MCandle {
	out := make([]models.MCandle, len(closes))
	for i, c := range closes {
		out[i] = models.MCandle{
			Timestamp: int64(i) * 86400,
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

// sawtooth produces a noisy but deterministic series
func sawtooth(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%4)
	}
	return out
}

func TestSMA(t *testing.T) {
	data := []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19, 20, 19, 21, 23, 22}
	sma := SMA(data, 5)

	require.Len(t, sma, len(data))
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(sma[i]), "index %d should be undefined", i)
	}
	assert.InDelta(t, 12.2, sma[4], 1e-12)
	assert.InDelta(t, (19+20+19+21+23)/5.0, sma[13], 1e-12)

	assert.Len(t, SMA(data, 20), len(data))
	assert.True(t, math.IsNaN(SMA(data, 20)[14]))
}

func TestEMA(t *testing.T) {
	t.Run("constant series stays constant", func(t *testing.T) {
		ema := EMA(constant(50, 20), 5)
		require.Len(t, ema, 20)
		for i := 0; i < 4; i++ {
			assert.True(t, math.IsNaN(ema[i]))
		}
		for i := 4; i < 20; i++ {
			assert.Equal(t, 50.0, ema[i])
		}
	})

	t.Run("recurrence", func(t *testing.T) {
		ema := EMA([]float64{1, 2, 3, 4, 5}, 3)
		assert.InDelta(t, 2.0, ema[2], 1e-12)
		assert.InDelta(t, 3.0, ema[3], 1e-12)
		assert.InDelta(t, 4.0, ema[4], 1e-12)
	})

	t.Run("skips leading undefined", func(t *testing.T) {
		ema := EMA([]float64{math.NaN(), math.NaN(), 2, 4, 6}, 2)
		assert.True(t, math.IsNaN(ema[2]))
		assert.InDelta(t, 3.0, ema[3], 1e-12)
	})
}

func TestRSI(t *testing.T) {
	t.Run("constant price clamps to 100", func(t *testing.T) {
		rsi := RSI(constant(100, 30), 14)
		require.Len(t, rsi, 29)
		for i := 0; i < 13; i++ {
			assert.True(t, math.IsNaN(rsi[i]), "index %d should be undefined", i)
		}
		for i := 13; i < 29; i++ {
			assert.Equal(t, 100.0, rsi[i])
		}
	})

	t.Run("bounded", func(t *testing.T) {
		for _, v := range RSI(sawtooth(120), 14) {
			if math.IsNaN(v) {
				continue
			}
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	})

	t.Run("falling series is 0", func(t *testing.T) {
		data := make([]float64, 20)
		for i := range data {
			data[i] = 100 - float64(i)
		}
		rsi := RSI(data, 14)
		assert.Equal(t, 0.0, rsi[len(rsi)-1])
	})

	t.Run("short input", func(t *testing.T) {
		assert.Empty(t, RSI([]float64{1}, 14))
		rsi := RSI([]float64{1, 2, 3}, 14)
		require.Len(t, rsi, 2)
		assert.True(t, math.IsNaN(rsi[1]))
	})
}

func TestMACD(t *testing.T) {
	data := sawtooth(80)
	m := MACD(data, 12, 26, 9)

	require.Len(t, m.Line, len(data))
	require.Len(t, m.Signal, len(data))
	require.Len(t, m.Histogram, len(data))

	assert.True(t, math.IsNaN(m.Line[24]))
	assert.False(t, math.IsNaN(m.Line[25]))
	assert.True(t, math.IsNaN(m.Signal[32]))
	assert.False(t, math.IsNaN(m.Signal[33]))

	for i := range data {
		if math.IsNaN(m.Signal[i]) {
			assert.True(t, math.IsNaN(m.Histogram[i]))
			continue
		}
		assert.Equal(t, m.Line[i]-m.Signal[i], m.Histogram[i])
	}
}

func TestBollinger(t *testing.T) {
	data := sawtooth(60)
	b := Bollinger(data, 20, 2)

	require.Len(t, b.Upper, len(data))
	for i := range data {
		if math.IsNaN(b.Middle[i]) {
			assert.True(t, math.IsNaN(b.Upper[i]))
			assert.True(t, math.IsNaN(b.Lower[i]))
			continue
		}
		assert.GreaterOrEqual(t, b.Upper[i], b.Middle[i])
		assert.GreaterOrEqual(t, b.Middle[i], b.Lower[i])
	}

	flat := Bollinger(constant(10, 25), 20, 2)
	assert.Equal(t, 10.0, flat.Upper[24])
	assert.Equal(t, 10.0, flat.Lower[24])
}

func TestATR(t *testing.T) {
	candles := []models.MCandle{
		{High: 10, Low: 8, Close: 9},
		{High: 12, Low: 9, Close: 11},  // TR = max(3, 3, 0) = 3
		{High: 11, Low: 10, Close: 10}, // TR = max(1, 0, 1) = 1
		{High: 15, Low: 11, Close: 14}, // TR = max(4, 5, 1) = 5
	}

	atr := ATR(candles, 2)
	require.Len(t, atr, 3)
	assert.True(t, math.IsNaN(atr[0]))
	assert.InDelta(t, 2.0, atr[1], 1e-12)
	assert.InDelta(t, 3.5, atr[2], 1e-12)
	assert.Empty(t, ATR(candles[:1], 2))
}

func TestOBVAndVWAP(t *testing.T) {
	candles := []models.MCandle{
		{High: 10, Low: 10, Close: 10, Volume: 0},
		{High: 12, Low: 10, Close: 11, Volume: 200},
		{High: 11, Low: 11, Close: 11, Volume: 300},
		{High: 10, Low: 8, Close: 9, Volume: 400},
	}

	assert.Equal(t, models.MSeries{0, 200, 200, -200}, OBV(candles))

	vwap := VWAP(candles)
	assert.True(t, math.IsNaN(vwap[0]))
	assert.InDelta(t, 11.0, vwap[1], 1e-12)
	assert.InDelta(t, (11*200+11*300)/500.0, vwap[2], 1e-12)
}

func TestStochastic(t *testing.T) {
	flat := Stochastic(candlesFromCloses(constant(10, 5)), 3, 2)
	require.Len(t, flat.K, 5)
	assert.True(t, math.IsNaN(flat.K[1]))
	// high-low spread of 1 on every bar keeps the window non-degenerate
	assert.InDelta(t, 50.0, flat.K[2], 1e-12)

	rising := Stochastic(candlesFromCloses([]float64{1, 2, 3, 4, 5}), 3, 2)
	// window lows 1.5..high 5.5, close 5
	assert.InDelta(t, 100*(5-2.5)/(5.5-2.5), rising.K[4], 1e-12)
	assert.True(t, math.IsNaN(rising.D[2]))
	assert.InDelta(t, (rising.K[3]+rising.K[4])/2, rising.D[4], 1e-12)
}

func TestPivotPointsAndFibonacci(t *testing.T) {
	p := PivotPoints(110, 90, 100)
	assert.Equal(t, models.MPivotPoints{Pivot: 100, R1: 110, S1: 90, R2: 120, S2: 80, R3: 130, S3: 70}, p)

	f := Fibonacci(200, 100)
	require.Len(t, f.Retracements, 7)
	require.Len(t, f.Extensions, 5)
	assert.Equal(t, 200.0, f.Retracements[0].Price)
	assert.InDelta(t, 150.0, f.Retracements[3].Price, 1e-9)
	assert.Equal(t, 100.0, f.Retracements[6].Price)
	assert.InDelta(t, 261.8, f.Extensions[1].Price, 1e-9)
	for _, e := range f.Extensions {
		assert.Greater(t, e.Price, 200.0)
	}
}

func doubleTopCloses() []float64 {
	return []float64{100, 102, 104, 106, 108, 110, 108, 106, 104, 102, 100, 102, 104, 106, 108, 110.2, 108, 106, 104}
}

func TestSupportResistance(t *testing.T) {
	levels := SupportResistance(candlesFromCloses(doubleTopCloses()), 2, 0.01)
	require.Len(t, levels, 2)

	assert.Equal(t, "resistance", levels[0].Type)
	assert.Equal(t, 2, levels[0].Touches)
	assert.InDelta(t, 110.6, levels[0].Price, 1e-9)
	assert.Equal(t, 1.0, levels[0].Strength)

	assert.Equal(t, "support", levels[1].Type)
	assert.InDelta(t, 99.5, levels[1].Price, 1e-9)
}

func TestDetectPatterns(t *testing.T) {
	t.Run("candlesticks", func(t *testing.T) {
		candles := []models.MCandle{
			{Open: 100.2, High: 105, Low: 95, Close: 100}, // doji
			{Open: 105, High: 106, Low: 99, Close: 100},   // down
			{Open: 99, High: 108, Low: 98, Close: 107},    // bullish engulfing
			{Open: 100, High: 101.2, Low: 95, Close: 101}, // hammer
			{Open: 100, High: 100, Low: 100, Close: 100},  // no range
		}
		types := map[string]models.MPatternMatch{}
		for _, m := range DetectPatterns(candles) {
			types[m.Type] = m
			assert.GreaterOrEqual(t, m.Confidence, 0.0)
			assert.LessOrEqual(t, m.Confidence, 1.0)
		}

		require.Contains(t, types, PatternDoji)
		assert.Equal(t, 0, types[PatternDoji].StartIndex)
		require.Contains(t, types, PatternBullishEngulfing)
		assert.Equal(t, 1, types[PatternBullishEngulfing].StartIndex)
		assert.Equal(t, 2, types[PatternBullishEngulfing].EndIndex)
		require.Contains(t, types, PatternHammer)
		assert.Equal(t, 3, types[PatternHammer].StartIndex)
		assert.NotContains(t, types, PatternBearishEngulfing)
	})

	t.Run("double top", func(t *testing.T) {
		var tops []models.MPatternMatch
		for _, m := range DetectPatterns(candlesFromCloses(doubleTopCloses())) {
			if m.Type == PatternDoubleTop {
				tops = append(tops, m)
			}
			assert.NotEqual(t, PatternDoubleBottom, m.Type)
		}
		require.Len(t, tops, 1)
		assert.Equal(t, 5, tops[0].StartIndex)
		assert.Equal(t, 15, tops[0].EndIndex)
		assert.Greater(t, tops[0].Confidence, 0.5)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DetectPatterns(nil))
	})
}

func TestTechnicalAnalysisService(t *testing.T) {
	svc := NewTechnicalAnalysisService(models.MMarketDataConfig{SMAPeriod: 5, EMAPeriod: 5})
	candles := candlesFromCloses(sawtooth(50))

	set := svc.ComputeIndicatorSet("AAPL", candles)
	assert.Equal(t, "AAPL", set.Symbol)
	assert.Len(t, set.SMA, 50)
	assert.Len(t, set.EMA, 50)
	assert.Len(t, set.RSI, 49)
	assert.Len(t, set.MACD.Line, 50)
	assert.Len(t, set.Bollinger.Upper, 50)

	series, err := svc.ComputeIndicator(models.MChartIndicator{ID: "m", Type: "macd"}, candles)
	require.NoError(t, err)
	assert.Len(t, series, 3)
	assert.Contains(t, series, "m.histogram")

	series, err = svc.ComputeIndicator(models.MChartIndicator{ID: "s", Type: "sma", Period: 10}, candles)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(series["s"][8]))
	assert.False(t, math.IsNaN(series["s"][9]))

	_, err = svc.ComputeIndicator(models.MChartIndicator{ID: "x", Type: "ichimoku"}, candles)
	assert.Error(t, err)

	ov, err := svc.ComputeOverlay(models.MChartOverlay{ID: "p", Type: "pivot"}, candles)
	require.NoError(t, err)
	assert.Len(t, ov.Levels, 7)

	ov, err = svc.ComputeOverlay(models.MChartOverlay{ID: "f", Type: "fibonacci"}, candles)
	require.NoError(t, err)
	assert.Len(t, ov.Levels, 12)
	assert.Contains(t, ov.Levels, "retracement_0.618")

	_, err = svc.ComputeOverlay(models.MChartOverlay{ID: "z", Type: "gann"}, candles)
	assert.Error(t, err)
}

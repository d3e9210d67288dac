package models

// MMACD holds the three MACD series, each aligned to the input.
type MMACD struct {
	Line      MSeries `json:"macd_line"`
	Signal    MSeries `json:"signal_line"`
	Histogram MSeries `json:"histogram"`
}

// MBollingerBands holds the three band series, each aligned to the input.
type MBollingerBands struct {
	Upper  MSeries `json:"upper"`
	Middle MSeries `json:"middle"`
	Lower  MSeries `json:"lower"`
}

// MStochastic holds %K and %D.
type MStochastic struct {
	K MSeries `json:"k"`
	D MSeries `json:"d"`
}

// MTechnicalIndicatorSet is the indicator bundle computed from one candle series.
// RSI is shorter than the input (one entry per price difference).
type MTechnicalIndicatorSet struct {
	Symbol    string          `json:"symbol"`
	SMA       MSeries         `json:"sma"`
	EMA       MSeries         `json:"ema"`
	RSI       MSeries         `json:"rsi"`
	MACD      MMACD           `json:"macd"`
	Bollinger MBollingerBands `json:"bollinger"`
}

// -----------------------------------------------------------------------------

// MPivotPoints are the classic floor-trader levels from one prior bar.
type MPivotPoints struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	R3    float64 `json:"r3"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
}

// MFibonacciLevel is one ratio of the high/low range and its price.
type MFibonacciLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// MFibonacciLevels holds retracements (inside the range) and extensions
// (beyond the high), each ordered by ratio.
type MFibonacciLevels struct {
	Retracements []MFibonacciLevel `json:"retracements"`
	Extensions   []MFibonacciLevel `json:"extensions"`
}

// MPatternMatch is one detected chart or candlestick pattern.
type MPatternMatch struct {
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	StartIndex  int     `json:"start_index"`
	EndIndex    int     `json:"end_index"`
	Description string  `json:"description"`
}

// MPriceLevel is a support or resistance level.
type MPriceLevel struct {
	Type     string  `json:"type"` // "support" or "resistance"
	Price    float64 `json:"price"`
	Strength float64 `json:"strength"` // 0..1
	Touches  int     `json:"touches"`
}

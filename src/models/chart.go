package models

// Chart themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// MChartIndicator is a user-configured indicator on a chart.
type MChartIndicator struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"` // sma, ema, rsi, macd, bollinger, atr, obv, stochastic, vwap
	Period  int                `json:"period,omitempty"`
	Params  map[string]float64 `json:"params,omitempty"`
	Color   string             `json:"color,omitempty"`
	Visible bool               `json:"visible"`
}

// MChartOverlay is a derived price-level overlay.
type MChartOverlay struct {
	ID     string             `json:"id"`
	Type   string             `json:"type"` // pivot, fibonacci, support_resistance, patterns
	Params map[string]float64 `json:"params,omitempty"`
	Color  string             `json:"color,omitempty"`
}

// MChartAnnotation is a free-form marker placed by the user.
type MChartAnnotation struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"` // text, line, marker
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Text      string  `json:"text,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// MChartColors are the theme-derived colors.
type MChartColors struct {
	Background        string `json:"background"`
	Text              string `json:"text"`
	Grid              string `json:"grid"`
	Crosshair         string `json:"crosshair"`
	TooltipBackground string `json:"tooltip_background"`
	TooltipText       string `json:"tooltip_text"`
	Up                string `json:"up"`
	Down              string `json:"down"`
}

// MChartOptions is the user-configurable chart state.
type MChartOptions struct {
	Theme       string             `json:"theme"`
	Timeframe   string             `json:"timeframe"`
	ChartType   string             `json:"chart_type"` // candlestick, line, area, bar
	Indicators  []MChartIndicator  `json:"indicators"`
	Overlays    []MChartOverlay    `json:"overlays"`
	Annotations []MChartAnnotation `json:"annotations"`
	Colors      MChartColors       `json:"colors"`
}

// MChartOptionsPatch is a partial update; nil fields are left untouched.
type MChartOptionsPatch struct {
	Theme     *string `json:"theme,omitempty"`
	Timeframe *string `json:"timeframe,omitempty"`
	ChartType *string `json:"chart_type,omitempty"`
}

// MOverlayData is the computed content of an overlay.
type MOverlayData struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Levels   map[string]float64 `json:"levels,omitempty"`
	Patterns []MPatternMatch    `json:"patterns,omitempty"`
	Color    string             `json:"color,omitempty"`
}

// MChartData is the renderable record for one symbol.
type MChartData struct {
	Symbol      string             `json:"symbol"`
	Timeframe   string             `json:"timeframe"`
	Candles     []MCandle          `json:"candles"`
	Indicators  map[string]MSeries `json:"indicators"`
	Overlays    []MOverlayData     `json:"overlays"`
	Annotations []MChartAnnotation `json:"annotations"`
}

// MChartState is the snapshot published by the chart service.
type MChartState struct {
	Options      MChartOptions         `json:"options"`
	Data         map[string]MChartData `json:"data"`
	ActiveSymbol string                `json:"active_symbol"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
}

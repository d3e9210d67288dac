package chart

import (
	"fmt"

	"market-analytics/src/analysis/technical"
	"market-analytics/src/helpers"
	"market-analytics/src/models"
)

var chartTypes = map[string]bool{
	"candlestick": true,
	"line":        true,
	"area":        true,
	"bar":         true,
}

var annotationTypes = map[string]bool{
	"text":   true,
	"line":   true,
	"marker": true,
}

// -----------------------------------------------------------------------------

// ThemeColors derives the grid, crosshair and tooltip colors of a theme.
func ThemeColors(theme string) models.MChartColors {
	if theme == models.ThemeDark {
		return models.MChartColors{
			Background:        "#131722",
			Text:              "#d1d4dc",
			Grid:              "#2a2e39",
			Crosshair:         "#758696",
			TooltipBackground: "#1e222d",
			TooltipText:       "#d1d4dc",
			Up:                "#26a69a",
			Down:              "#ef5350",
		}
	}
	return models.MChartColors{
		Background:        "#ffffff",
		Text:              "#191919",
		Grid:              "#e1e3eb",
		Crosshair:         "#9598a1",
		TooltipBackground: "#ffffff",
		TooltipText:       "#131722",
		Up:                "#26a69a",
		Down:              "#ef5350",
	}
}

// -----------------------------------------------------------------------------
// Indicators
// -----------------------------------------------------------------------------

// AddIndicator appends ind. Ids are caller supplied and must be unique.
func (s *ChartService) AddIndicator(ind models.MChartIndicator) error {
	if ind.ID == "" {
		return helpers.NewValidationError("indicator id is required")
	}
	if !technical.IndicatorTypes[ind.Type] {
		return helpers.NewValidationError(fmt.Sprintf("unknown indicator type %q", ind.Type))
	}

	var err error
	s.commit(func(st *models.MChartState) bool {
		for _, existing := range st.Options.Indicators {
			if existing.ID == ind.ID {
				err = helpers.NewValidationError(fmt.Sprintf("indicator %q already exists", ind.ID))
				return false
			}
		}
		st.Options.Indicators = append(st.Options.Indicators, ind)
		s.rebuild(st)
		return true
	})
	return err
}

// -----------------------------------------------------------------------------

// RemoveIndicator drops the indicator with id. Unknown ids are ignored.
func (s *ChartService) RemoveIndicator(id string) {
	s.commit(func(st *models.MChartState) bool {
		out := st.Options.Indicators[:0]
		for _, ind := range st.Options.Indicators {
			if ind.ID != id {
				out = append(out, ind)
			}
		}
		if len(out) == len(st.Options.Indicators) {
			return false
		}
		st.Options.Indicators = out
		s.rebuild(st)
		return true
	})
}

// -----------------------------------------------------------------------------
// Overlays
// -----------------------------------------------------------------------------

func (s *ChartService) AddOverlay(ov models.MChartOverlay) error {
	if ov.ID == "" {
		return helpers.NewValidationError("overlay id is required")
	}
	if !technical.OverlayTypes[ov.Type] {
		return helpers.NewValidationError(fmt.Sprintf("unknown overlay type %q", ov.Type))
	}

	var err error
	s.commit(func(st *models.MChartState) bool {
		for _, existing := range st.Options.Overlays {
			if existing.ID == ov.ID {
				err = helpers.NewValidationError(fmt.Sprintf("overlay %q already exists", ov.ID))
				return false
			}
		}
		st.Options.Overlays = append(st.Options.Overlays, ov)
		s.rebuild(st)
		return true
	})
	return err
}

// -----------------------------------------------------------------------------

func (s *ChartService) RemoveOverlay(id string) {
	s.commit(func(st *models.MChartState) bool {
		out := st.Options.Overlays[:0]
		for _, ov := range st.Options.Overlays {
			if ov.ID != id {
				out = append(out, ov)
			}
		}
		if len(out) == len(st.Options.Overlays) {
			return false
		}
		st.Options.Overlays = out
		s.rebuild(st)
		return true
	})
}

// -----------------------------------------------------------------------------
// Annotations
// -----------------------------------------------------------------------------

func (s *ChartService) AddAnnotation(a models.MChartAnnotation) error {
	if a.ID == "" {
		return helpers.NewValidationError("annotation id is required")
	}
	if !annotationTypes[a.Type] {
		return helpers.NewValidationError(fmt.Sprintf("unknown annotation type %q", a.Type))
	}

	var err error
	s.commit(func(st *models.MChartState) bool {
		for _, existing := range st.Options.Annotations {
			if existing.ID == a.ID {
				err = helpers.NewValidationError(fmt.Sprintf("annotation %q already exists", a.ID))
				return false
			}
		}
		st.Options.Annotations = append(st.Options.Annotations, a)
		s.syncAnnotations(st)
		return true
	})
	return err
}

// -----------------------------------------------------------------------------

func (s *ChartService) RemoveAnnotation(id string) {
	s.commit(func(st *models.MChartState) bool {
		out := st.Options.Annotations[:0]
		for _, a := range st.Options.Annotations {
			if a.ID != id {
				out = append(out, a)
			}
		}
		if len(out) == len(st.Options.Annotations) {
			return false
		}
		st.Options.Annotations = out
		s.syncAnnotations(st)
		return true
	})
}

// -----------------------------------------------------------------------------

// syncAnnotations copies the annotation list into every loaded record.
func (s *ChartService) syncAnnotations(st *models.MChartState) {
	for sym, d := range st.Data {
		d.Annotations = append([]models.MChartAnnotation{}, st.Options.Annotations...)
		st.Data[sym] = d
	}
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// UpdateOptions applies a partial update. The patch is validated as a whole
// before anything changes. A new timeframe takes effect on the next load.
func (s *ChartService) UpdateOptions(patch models.MChartOptionsPatch) error {
	if patch.Theme != nil && *patch.Theme != models.ThemeLight && *patch.Theme != models.ThemeDark {
		return helpers.NewValidationError(fmt.Sprintf("unknown theme %q", *patch.Theme))
	}
	if patch.Timeframe != nil {
		if _, ok := fetchPlans[*patch.Timeframe]; !ok {
			return helpers.NewValidationError(fmt.Sprintf("unsupported timeframe %q", *patch.Timeframe))
		}
	}
	if patch.ChartType != nil && !chartTypes[*patch.ChartType] {
		return helpers.NewValidationError(fmt.Sprintf("unknown chart type %q", *patch.ChartType))
	}

	s.commit(func(st *models.MChartState) bool {
		if patch.Theme != nil {
			st.Options.Theme = *patch.Theme
			st.Options.Colors = ThemeColors(*patch.Theme)
		}
		if patch.Timeframe != nil {
			st.Options.Timeframe = *patch.Timeframe
		}
		if patch.ChartType != nil {
			st.Options.ChartType = *patch.ChartType
		}
		return true
	})
	return nil
}

// -----------------------------------------------------------------------------

// SetTheme switches the theme and re-derives the colors.
func (s *ChartService) SetTheme(theme string) error {
	return s.UpdateOptions(models.MChartOptionsPatch{Theme: &theme})
}

// -----------------------------------------------------------------------------

// WatchTheme follows a light/dark preference source for the lifetime of the
// service, or until prefs is closed.
func (s *ChartService) WatchTheme(prefs <-chan string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case theme, ok := <-prefs:
				if !ok {
					return
				}
				if err := s.SetTheme(theme); err != nil {
					s.Logger.Warning("Ignoring theme preference: %v", err)
				}
			}
		}
	}()
}

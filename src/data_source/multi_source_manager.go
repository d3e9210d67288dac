package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"market-analytics/src/helpers"
	"market-analytics/src/interfaces"
	"market-analytics/src/logger"
	"market-analytics/src/models"
)

// MultiSourceManager is an IHistoricalSource that tries its sources in order
// and returns the first successful answer.
type MultiSourceManager struct {
	Sources []interfaces.IHistoricalSource
	Logger  *logger.Logger
	mu      sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.IHistoricalSource, log *logger.Logger) *MultiSourceManager {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &MultiSourceManager{
		Sources: append([]interfaces.IHistoricalSource(nil), sources...),
		Logger:  log.Named("MultiSourceManager"),
	}
}

// -----------------------------------------------------------------------------

func (m *MultiSourceManager) Name() string {
	return "multi"
}

// -----------------------------------------------------------------------------

// AddSource appends a lower-priority source
func (m *MultiSourceManager) AddSource(source interfaces.IHistoricalSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.Sources {
		if s.Name() == source.Name() {
			return fmt.Errorf("source %s already exists", source.Name())
		}
	}

	m.Sources = append(m.Sources, source)
	m.Logger.Info("Added source: %s", source.Name())
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource removes a source by name
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.Sources {
		if s.Name() == name {
			m.Sources = append(m.Sources[:i], m.Sources[i+1:]...)
			m.Logger.Info("Removed source: %s", name)
			return nil
		}
	}
	return fmt.Errorf("source %s not found", name)
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.IHistoricalSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.Sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("source %s not found", name)
}

// -----------------------------------------------------------------------------

// FetchAggregates walks the sources in priority order. A source answering with
// no candles is skipped in favour of the next one. Context errors stop the walk.
func (m *MultiSourceManager) FetchAggregates(ctx context.Context, symbol, interval, rng string) ([]models.MCandle, error) {
	m.mu.RLock()
	sources := append([]interfaces.IHistoricalSource(nil), m.Sources...)
	m.mu.RUnlock()

	if len(sources) == 0 {
		return nil, helpers.NewDataSourceError("no historical sources configured", nil)
	}

	var errs []error
	var empty []models.MCandle
	for _, src := range sources {
		candles, err := src.FetchAggregates(ctx, symbol, interval, rng)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.Logger.Warning("Source %s failed for %s: %v", src.Name(), symbol, err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if len(candles) == 0 {
			empty = []models.MCandle{}
			continue
		}
		if len(errs) > 0 {
			m.Logger.Info("Served %s from fallback source %s", symbol, src.Name())
		}
		return candles, nil
	}

	if empty != nil {
		return empty, nil
	}
	return nil, helpers.NewDataSourceError(fmt.Sprintf("all sources failed for %s", symbol), errors.Join(errs...))
}

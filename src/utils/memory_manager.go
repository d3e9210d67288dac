package utils

import (
	"runtime"
	"runtime/debug"
	"sync"

	"market-analytics/src/logger"
	"market-analytics/src/models"
)

// -----------------------------------------------------------------------------
// MemoryManager keeps a bounded tick history per symbol.
// -----------------------------------------------------------------------------

type MemoryManager struct {
	DataStreams   map[string]*RingBuffer[models.MTradeTick]
	MaxMemoryMB   int
	MaxDataPoints int
	Logger        *logger.Logger
	mu            sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMemoryManager(maxMemoryMB, maxDataPoints int, l *logger.Logger) *MemoryManager {
	if l == nil {
		l = logger.NewSilentLogger()
	}
	if maxDataPoints <= 0 {
		maxDataPoints = DefaultTickHistory
	}
	return &MemoryManager{
		DataStreams:   make(map[string]*RingBuffer[models.MTradeTick]),
		MaxMemoryMB:   maxMemoryMB,
		MaxDataPoints: maxDataPoints,
		Logger:        l.Named("MemoryManager"),
	}
}

// -----------------------------------------------------------------------------

// AddTick appends a tick to the symbol's buffer.
func (mm *MemoryManager) AddTick(tick models.MTradeTick) {
	mm.mu.Lock()
	buffer, ok := mm.DataStreams[tick.Symbol]
	if !ok {
		buffer = NewRingBuffer[models.MTradeTick](mm.MaxDataPoints)
		mm.DataStreams[tick.Symbol] = buffer
	}
	buffer.Append(tick)
	check := buffer.Size()%100 == 0
	mm.mu.Unlock()

	// Periodic memory check
	if check {
		mm.CheckMemoryLimits()
	}
}

// -----------------------------------------------------------------------------

// History returns up to n most recent ticks, oldest first. n <= 0 means all.
func (mm *MemoryManager) History(symbol string, n int) []models.MTradeTick {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	buffer, ok := mm.DataStreams[symbol]
	if !ok {
		return []models.MTradeTick{}
	}
	if n <= 0 {
		return buffer.GetAll()
	}
	return buffer.GetLatest(n)
}

// -----------------------------------------------------------------------------

// RemoveSymbol drops the history of a symbol.
func (mm *MemoryManager) RemoveSymbol(symbol string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	delete(mm.DataStreams, symbol)
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits halves buffer capacities when the heap exceeds the limit.
func (mm *MemoryManager) CheckMemoryLimits() {
	if mm.MaxMemoryMB <= 0 {
		return
	}

	currentMemory := mm.GetProcessMemoryMB()
	if currentMemory <= float64(mm.MaxMemoryMB) {
		return
	}

	mm.Logger.Warning("Memory usage %.1fMB exceeds limit %dMB. Shrinking tick history.",
		currentMemory, mm.MaxMemoryMB)

	mm.mu.Lock()
	for _, buffer := range mm.DataStreams {
		if buffer.Capacity() > 100 {
			newCapacity := buffer.Capacity() / 2
			if newCapacity < 50 {
				newCapacity = 50
			}
			buffer.Resize(newCapacity)
		}
	}
	mm.mu.Unlock()

	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current heap usage in MB
func (mm *MemoryManager) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Cleanup clears all data
func (mm *MemoryManager) Cleanup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.DataStreams = make(map[string]*RingBuffer[models.MTradeTick])
}

// -----------------------------------------------------------------------------

// SymbolCount returns number of symbols with data
func (mm *MemoryManager) SymbolCount() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return len(mm.DataStreams)
}

package agent

import (
	"log/slog"
	"sync"

	"github.com/sentinelstack/sentinel-agent/internal/analyzer"
	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// PerformanceSource exposes analyzer performance records for selection
// ranking. The reallocator is the single owner of the underlying state.
type PerformanceSource interface {
	Snapshot(analyzerName string) (models.PerformanceSnapshot, bool)
}

type registryEntry struct {
	analyzer analyzer.Analyzer
	types    map[models.TaskType]struct{}
	order    int
}

// Selector holds the set of registered analyzers and matches tasks to the
// best-fit candidate using the reallocator's performance history.
type Selector struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	nextOrd int

	perf   PerformanceSource
	logger *slog.Logger
}

// NewSelector constructs an empty registry. perf may be nil; selection then
// falls back to registration order.
func NewSelector(logger *slog.Logger, perf PerformanceSource) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		entries: make(map[string]*registryEntry),
		perf:    perf,
		logger:  logger,
	}
}

// SetPerformanceSource wires the performance history after construction.
// The selector and reallocator reference each other, so one side is attached
// late; this must happen before tasks are dispatched.
func (s *Selector) SetPerformanceSource(perf PerformanceSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf = perf
}

// Register adds an analyzer under its name. Re-registering a name replaces
// the prior entry but keeps its original registration order.
func (s *Selector) Register(a analyzer.Analyzer) {
	if a == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make(map[models.TaskType]struct{})
	for _, t := range a.SupportedTaskTypes() {
		types[t] = struct{}{}
	}

	ord := s.nextOrd
	if prior, ok := s.entries[a.Name()]; ok {
		ord = prior.order
	} else {
		s.nextOrd++
	}
	s.entries[a.Name()] = &registryEntry{analyzer: a, types: types, order: ord}
	s.logger.Debug("analyzer registered", slog.String("name", a.Name()), slog.Int("task_types", len(types)))
}

// Unregister removes an analyzer by name. Unknown names are ignored.
func (s *Selector) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

// Get returns the registered analyzer for a name.
func (s *Selector) Get(name string) (analyzer.Analyzer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[name]
	if !ok {
		return nil, false
	}
	return entry.analyzer, true
}

// RegistrationOrder returns the position at which an analyzer was first
// registered. Unknown names sort last.
func (s *Selector) RegistrationOrder(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[name]; ok {
		return entry.order
	}
	return int(^uint(0) >> 1)
}

// Select picks the analyzer name best suited for the task. Analyzers that
// already failed the task are excluded from the next attempt unless they are
// the only capable candidates left. Returns NoCapableAnalyzerError when no
// registered analyzer can serve the task at all.
func (s *Selector) Select(task *models.Task) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	capable := s.capableLocked(task)
	if len(capable) == 0 {
		return "", &NoCapableAnalyzerError{TaskID: task.ID, TaskType: string(task.Type)}
	}

	fresh := capable[:0:0]
	for _, entry := range capable {
		if !task.HasFailedWith(entry.analyzer.Name()) {
			fresh = append(fresh, entry)
		}
	}
	candidates := fresh
	if len(candidates) == 0 {
		// Every capable analyzer already failed this task; the retry budget,
		// not selection, decides whether it runs again.
		candidates = capable
	}

	best := candidates[0]
	for _, entry := range candidates[1:] {
		if s.betterLocked(entry, best) {
			best = entry
		}
	}
	return best.analyzer.Name(), nil
}

// CanServe reports whether any registered analyzer could run the task on a
// further attempt.
func (s *Selector) CanServe(task *models.Task) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.capableLocked(task)) > 0
}

func (s *Selector) capableLocked(task *models.Task) []*registryEntry {
	capable := make([]*registryEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if _, ok := entry.types[task.Type]; !ok {
			continue
		}
		if !entry.analyzer.CanHandle(task) {
			continue
		}
		capable = append(capable, entry)
	}
	return capable
}

// betterLocked ranks a above b by success rate, then lower average duration,
// then registration order. Analyzers without history rank as if perfect so
// fresh registrations get exercised.
func (s *Selector) betterLocked(a, b *registryEntry) bool {
	ra, da := s.scoreLocked(a)
	rb, db := s.scoreLocked(b)
	if ra != rb {
		return ra > rb
	}
	if da != db {
		return da < db
	}
	return a.order < b.order
}

func (s *Selector) scoreLocked(entry *registryEntry) (rate float64, avgDuration float64) {
	if s.perf == nil {
		return 1, 0
	}
	snap, ok := s.perf.Snapshot(entry.analyzer.Name())
	if !ok || snap.Attempts() == 0 {
		return 1, 0
	}
	return snap.SuccessRate(), snap.AvgDuration.Seconds()
}

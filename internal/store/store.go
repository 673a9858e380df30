package store

import (
	"sort"
	"sync"
	"time"

	"price_forecast/internal/model"
)

// Store holds the latest feed snapshot and a bounded history of published
// forecasts, oldest first.
type Store struct {
	mu       sync.RWMutex
	snapshot *model.FeedSnapshot
	history  []model.Forecast
	limit    int
}

// New creates a store that keeps at most limit forecasts (minimum 1).
func New(limit int) *Store {
	if limit < 1 {
		limit = 1
	}
	return &Store{limit: limit}
}

// SetSnapshot replaces the stored feed snapshot.
func (s *Store) SetSnapshot(snap model.FeedSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snap
}

// Snapshot returns the latest feed snapshot.
func (s *Store) Snapshot() (model.FeedSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return model.FeedSnapshot{}, false
	}
	return *s.snapshot, true
}

// AddForecast appends f if it is newer than every stored forecast and
// reports whether it was accepted. The oldest entry is evicted once the
// limit is reached.
func (s *Store) AddForecast(f model.Forecast) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.history); n > 0 && f.Seq <= s.history[n-1].Seq {
		return false
	}
	s.history = append(s.history, f)
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	return true
}

// Latest returns the most recent forecast.
func (s *Store) Latest() (model.Forecast, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return model.Forecast{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns the stored forecasts, oldest first.
func (s *Store) History() []model.Forecast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Forecast, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of stored forecasts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// LatestInRange returns the most recent forecast with its points restricted
// to [start, end). A zero bound is open.
func (s *Store) LatestInRange(start, end time.Time) (model.Forecast, bool) {
	f, ok := s.Latest()
	if !ok {
		return model.Forecast{}, false
	}
	f.Points = PointsInRange(f.Points, start, end)
	return f, true
}

// PointsInRange returns a copy of the chronological points between start
// (inclusive) and end (exclusive). A zero bound is open. Both bounds are
// found by binary search.
func PointsInRange(points []model.PricePoint, start, end time.Time) []model.PricePoint {
	startIdx := 0
	if !start.IsZero() {
		startIdx = sort.Search(len(points), func(i int) bool {
			return !points[i].Timestamp.Before(start)
		})
	}
	endIdx := len(points)
	if !end.IsZero() {
		endIdx = sort.Search(len(points), func(i int) bool {
			return !points[i].Timestamp.Before(end)
		})
	}

	if startIdx >= endIdx {
		return []model.PricePoint{}
	}

	result := make([]model.PricePoint, endIdx-startIdx)
	copy(result, points[startIdx:endIdx])
	return result
}

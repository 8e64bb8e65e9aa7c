// Package history keeps a rolling window of metric samples per (symbol, kind)
// series so callers can answer "what was this metric ~24h ago". The store is
// purely in-memory; FileStore snapshots it to disk.
package history

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultReplaceWindow  = time.Minute
	defaultQueryTolerance = 2 * time.Hour
)

// DefaultRetention is how long samples are kept unless overridden.
const DefaultRetention = 48 * time.Hour

// DefaultLookback is the horizon change reports compare against.
const DefaultLookback = 24 * time.Hour

// Sample is a single observation. Samples are immutable once stored.
type Sample struct {
	Value float64
	At    time.Time
}

// Key identifies one metric series.
type Key struct {
	Symbol string
	Metric Kind
}

// NewKey normalises the symbol into a series key.
func NewKey(symbol string, metric Kind) Key {
	return Key{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Metric: metric}
}

// Store holds every tracked series behind a single RW lock. The series count
// stays in the tens, so one lock over the whole map is enough; no I/O happens
// while it is held.
type Store struct {
	mu        sync.RWMutex
	series    map[Key][]Sample
	retention time.Duration
	replace   time.Duration
	tolerance time.Duration
}

// Option customises a Store.
type Option func(*Store)

// WithRetention overrides how long samples are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithReplaceWindow overrides the window within which a new sample overwrites
// an existing one instead of appending.
func WithReplaceWindow(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.replace = d
		}
	}
}

// WithQueryTolerance overrides how far from the target QueryNear may reach.
func WithQueryTolerance(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.tolerance = d
		}
	}
}

// NewStore returns an empty store with 48h retention, a 1m replace window and
// a ±2h query tolerance unless overridden.
func NewStore(opts ...Option) *Store {
	s := &Store{
		series:    make(map[Key][]Sample),
		retention: DefaultRetention,
		replace:   defaultReplaceWindow,
		tolerance: defaultQueryTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert records one observation. Series stay ordered by timestamp regardless
// of arrival order. A sample landing within the replace window of an existing
// one overwrites it, so retried deliveries never duplicate history. Non-finite
// values are ignored. The series' stale tail is pruned on the way in.
func (s *Store) Insert(symbol string, metric Kind, value float64, at time.Time) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	key := NewKey(symbol, metric)

	s.mu.Lock()
	defer s.mu.Unlock()

	samples := s.series[key]
	if j := nearestIndex(samples, at); j >= 0 && absDuration(at.Sub(samples[j].At)) <= s.replace {
		samples = append(samples[:j], samples[j+1:]...)
	}
	idx := sort.Search(len(samples), func(i int) bool { return samples[i].At.After(at) })
	samples = append(samples, Sample{})
	copy(samples[idx+1:], samples[idx:])
	samples[idx] = Sample{Value: value, At: at}

	cutoff := samples[len(samples)-1].At.Add(-s.retention)
	if drop := staleCount(samples, cutoff); drop > 0 {
		samples = append([]Sample(nil), samples[drop:]...)
	}
	s.series[key] = samples
}

// Latest returns the most recent sample of the series.
func (s *Store) Latest(symbol string, metric Kind) (Sample, bool) {
	key := NewKey(symbol, metric)

	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.series[key]
	if len(samples) == 0 {
		return Sample{}, false
	}
	return samples[len(samples)-1], true
}

// QueryNear returns the sample closest to target within the query tolerance.
// Exact ties prefer the earlier sample. ok is false when the series is absent
// or nothing falls inside the window.
func (s *Store) QueryNear(symbol string, metric Kind, target time.Time) (Sample, bool) {
	key := NewKey(symbol, metric)

	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.series[key]
	if len(samples) == 0 {
		return Sample{}, false
	}
	idx := sort.Search(len(samples), func(i int) bool { return !samples[i].At.Before(target) })
	best := -1
	if idx > 0 {
		best = idx - 1
	}
	if idx < len(samples) {
		if best < 0 || absDuration(samples[idx].At.Sub(target)) < absDuration(target.Sub(samples[best].At)) {
			best = idx
		}
	}
	if best < 0 || absDuration(samples[best].At.Sub(target)) > s.tolerance {
		return Sample{}, false
	}
	return samples[best], true
}

// ChangeSince returns the percent change between the latest sample and the
// sample nearest to now minus lookback. The latest sample never serves as its
// own baseline. ok is false when either sample is missing or the baseline is
// zero.
func (s *Store) ChangeSince(symbol string, metric Kind, now time.Time, lookback time.Duration) (float64, bool) {
	current, ok := s.Latest(symbol, metric)
	if !ok {
		return 0, false
	}
	historical, ok := s.QueryNear(symbol, metric, now.Add(-lookback))
	if !ok || historical.At.Equal(current.At) {
		return 0, false
	}
	return PercentChange(current.Value, historical.Value)
}

// EvictStale drops samples older than the retention window across all series,
// removing series that become empty. It returns the number of samples
// evicted. This is the only mutation besides Insert.
func (s *Store) EvictStale(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, samples := range s.series {
		drop := staleCount(samples, cutoff)
		if drop == 0 {
			continue
		}
		evicted += drop
		if drop == len(samples) {
			delete(s.series, key)
			continue
		}
		s.series[key] = append([]Sample(nil), samples[drop:]...)
	}
	return evicted
}

// Keys lists the stored series keys in stable order.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.series))
	for key := range s.series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Metric < keys[j].Metric
	})
	return keys
}

// Len reports the total number of stored samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, samples := range s.series {
		total += len(samples)
	}
	return total
}

// Snapshot deep-copies every series so callers can serialize without holding
// the store's lock.
func (s *Store) Snapshot() map[Key][]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key][]Sample, len(s.series))
	for key, samples := range s.series {
		out[key] = append([]Sample(nil), samples...)
	}
	return out
}

// nearestIndex returns the index of the sample closest to at, or -1 for an
// empty series.
func nearestIndex(samples []Sample, at time.Time) int {
	if len(samples) == 0 {
		return -1
	}
	idx := sort.Search(len(samples), func(i int) bool { return samples[i].At.After(at) })
	best := -1
	if idx > 0 {
		best = idx - 1
	}
	if idx < len(samples) {
		if best < 0 || absDuration(samples[idx].At.Sub(at)) < absDuration(at.Sub(samples[best].At)) {
			best = idx
		}
	}
	return best
}

// staleCount returns how many leading samples fall before cutoff.
func staleCount(samples []Sample, cutoff time.Time) int {
	return sort.Search(len(samples), func(i int) bool { return !samples[i].At.Before(cutoff) })
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

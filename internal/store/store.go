package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"aemo-price-feed/internal/nem"
)

// ErrNoData indicates no series has been stored for the requested feed.
var ErrNoData = errors.New("store: no data for region")

// historyWindow bounds the rolling spot price history used for spike checks.
const historyWindow = 12

// Options tune staleness and failure handling.
type Options struct {
	FailureThreshold int
	StaleAfter       map[nem.ProductKind]time.Duration
}

type key struct {
	region nem.Region
	kind   nem.ProductKind
}

// Store holds the latest decoded series per region and product, plus the
// rolling spot history. All methods are safe for concurrent use.
type Store struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.RWMutex
	data    map[key]*Snapshot
	history map[nem.Region][]decimal.Decimal
}

// New constructs an empty Store.
func New(opts Options, logger zerolog.Logger) *Store {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.StaleAfter == nil {
		opts.StaleAfter = make(map[nem.ProductKind]time.Duration, len(nem.Products()))
		for _, kind := range nem.Products() {
			opts.StaleAfter[kind] = kind.DefaultStaleAfter()
		}
	}
	return &Store{
		opts:    opts,
		logger:  logger.With().Str("component", "store").Logger(),
		data:    make(map[key]*Snapshot),
		history: make(map[nem.Region][]decimal.Decimal),
	}
}

// Update replaces the stored series for a feed and clears its failure state.
// The store takes ownership of series. Realtime updates also push the newest
// spot price onto the region's rolling history.
func (s *Store) Update(region nem.Region, kind nem.ProductKind, series nem.ForecastSeries) Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.entryLocked(region, kind)
	snap.Series = series
	snap.LastUpdated = now
	snap.LastChecked = now
	snap.Failures = 0
	snap.Stale = false

	if kind == nem.ProductRealtime {
		if last, ok := series.Last(); ok {
			s.pushHistoryLocked(region, last.Price)
		}
	}
	return s.viewLocked(*snap)
}

// Touch records a successful check that produced no new data. It clears the
// failure count so a healthy source never drifts into failure staleness.
func (s *Store) Touch(region nem.Region, kind nem.ProductKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.entryLocked(region, kind)
	snap.LastChecked = time.Now()
	snap.Failures = 0
	snap.Stale = false
}

// MarkFailure records a failed poll cycle and returns the consecutive failure
// count. Once the count reaches the configured threshold the feed is flagged
// stale, retaining its last good series.
func (s *Store) MarkFailure(region nem.Region, kind nem.ProductKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.entryLocked(region, kind)
	snap.LastChecked = time.Now()
	snap.Failures++
	if snap.Failures >= s.opts.FailureThreshold && !snap.Stale {
		snap.Stale = true
		s.logger.Warn().
			Str("region", string(region)).
			Str("product", string(kind)).
			Int("failures", snap.Failures).
			Msg("feed marked stale after consecutive failures")
	}
	return snap.Failures
}

// Snapshot returns a copy of the stored state for a feed.
func (s *Store) Snapshot(region nem.Region, kind nem.ProductKind) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[key{region: region, kind: kind}]
	if !ok {
		return Snapshot{}, fmt.Errorf("%s %s: %w", region, kind, ErrNoData)
	}
	return s.viewLocked(*snap), nil
}

// Current resolves the spot price for a region: the newest dispatch
// observation, or the head of the five-minute forecast when dispatch has
// yielded nothing yet.
func (s *Store) Current(region nem.Region) (CurrentPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if snap, ok := s.data[key{region: region, kind: nem.ProductRealtime}]; ok {
		if last, found := snap.Series.Last(); found {
			return CurrentPrice{Region: region, Point: last, Source: nem.ProductRealtime, Stale: s.staleLocked(*snap)}, nil
		}
	}
	if snap, ok := s.data[key{region: region, kind: nem.ProductFiveMinute}]; ok {
		if first, found := snap.Series.First(); found {
			return CurrentPrice{Region: region, Point: first, Source: nem.ProductFiveMinute, Stale: s.staleLocked(*snap)}, nil
		}
	}
	return CurrentPrice{}, fmt.Errorf("%s current price: %w", region, ErrNoData)
}

// Peak returns the highest forecast price strictly after now. Ties keep the
// earliest interval. Kind may be a forecast product or the merged view.
func (s *Store) Peak(region nem.Region, kind nem.ProductKind) (PeakPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var series nem.ForecastSeries
	switch kind {
	case nem.ProductMerged:
		merged, err := s.mergedLocked(region)
		if err != nil {
			return PeakPrice{}, err
		}
		series = merged
	case nem.ProductFiveMinute, nem.ProductPredispatch:
		snap, ok := s.data[key{region: region, kind: kind}]
		if !ok {
			return PeakPrice{}, fmt.Errorf("%s %s: %w", region, kind, ErrNoData)
		}
		series = snap.Series
	default:
		return PeakPrice{}, fmt.Errorf("peak is defined for forecast products, got %q", kind)
	}

	upcoming := series.After(time.Now())
	if len(upcoming) == 0 {
		return PeakPrice{}, fmt.Errorf("%s %s has no upcoming intervals: %w", region, kind, ErrNoData)
	}
	peak := upcoming[0]
	for _, point := range upcoming[1:] {
		if point.Price.GreaterThan(peak.Price) {
			peak = point
		}
	}
	return PeakPrice{Region: region, Kind: kind, Point: peak}, nil
}

// Merged combines the five-minute forecast with the predispatch intervals
// beyond its horizon into a single continuous series.
func (s *Store) Merged(region nem.Region) (nem.ForecastSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergedLocked(region)
}

// Spike assesses the newest spot price against the region's rolling history.
func (s *Store) Spike(region nem.Region) nem.SpikeInfo {
	s.mu.RLock()
	hist := make([]decimal.Decimal, len(s.history[region]))
	copy(hist, s.history[region])
	s.mu.RUnlock()

	return nem.AssessSpike(region, hist)
}

// Remove drops all state for a region.
func (s *Store) Remove(region nem.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range nem.Products() {
		delete(s.data, key{region: region, kind: kind})
	}
	delete(s.history, region)
}

func (s *Store) entryLocked(region nem.Region, kind nem.ProductKind) *Snapshot {
	k := key{region: region, kind: kind}
	snap, ok := s.data[k]
	if !ok {
		snap = &Snapshot{Region: region, Kind: kind}
		s.data[k] = snap
	}
	return snap
}

func (s *Store) pushHistoryLocked(region nem.Region, price decimal.Decimal) {
	hist := append(s.history[region], price)
	if len(hist) > historyWindow {
		hist = hist[len(hist)-historyWindow:]
	}
	s.history[region] = hist
}

func (s *Store) mergedLocked(region nem.Region) (nem.ForecastSeries, error) {
	five, haveFive := s.data[key{region: region, kind: nem.ProductFiveMinute}]
	pre, havePre := s.data[key{region: region, kind: nem.ProductPredispatch}]
	if !haveFive && !havePre {
		return nem.ForecastSeries{}, fmt.Errorf("%s merged: %w", region, ErrNoData)
	}

	merged := nem.ForecastSeries{Region: region, Kind: nem.ProductMerged}
	if haveFive {
		merged.Points = append(merged.Points, five.Series.Points...)
		merged.GeneratedAt = five.Series.GeneratedAt
		merged.SourceFile = five.Series.SourceFile
	}
	if havePre {
		tail := pre.Series.Points
		if haveFive {
			if last, ok := five.Series.Last(); ok {
				tail = pre.Series.After(last.Time)
			}
		}
		merged.Points = append(merged.Points, tail...)
		if pre.Series.GeneratedAt.After(merged.GeneratedAt) {
			merged.GeneratedAt = pre.Series.GeneratedAt
		}
		if merged.SourceFile == "" {
			merged.SourceFile = pre.Series.SourceFile
		}
	}
	merged.Normalize()
	return merged, nil
}

// viewLocked copies a snapshot for return to callers, deriving the effective
// staleness at read time.
func (s *Store) viewLocked(snap Snapshot) Snapshot {
	out := snap
	out.Series = snap.Series.Clone()
	out.Stale = s.staleLocked(snap)
	return out
}

// staleLocked reports whether a feed should be treated as stale: either the
// failure threshold tripped, or the last good update is older than the
// product's freshness window.
func (s *Store) staleLocked(snap Snapshot) bool {
	if snap.Stale {
		return true
	}
	window := s.opts.StaleAfter[snap.Kind]
	if window <= 0 {
		return false
	}
	if snap.LastUpdated.IsZero() {
		return true
	}
	return time.Since(snap.LastUpdated) > window
}

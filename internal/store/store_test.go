package store

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"aemo-price-feed/internal/nem"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestStore(opts Options) *Store {
	return New(opts, noopLogger())
}

func seriesOf(region nem.Region, kind nem.ProductKind, points ...nem.PricePoint) nem.ForecastSeries {
	return nem.ForecastSeries{Region: region, Kind: kind, Points: points, GeneratedAt: time.Now()}
}

func point(t time.Time, price int64) nem.PricePoint {
	return nem.PricePoint{Time: t, Price: decimal.NewFromInt(price)}
}

func TestUpdateAndSnapshot(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionNSW, nem.ProductRealtime, seriesOf(nem.RegionNSW, nem.ProductRealtime, point(now, 85)))

	snap, err := s.Snapshot(nem.RegionNSW, nem.ProductRealtime)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Stale {
		t.Fatal("fresh update must not be stale")
	}
	if snap.LastUpdated.IsZero() || snap.LastChecked.IsZero() {
		t.Fatal("update must stamp both timestamps")
	}

	// Returned series is a copy; mutating it must not affect the store.
	snap.Series.Points[0].Price = decimal.NewFromInt(-999)
	again, _ := s.Snapshot(nem.RegionNSW, nem.ProductRealtime)
	if !again.Series.Points[0].Price.Equal(decimal.NewFromInt(85)) {
		t.Fatal("snapshot must not alias internal state")
	}
}

func TestSnapshotUnknownFeed(t *testing.T) {
	s := newTestStore(Options{})
	if _, err := s.Snapshot(nem.RegionSA, nem.ProductRealtime); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCurrentFallsBackToForecast(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionVIC, nem.ProductFiveMinute, seriesOf(nem.RegionVIC, nem.ProductFiveMinute,
		point(now.Add(5*time.Minute), 60),
		point(now.Add(10*time.Minute), 70),
	))

	cur, err := s.Current(nem.RegionVIC)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if cur.Source != nem.ProductFiveMinute {
		t.Fatalf("expected five-minute fallback, got %s", cur.Source)
	}
	if !cur.Point.Price.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("fallback must use the forecast head, got %s", cur.Point.Price)
	}

	s.Update(nem.RegionVIC, nem.ProductRealtime, seriesOf(nem.RegionVIC, nem.ProductRealtime, point(now, 55)))
	cur, err = s.Current(nem.RegionVIC)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if cur.Source != nem.ProductRealtime || !cur.Point.Price.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("dispatch data must win once present, got %s from %s", cur.Point.Price, cur.Source)
	}
}

func TestCurrentNoData(t *testing.T) {
	s := newTestStore(Options{})
	if _, err := s.Current(nem.RegionQLD); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestPeakSkipsElapsedIntervals(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionNSW, nem.ProductFiveMinute, seriesOf(nem.RegionNSW, nem.ProductFiveMinute,
		point(now.Add(-5*time.Minute), 500),
		point(now.Add(5*time.Minute), 90),
		point(now.Add(10*time.Minute), 120),
		point(now.Add(15*time.Minute), 120),
	))

	peak, err := s.Peak(nem.RegionNSW, nem.ProductFiveMinute)
	if err != nil {
		t.Fatalf("peak failed: %v", err)
	}
	if !peak.Point.Price.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("elapsed interval must not win, got %s", peak.Point.Price)
	}
	if !peak.Point.Time.Equal(now.Add(10 * time.Minute)) {
		t.Fatal("equal prices must keep the earliest interval")
	}
}

func TestPeakAcrossMergedView(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionNSW, nem.ProductFiveMinute, seriesOf(nem.RegionNSW, nem.ProductFiveMinute,
		point(now.Add(5*time.Minute), 90),
	))
	s.Update(nem.RegionNSW, nem.ProductPredispatch, seriesOf(nem.RegionNSW, nem.ProductPredispatch,
		point(now.Add(30*time.Minute), 300),
	))

	peak, err := s.Peak(nem.RegionNSW, nem.ProductMerged)
	if err != nil {
		t.Fatalf("peak failed: %v", err)
	}
	if !peak.Point.Price.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("merged peak must consider predispatch tail, got %s", peak.Point.Price)
	}
	if peak.Kind != nem.ProductMerged {
		t.Fatalf("unexpected kind %s", peak.Kind)
	}
}

func TestPeakRejectsRealtime(t *testing.T) {
	s := newTestStore(Options{})
	if _, err := s.Peak(nem.RegionNSW, nem.ProductRealtime); err == nil {
		t.Fatal("peak over dispatch history makes no sense and must error")
	}
}

func TestMergedPrefersFiveMinute(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionSA, nem.ProductFiveMinute, seriesOf(nem.RegionSA, nem.ProductFiveMinute,
		point(now.Add(5*time.Minute), 50),
		point(now.Add(10*time.Minute), 55),
	))
	s.Update(nem.RegionSA, nem.ProductPredispatch, seriesOf(nem.RegionSA, nem.ProductPredispatch,
		point(now.Add(10*time.Minute), 999),
		point(now.Add(40*time.Minute), 70),
		point(now.Add(70*time.Minute), 80),
	))

	merged, err := s.Merged(nem.RegionSA)
	if err != nil {
		t.Fatalf("merged failed: %v", err)
	}
	if merged.Kind != nem.ProductMerged {
		t.Fatalf("unexpected kind %s", merged.Kind)
	}
	if len(merged.Points) != 4 {
		t.Fatalf("expected 4 points (overlap dropped), got %d", len(merged.Points))
	}
	// The overlapping 10-minute interval must come from the five-minute feed.
	if !merged.Points[1].Price.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("five-minute data must win inside its horizon, got %s", merged.Points[1].Price)
	}
	for i := 1; i < len(merged.Points); i++ {
		if !merged.Points[i-1].Time.Before(merged.Points[i].Time) {
			t.Fatal("merged series must be strictly increasing")
		}
	}
}

func TestMergedPredispatchOnly(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionTAS, nem.ProductPredispatch, seriesOf(nem.RegionTAS, nem.ProductPredispatch,
		point(now.Add(30*time.Minute), 45),
	))

	merged, err := s.Merged(nem.RegionTAS)
	if err != nil {
		t.Fatalf("merged failed: %v", err)
	}
	if len(merged.Points) != 1 {
		t.Fatalf("expected the predispatch point, got %d", len(merged.Points))
	}
}

func TestMarkFailureFlagsStale(t *testing.T) {
	s := newTestStore(Options{FailureThreshold: 2})
	now := time.Now()

	s.Update(nem.RegionQLD, nem.ProductRealtime, seriesOf(nem.RegionQLD, nem.ProductRealtime, point(now, 42)))

	if got := s.MarkFailure(nem.RegionQLD, nem.ProductRealtime); got != 1 {
		t.Fatalf("expected failure count 1, got %d", got)
	}
	snap, _ := s.Snapshot(nem.RegionQLD, nem.ProductRealtime)
	if snap.Stale {
		t.Fatal("one failure below threshold must not flag stale")
	}

	if got := s.MarkFailure(nem.RegionQLD, nem.ProductRealtime); got != 2 {
		t.Fatalf("expected failure count 2, got %d", got)
	}
	snap, _ = s.Snapshot(nem.RegionQLD, nem.ProductRealtime)
	if !snap.Stale {
		t.Fatal("reaching the threshold must flag stale")
	}
	if snap.Series.Empty() {
		t.Fatal("staleness must retain the last good series")
	}

	s.Update(nem.RegionQLD, nem.ProductRealtime, seriesOf(nem.RegionQLD, nem.ProductRealtime, point(now, 43)))
	snap, _ = s.Snapshot(nem.RegionQLD, nem.ProductRealtime)
	if snap.Stale || snap.Failures != 0 {
		t.Fatal("a successful update must clear failure state")
	}
}

func TestTouchResetsFailures(t *testing.T) {
	s := newTestStore(Options{FailureThreshold: 3})

	s.MarkFailure(nem.RegionNSW, nem.ProductFiveMinute)
	s.MarkFailure(nem.RegionNSW, nem.ProductFiveMinute)
	s.Touch(nem.RegionNSW, nem.ProductFiveMinute)
	s.MarkFailure(nem.RegionNSW, nem.ProductFiveMinute)

	snap, err := s.Snapshot(nem.RegionNSW, nem.ProductFiveMinute)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Failures != 1 {
		t.Fatalf("touch must reset the failure count, got %d", snap.Failures)
	}
}

func TestAgeStaleness(t *testing.T) {
	s := newTestStore(Options{StaleAfter: map[nem.ProductKind]time.Duration{
		nem.ProductRealtime: time.Nanosecond,
	}})
	now := time.Now()

	s.Update(nem.RegionVIC, nem.ProductRealtime, seriesOf(nem.RegionVIC, nem.ProductRealtime, point(now, 33)))
	time.Sleep(5 * time.Millisecond)

	snap, err := s.Snapshot(nem.RegionVIC, nem.ProductRealtime)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !snap.Stale {
		t.Fatal("an update older than the freshness window must read as stale")
	}

	cur, err := s.Current(nem.RegionVIC)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if !cur.Stale {
		t.Fatal("current price must carry the staleness flag")
	}
}

func TestSpikeHistoryWindow(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	for i := 0; i < 14; i++ {
		s.Update(nem.RegionSA, nem.ProductRealtime, seriesOf(nem.RegionSA, nem.ProductRealtime,
			point(now.Add(time.Duration(i)*5*time.Minute), 10),
		))
	}
	s.Update(nem.RegionSA, nem.ProductRealtime, seriesOf(nem.RegionSA, nem.ProductRealtime,
		point(now.Add(75*time.Minute), 400),
	))

	info := s.Spike(nem.RegionSA)
	if info.Samples != 12 {
		t.Fatalf("history must be capped at 12 samples, got %d", info.Samples)
	}
	if !info.IsSpike {
		t.Fatal("a 40x jump over a flat baseline is a spike")
	}
	if !info.Price.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected current price %s", info.Price)
	}
}

func TestSpikeWithoutHistory(t *testing.T) {
	s := newTestStore(Options{})
	info := s.Spike(nem.RegionTAS)
	if info.IsSpike || info.Samples != 0 {
		t.Fatalf("empty history must not spike, got %+v", info)
	}
}

func TestRemoveDropsRegion(t *testing.T) {
	s := newTestStore(Options{})
	now := time.Now()

	s.Update(nem.RegionNSW, nem.ProductRealtime, seriesOf(nem.RegionNSW, nem.ProductRealtime, point(now, 85)))
	s.Remove(nem.RegionNSW)

	if _, err := s.Snapshot(nem.RegionNSW, nem.ProductRealtime); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData after removal, got %v", err)
	}
	if info := s.Spike(nem.RegionNSW); info.Samples != 0 {
		t.Fatal("removal must clear the spot history")
	}
}

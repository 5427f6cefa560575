package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/nemweb"
)

// Cycle outcomes recorded on the poll counter.
const (
	resultUpdated     = "updated"
	resultNotModified = "not_modified"
	resultNoReport    = "no_report"
	resultEmpty       = "empty"
	resultFetchError  = "fetch_error"
	resultParseError  = "parse_error"
)

// streamLoop polls one region/product feed. lastSeen advances only after the
// store accepted the decoded series (or the report held no rows for the
// region), so a failed cycle retries the same report.
type streamLoop struct {
	engine   *Engine
	region   nem.Region
	kind     nem.ProductKind
	logger   zerolog.Logger
	lastSeen string
}

func (s *streamLoop) tick(ctx context.Context, _ time.Time) error {
	started := time.Now()

	bundle, err := s.engine.source.Latest(ctx, s.kind, s.lastSeen)
	// A cycle cancelled mid-flight must not touch the store, not even to
	// record the failure: the pipeline may already have been removed along
	// with its store state.
	if ctx.Err() != nil {
		return nil
	}
	switch {
	case errors.Is(err, nemweb.ErrNotModified):
		s.touch()
		s.observe(resultNotModified, started)
		return nil
	case errors.Is(err, nemweb.ErrNoReport):
		s.touch()
		s.observe(resultNoReport, started)
		s.logger.Debug().Msg("no report listed")
		return nil
	case err != nil:
		s.recordFailure()
		s.observe(resultFetchError, started)
		return fmt.Errorf("fetch %s %s: %w", s.region, s.kind, err)
	}

	series, err := s.engine.decoder.Decode(bundle, s.region, s.kind)
	// The decode can outlive a removal as well.
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		s.recordFailure()
		s.observe(resultParseError, started)
		return fmt.Errorf("decode %s %s: %w", s.region, s.kind, err)
	}

	if series.Empty() {
		s.lastSeen = bundle.Name
		s.touch()
		s.observe(resultEmpty, started)
		s.logger.Warn().Str("file", bundle.Name).Msg("report decoded to an empty series")
		return nil
	}

	snap := s.engine.store.Update(s.region, s.kind, series)
	s.lastSeen = bundle.Name

	region, product := string(s.region), string(s.kind)
	s.engine.metrics.FeedFailures.WithLabelValues(region, product).Set(0)
	s.engine.metrics.LastUpdate.WithLabelValues(region, product).Set(float64(snap.LastUpdated.Unix()))
	s.observe(resultUpdated, started)

	s.engine.publish(Update{
		Region: s.region,
		Kind:   s.kind,
		Points: snap.Series.Points,
		At:     snap.LastUpdated,
	})

	s.logger.Info().
		Str("file", bundle.Name).
		Int("points", len(snap.Series.Points)).
		Time("published", bundle.PublishedAt).
		Msg("series updated")
	return nil
}

func (s *streamLoop) recordFailure() {
	failures := s.engine.store.MarkFailure(s.region, s.kind)
	s.engine.metrics.FeedFailures.
		WithLabelValues(string(s.region), string(s.kind)).
		Set(float64(failures))
}

// touch records a successful check that carried no new rows, keeping the
// failure gauge in step with the store's cleared counter.
func (s *streamLoop) touch() {
	s.engine.store.Touch(s.region, s.kind)
	s.engine.metrics.FeedFailures.
		WithLabelValues(string(s.region), string(s.kind)).
		Set(0)
}

func (s *streamLoop) observe(result string, started time.Time) {
	region, product := string(s.region), string(s.kind)
	m := s.engine.metrics
	m.CyclesTotal.WithLabelValues(region, product, result).Inc()
	m.CycleDuration.WithLabelValues(product).Observe(time.Since(started).Seconds())

	stale := 0.0
	if snap, err := s.engine.store.Snapshot(s.region, s.kind); err == nil && snap.Stale {
		stale = 1
	}
	m.FeedStale.WithLabelValues(region, product).Set(stale)
}

package nem

import (
	"sort"
	"time"
)

// ForecastSeries is an ordered run of price points for one region and
// product, stamped with the report it was decoded from.
type ForecastSeries struct {
	Region      Region
	Kind        ProductKind
	Points      []PricePoint
	GeneratedAt time.Time
	SourceFile  string
}

// Normalize sorts points ascending and collapses duplicate timestamps,
// keeping the later occurrence.
func (s *ForecastSeries) Normalize() {
	if len(s.Points) < 2 {
		return
	}
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Time.Before(s.Points[j].Time)
	})
	out := s.Points[:1]
	for _, pt := range s.Points[1:] {
		if pt.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = pt
			continue
		}
		out = append(out, pt)
	}
	s.Points = out
}

// Empty reports whether the series carries no points.
func (s ForecastSeries) Empty() bool { return len(s.Points) == 0 }

// First returns the earliest point.
func (s ForecastSeries) First() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[0], true
}

// Last returns the latest point.
func (s ForecastSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// After returns the points strictly after t. The returned slice aliases the
// series; callers that retain it must Clone first.
func (s ForecastSeries) After(t time.Time) []PricePoint {
	idx := sort.Search(len(s.Points), func(i int) bool {
		return s.Points[i].Time.After(t)
	})
	return s.Points[idx:]
}

// Clone returns a deep copy safe to hand across goroutines.
func (s ForecastSeries) Clone() ForecastSeries {
	out := s
	out.Points = append([]PricePoint(nil), s.Points...)
	return out
}

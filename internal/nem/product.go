package nem

import (
	"fmt"
	"strings"
	"time"
)

// ProductKind distinguishes the NEMWEB report streams the engine tracks.
type ProductKind string

const (
	// ProductRealtime is the dispatch spot price stream (DISPATCHIS reports).
	ProductRealtime ProductKind = "realtime"
	// ProductFiveMinute is the rolling one-hour P5MIN forecast stream.
	ProductFiveMinute ProductKind = "five_minute"
	// ProductPredispatch is the 30-minute resolution predispatch stream.
	ProductPredispatch ProductKind = "predispatch"

	// ProductMerged labels the stitched five-minute plus predispatch curve.
	// It is a derived view, never polled.
	ProductMerged ProductKind = "merged"
)

// Products lists every polled product kind.
func Products() []ProductKind {
	return []ProductKind{ProductRealtime, ProductFiveMinute, ProductPredispatch}
}

// ParseProduct validates a polled product kind string.
func ParseProduct(value string) (ProductKind, error) {
	kind := ProductKind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case ProductRealtime, ProductFiveMinute, ProductPredispatch:
		return kind, nil
	}
	return "", fmt.Errorf("unknown product kind: %q", value)
}

// DefaultInterval returns the polling cadence of the stream.
func (p ProductKind) DefaultInterval() time.Duration {
	switch p {
	case ProductRealtime:
		return 5 * time.Second
	case ProductFiveMinute:
		return 30 * time.Second
	case ProductPredispatch:
		return 5 * time.Minute
	}
	return time.Minute
}

// DefaultStaleAfter returns the freshness window of the stream. NEMWEB
// publishes dispatch about every five minutes, P5MIN every five minutes and
// predispatch every half hour; the windows leave room for a couple of
// missed publications.
func (p ProductKind) DefaultStaleAfter() time.Duration {
	switch p {
	case ProductRealtime:
		return 15 * time.Minute
	case ProductFiveMinute:
		return 20 * time.Minute
	case ProductPredispatch:
		return 2 * time.Hour
	}
	return 20 * time.Minute
}

package store

import (
	"time"

	"aemo-price-feed/internal/nem"
)

// Snapshot represents the latest decoded state of one region/product feed.
type Snapshot struct {
	Region      nem.Region
	Kind        nem.ProductKind
	Series      nem.ForecastSeries
	LastUpdated time.Time
	LastChecked time.Time
	Failures    int
	Stale       bool
}

// CurrentPrice is the most recent spot observation for a region, falling
// back to the head of the five-minute forecast when dispatch data is absent.
type CurrentPrice struct {
	Region nem.Region
	Point  nem.PricePoint
	Source nem.ProductKind
	Stale  bool
}

// PeakPrice is the highest forecast price still ahead of now.
type PeakPrice struct {
	Region nem.Region
	Kind   nem.ProductKind
	Point  nem.PricePoint
}

package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/store"
)

// Forecast is the read-side view of a stored series with prices converted to
// the three common units. Prices is $/kWh, the unit most consumers bill in.
type Forecast struct {
	Region      nem.Region
	Kind        nem.ProductKind
	Times       []time.Time
	PricesMWh   []decimal.Decimal
	PricesCents []decimal.Decimal
	Prices      []decimal.Decimal
	Table       map[string]decimal.Decimal
	Length      int
	GeneratedAt time.Time
	SourceFile  string
	LastUpdated time.Time
	Stale       bool
}

// PriceFeed is the query surface exposed to commands and embedding code.
type PriceFeed interface {
	Current(region nem.Region) (store.CurrentPrice, error)
	Forecast(region nem.Region, kind nem.ProductKind) (Forecast, error)
	Merged(region nem.Region) (Forecast, error)
	Peak(region nem.Region, kind nem.ProductKind) (store.PeakPrice, error)
	Spike(region nem.Region) nem.SpikeInfo
	Subscribe(region nem.Region) (*Subscription, error)
}

var _ PriceFeed = (*Engine)(nil)

// Current resolves the spot price for a region.
func (e *Engine) Current(region nem.Region) (store.CurrentPrice, error) {
	return e.store.Current(region)
}

// Forecast returns the stored series for a product. Asking for the merged
// kind is equivalent to calling Merged.
func (e *Engine) Forecast(region nem.Region, kind nem.ProductKind) (Forecast, error) {
	if kind == nem.ProductMerged {
		return e.Merged(region)
	}
	snap, err := e.store.Snapshot(region, kind)
	if err != nil {
		return Forecast{}, err
	}
	return buildForecast(snap.Series, snap.LastUpdated, snap.Stale), nil
}

// Merged returns the five-minute forecast extended with the predispatch tail.
// The view is stale when either contributing feed is stale.
func (e *Engine) Merged(region nem.Region) (Forecast, error) {
	series, err := e.store.Merged(region)
	if err != nil {
		return Forecast{}, err
	}

	var lastUpdated time.Time
	var stale bool
	for _, kind := range []nem.ProductKind{nem.ProductFiveMinute, nem.ProductPredispatch} {
		snap, err := e.store.Snapshot(region, kind)
		if err != nil {
			continue
		}
		if snap.LastUpdated.After(lastUpdated) {
			lastUpdated = snap.LastUpdated
		}
		if snap.Stale {
			stale = true
		}
	}
	return buildForecast(series, lastUpdated, stale), nil
}

// Peak returns the highest upcoming forecast price for a region.
func (e *Engine) Peak(region nem.Region, kind nem.ProductKind) (store.PeakPrice, error) {
	return e.store.Peak(region, kind)
}

// Spike assesses the newest spot price against the region's recent history.
func (e *Engine) Spike(region nem.Region) nem.SpikeInfo {
	return e.store.Spike(region)
}

func buildForecast(series nem.ForecastSeries, lastUpdated time.Time, stale bool) Forecast {
	f := Forecast{
		Region:      series.Region,
		Kind:        series.Kind,
		Length:      len(series.Points),
		GeneratedAt: series.GeneratedAt,
		SourceFile:  series.SourceFile,
		LastUpdated: lastUpdated,
		Stale:       stale,
		Times:       make([]time.Time, 0, len(series.Points)),
		PricesMWh:   make([]decimal.Decimal, 0, len(series.Points)),
		PricesCents: make([]decimal.Decimal, 0, len(series.Points)),
		Prices:      make([]decimal.Decimal, 0, len(series.Points)),
		Table:       make(map[string]decimal.Decimal, len(series.Points)),
	}
	for _, point := range series.Points {
		f.Times = append(f.Times, point.Time)
		f.PricesMWh = append(f.PricesMWh, point.Price)
		f.PricesCents = append(f.PricesCents, point.CentsPerKWh())
		f.Prices = append(f.Prices, point.PerKWh())
		f.Table[point.Time.Format(time.RFC3339)] = point.PerKWh()
	}
	return f
}

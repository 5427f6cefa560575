package nem

import (
	"time"

	"github.com/shopspring/decimal"
)

// NEM market price limits in $/MWh. Upstream prices stay inside this band;
// the engine passes values through untouched and only flags excursions.
var (
	MarketPriceFloor = decimal.NewFromInt(-1000)
	MarketPriceCap   = decimal.NewFromInt(16600)
)

var (
	dec10   = decimal.NewFromInt(10)
	dec1000 = decimal.NewFromInt(1000)
)

// PricePoint is one observed or forecast regional reference price.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal // $/MWh
}

// PerKWh converts the point price to dollars per kWh.
func (p PricePoint) PerKWh() decimal.Decimal { return p.Price.Div(dec1000) }

// CentsPerKWh converts the point price to cents per kWh.
func (p PricePoint) CentsPerKWh() decimal.Decimal { return p.Price.Div(dec10) }

// OutsideMarketBand reports whether the price escapes the floor/cap band.
func (p PricePoint) OutsideMarketBand() bool {
	return p.Price.LessThan(MarketPriceFloor) || p.Price.GreaterThan(MarketPriceCap)
}

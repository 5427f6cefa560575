package nem

import "github.com/shopspring/decimal"

// Spike thresholds for the realtime stream. A spike needs both the ratio and
// the absolute magnitude so that noise on a near-zero base does not trigger.
var (
	spikeRatioThreshold     = decimal.NewFromFloat(2.0)
	spikeMagnitudeThreshold = decimal.NewFromInt(20) // $/MWh
)

const spikeMinSamples = 3

// SpikeInfo summarises the latest realtime price against its recent history.
type SpikeInfo struct {
	Region     Region
	Price      decimal.Decimal
	Average    decimal.Decimal
	Ratio      decimal.Decimal
	Magnitude  decimal.Decimal
	Samples    int
	IsSpike    bool
	IsNegative bool
}

// AssessSpike evaluates the newest history entry against the rolling window.
// history is ordered oldest first and already includes the current price;
// the average excludes the current price.
func AssessSpike(region Region, history []decimal.Decimal) SpikeInfo {
	info := SpikeInfo{Region: region, Samples: len(history)}
	if len(history) == 0 {
		return info
	}

	current := history[len(history)-1]
	info.Price = current
	info.IsNegative = current.IsNegative()
	info.Average = current
	info.Ratio = decimal.NewFromInt(1)

	if len(history) < spikeMinSamples {
		return info
	}

	prior := history[:len(history)-1]
	sum := decimal.Zero
	for _, price := range prior {
		sum = sum.Add(price)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(prior))))

	info.Average = avg
	info.Magnitude = current.Sub(avg)
	if !avg.IsZero() {
		info.Ratio = current.Div(avg)
	}
	info.IsSpike = info.Ratio.GreaterThan(spikeRatioThreshold) &&
		info.Magnitude.GreaterThan(spikeMagnitudeThreshold)
	return info
}

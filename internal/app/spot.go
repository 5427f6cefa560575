package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/report"
)

// Spot fetches the latest dispatch report and prints the current spot price
// for the requested regions.
func (a *App) Spot(ctx context.Context, opts SpotOptions) error {
	regions, err := a.targetRegions(opts.Regions)
	if err != nil {
		return err
	}

	client, err := a.newClient()
	if err != nil {
		return err
	}

	bundle, err := client.Latest(ctx, nem.ProductRealtime, "")
	if err != nil {
		return fmt.Errorf("fetch dispatch report: %w", err)
	}

	decoder := report.NewDecoder(a.Logger)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Region\tTime (AEST)\t$/MWh\tc/kWh\t$/kWh")

	for _, region := range regions {
		series, decodeErr := decoder.Decode(bundle, region, nem.ProductRealtime)
		if decodeErr != nil {
			return fmt.Errorf("decode dispatch report for %s: %w", region, decodeErr)
		}
		point, ok := series.Last()
		if !ok {
			fmt.Fprintf(writer, "%s\t-\t-\t-\t-\n", region)
			continue
		}
		if point.OutsideMarketBand() {
			a.Logger.Warn().
				Str("region", string(region)).
				Str("price", point.Price.String()).
				Msg("price outside market band")
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			region,
			point.Time.In(nem.AEST).Format("2006-01-02 15:04:05"),
			formatDecimal(point.Price, 2),
			formatDecimal(point.CentsPerKWh(), 3),
			formatDecimal(point.PerKWh(), 5),
		)
	}

	writer.Flush()
	fmt.Fprintf(os.Stdout, "source: %s\n", bundle.Name)
	return nil
}

func (a *App) targetRegions(codes []string) ([]nem.Region, error) {
	if len(codes) == 0 {
		return a.Config.ParsedRegions()
	}
	regions := make([]nem.Region, 0, len(codes))
	for _, code := range codes {
		region, err := nem.ParseRegion(code)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, nil
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/report"
	"aemo-price-feed/internal/store"
)

// Export fetches the latest forecast reports for one region and renders the
// series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	region, err := nem.ParseRegion(opts.Region)
	if err != nil {
		return err
	}
	kind, err := parseExportKind(opts.Product)
	if err != nil {
		return err
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	client, err := a.newClient()
	if err != nil {
		return err
	}
	decoder := report.NewDecoder(a.Logger)
	st := a.newStore()

	for _, source := range exportSources(kind) {
		bundle, fetchErr := client.Latest(ctx, source, "")
		if fetchErr != nil {
			return fmt.Errorf("fetch %s report: %w", source, fetchErr)
		}
		series, decodeErr := decoder.Decode(bundle, region, source)
		if decodeErr != nil {
			return fmt.Errorf("decode %s report: %w", source, decodeErr)
		}
		if series.Empty() {
			a.Logger.Warn().
				Str("region", string(region)).
				Str("product", string(source)).
				Str("report", bundle.Name).
				Msg("report carried no intervals for region")
			continue
		}
		st.Update(region, source, series)
	}

	series, err := exportSeries(st, region, kind)
	if err != nil {
		return err
	}
	if series.Empty() {
		a.Logger.Info().Msg("no forecast intervals found for export")
		return nil
	}

	points := downsamplePoints(series.Points, opts.MaxPoints)
	a.Logger.Info().
		Int("total", len(series.Points)).
		Int("exported", len(points)).
		Str("region", string(region)).
		Str("product", string(kind)).
		Msg("exporting forecast")

	if opts.CSVPath != "" {
		if err := writeForecastCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeForecastPNG(opts.PNGPath, region, kind, points); err != nil {
			return err
		}
	}

	return nil
}

// parseExportKind resolves the --product flag. Unlike the polled kinds, the
// merged view is exportable even though it is never fetched as such.
func parseExportKind(value string) (nem.ProductKind, error) {
	if strings.ToLower(strings.TrimSpace(value)) == string(nem.ProductMerged) {
		return nem.ProductMerged, nil
	}
	kind, err := nem.ParseProduct(value)
	if err != nil {
		return "", err
	}
	if kind == nem.ProductRealtime {
		return "", errors.New("export covers forecast products; use the spot command for dispatch prices")
	}
	return kind, nil
}

func exportSources(kind nem.ProductKind) []nem.ProductKind {
	if kind == nem.ProductMerged {
		return []nem.ProductKind{nem.ProductFiveMinute, nem.ProductPredispatch}
	}
	return []nem.ProductKind{kind}
}

func exportSeries(st *store.Store, region nem.Region, kind nem.ProductKind) (nem.ForecastSeries, error) {
	if kind == nem.ProductMerged {
		series, err := st.Merged(region)
		if err != nil && !errors.Is(err, store.ErrNoData) {
			return nem.ForecastSeries{}, err
		}
		return series, nil
	}
	snap, err := st.Snapshot(region, kind)
	if err != nil {
		if errors.Is(err, store.ErrNoData) {
			return nem.ForecastSeries{}, nil
		}
		return nem.ForecastSeries{}, err
	}
	return snap.Series, nil
}

func downsamplePoints(points []nem.PricePoint, max int) []nem.PricePoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]nem.PricePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeForecastCSV(path string, points []nem.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "price_mwh", "price_c_kwh", "price_kwh"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			point.Time.In(nem.AEST).Format(time.RFC3339),
			point.Price.String(),
			point.CentsPerKWh().String(),
			point.PerKWh().String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeForecastPNG(path string, region nem.Region, kind nem.ProductKind, points []nem.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	prices := make([]float64, len(points))
	for i, point := range points {
		x[i] = point.Time
		prices[i] = point.Price.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price ($/MWh)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    fmt.Sprintf("%s %s", region, kind),
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

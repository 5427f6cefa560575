package app

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/nemweb"
	"aemo-price-feed/internal/report"
)

// Inspect 解码本地保存的 NEMWEB 报告文件并打印其中的价格区间。
func (a *App) Inspect(opts InspectOptions) error {
	region, err := nem.ParseRegion(opts.Region)
	if err != nil {
		return err
	}
	kind, err := nem.ParseProduct(opts.Product)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("read report file: %w", err)
	}

	base := filepath.Base(opts.Path)
	publishedAt, ok := nemweb.PublishedTime(base)
	if !ok {
		publishedAt = time.Now()
	}

	bundle := nemweb.Bundle{Name: base, PublishedAt: publishedAt, Data: data}

	decoder := report.NewDecoder(a.Logger)
	series, err := decoder.Decode(bundle, region, kind)
	if err != nil {
		return fmt.Errorf("decode %s: %w", base, err)
	}
	if series.Empty() {
		fmt.Fprintf(os.Stdout, "no %s intervals for %s in %s\n", kind, region, base)
		return nil
	}

	points := series.Points
	shown := len(points)
	if opts.Limit > 0 && opts.Limit < shown {
		shown = opts.Limit
		points = points[:shown]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (AEST)\t$/MWh")
	for _, point := range points {
		fmt.Fprintf(
			writer,
			"%s\t%s\n",
			point.Time.In(nem.AEST).Format("2006-01-02 15:04:05"),
			formatDecimal(point.Price, 2),
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "%d of %d intervals shown\n", shown, len(series.Points))
	return nil
}

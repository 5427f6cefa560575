package report

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/nemweb"
)

// SchemaError indicates the expected report table was missing or its column
// layout changed. It is fatal for the cycle that hit it.
type SchemaError struct {
	Table  string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report schema mismatch for %s: %s", e.Table, e.Detail)
}

// tableLayout pins the column positions of one AEMO C/I/D report table.
type tableLayout struct {
	name      string
	minFields int
	timeCol   int
	regionCol int
	priceCol  int
	// interCol is the intervention flag column, -1 when the table has none.
	// Only intervention 0 rows carry normal market prices.
	interCol int
	// headerCols spot-checks the I row; nil skips validation for tables
	// whose header naming varies across NEMWEB generations.
	headerCols map[int]string
	match      func(row []string) bool
}

var (
	dispatchLayout = tableLayout{
		name:      "DISPATCH.PRICE",
		minFields: 10,
		timeCol:   4,
		regionCol: 6,
		interCol:  8,
		priceCol:  9,
		headerCols: map[int]string{
			4: "SETTLEMENTDATE",
			6: "REGIONID",
			8: "INTERVENTION",
			9: "RRP",
		},
		match: func(row []string) bool {
			return len(row) > 2 && row[1] == "DISPATCH" && row[2] == "PRICE"
		},
	}

	p5minLayout = tableLayout{
		name:      "P5MIN.REGIONSOLUTION",
		minFields: 9,
		timeCol:   6,
		regionCol: 7,
		interCol:  5,
		priceCol:  8,
		headerCols: map[int]string{
			5: "INTERVENTION",
			6: "INTERVAL_DATETIME",
			7: "REGIONID",
			8: "RRP",
		},
		match: func(row []string) bool {
			return len(row) > 2 && row[1] == "P5MIN" && row[2] == "REGIONSOLUTION"
		},
	}

	predispatchLayout = tableLayout{
		name:      "PDREGION",
		minFields: 9,
		timeCol:   7,
		regionCol: 6,
		interCol:  -1,
		priceCol:  8,
		match: func(row []string) bool {
			return len(row) > 1 && row[1] == "PDREGION"
		},
	}
)

func layoutFor(kind nem.ProductKind) (tableLayout, error) {
	switch kind {
	case nem.ProductRealtime:
		return dispatchLayout, nil
	case nem.ProductFiveMinute:
		return p5minLayout, nil
	case nem.ProductPredispatch:
		return predispatchLayout, nil
	}
	return tableLayout{}, fmt.Errorf("no report table for product %q", kind)
}

// Decoder turns NEMWEB report bundles into price series.
type Decoder struct {
	logger zerolog.Logger
}

// NewDecoder constructs a Decoder.
func NewDecoder(logger zerolog.Logger) *Decoder {
	return &Decoder{logger: logger.With().Str("component", "report_decoder").Logger()}
}

// Decode extracts the region's price series for the product from a bundle.
// Malformed data rows are skipped and counted; a missing table or a changed
// header layout aborts with a SchemaError.
func (d *Decoder) Decode(bundle nemweb.Bundle, region nem.Region, kind nem.ProductKind) (nem.ForecastSeries, error) {
	layout, err := layoutFor(kind)
	if err != nil {
		return nem.ForecastSeries{}, err
	}

	archive, err := zip.NewReader(bytes.NewReader(bundle.Data), int64(len(bundle.Data)))
	if err != nil {
		return nem.ForecastSeries{}, fmt.Errorf("open report archive %s: %w", bundle.Name, err)
	}

	series := nem.ForecastSeries{
		Region:      region,
		Kind:        kind,
		GeneratedAt: bundle.PublishedAt,
		SourceFile:  bundle.Name,
	}

	tableSeen := false
	skipped := 0

	for _, entry := range archive.File {
		if !strings.HasSuffix(strings.ToUpper(entry.Name), ".CSV") {
			continue
		}
		if err := d.decodeEntry(entry, layout, region, &series, &tableSeen, &skipped); err != nil {
			return nem.ForecastSeries{}, err
		}
	}

	if !tableSeen {
		return nem.ForecastSeries{}, &SchemaError{Table: layout.name, Detail: "table not present in bundle"}
	}

	if skipped > 0 {
		d.logger.Warn().
			Int("rows", skipped).
			Str("report", bundle.Name).
			Str("table", layout.name).
			Msg("skipped malformed rows")
	}

	series.Normalize()
	return series, nil
}

func (d *Decoder) decodeEntry(entry *zip.File, layout tableLayout, region nem.Region, series *nem.ForecastSeries, tableSeen *bool, skipped *int) error {
	file, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &SchemaError{Table: layout.name, Detail: fmt.Sprintf("csv read in %s: %v", entry.Name, err)}
		}
		if len(row) == 0 {
			continue
		}

		switch row[0] {
		case "I":
			if !layout.match(row) {
				continue
			}
			*tableSeen = true
			if err := layout.checkHeader(row); err != nil {
				return err
			}
		case "D":
			if !layout.match(row) {
				continue
			}
			*tableSeen = true
			d.decodeRow(layout, row, region, series, skipped)
		}
	}
	return nil
}

func (d *Decoder) decodeRow(layout tableLayout, row []string, region nem.Region, series *nem.ForecastSeries, skipped *int) {
	if len(row) < layout.minFields {
		*skipped++
		return
	}

	if cleanField(row[layout.regionCol]) != string(region) {
		return
	}
	if layout.interCol >= 0 && cleanField(row[layout.interCol]) != "0" {
		return
	}

	ts, err := nem.ParseTimestamp(cleanField(row[layout.timeCol]))
	if err != nil {
		*skipped++
		d.logger.Debug().Err(err).Str("table", layout.name).Msg("bad timestamp in data row")
		return
	}

	price, err := decimal.NewFromString(cleanField(row[layout.priceCol]))
	if err != nil {
		*skipped++
		d.logger.Debug().Err(err).Str("table", layout.name).Msg("bad price in data row")
		return
	}

	series.Points = append(series.Points, nem.PricePoint{Time: ts, Price: price})
}

func (l tableLayout) checkHeader(row []string) error {
	for idx, want := range l.headerCols {
		if idx >= len(row) {
			return &SchemaError{Table: l.name, Detail: fmt.Sprintf("header too short, column %d (%s) missing", idx, want)}
		}
		if got := cleanField(row[idx]); !strings.EqualFold(got, want) {
			return &SchemaError{Table: l.name, Detail: fmt.Sprintf("header column %d is %q, want %q", idx, got, want)}
		}
	}
	return nil
}

func cleanField(value string) string {
	return strings.Trim(strings.TrimSpace(value), `"`)
}

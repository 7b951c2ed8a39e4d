package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"dynamic-pricing/internal/storage"
)

// Export renders multiplier history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListAdjustmentsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no adjustments found for export window")
		return nil
	}

	downsampled := downsampleAdjustments(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting adjustments")

	if opts.CSVPath != "" {
		if err := writeAdjustmentsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAdjustmentsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAdjustments(records []storage.PriceAdjustmentRecord, max int) []storage.PriceAdjustmentRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]storage.PriceAdjustmentRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeAdjustmentsCSV(path string, records []storage.PriceAdjustmentRecord) error {
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

	header := []string{"created_at", "window_start", "weighted_spend", "revenue", "roi", "raw_multiplier", "prev_multiplier", "multiplier", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.CreatedAt.Format(time.RFC3339),
			rec.WindowStart.Format(time.RFC3339),
			rec.WeightedSpend.String(),
			rec.Revenue.String(),
			rec.ROI.String(),
			rec.RawMultiplier.String(),
			rec.PrevMultiplier.String(),
			rec.Multiplier.String(),
			rec.Reason,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAdjustmentsPNG(path string, records []storage.PriceAdjustmentRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	multiplier := make([]float64, len(records))
	raw := make([]float64, len(records))
	roi := make([]float64, len(records))

	for i, rec := range records {
		x[i] = rec.CreatedAt
		multiplier[i] = rec.Multiplier.InexactFloat64()
		raw[i] = rec.RawMultiplier.InexactFloat64()
		roi[i] = rec.ROI.InexactFloat64()
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Multiplier",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "ROI",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Multiplier",
				XValues: x,
				YValues: multiplier,
			},
			chart.TimeSeries{
				Name:    "Raw",
				XValues: x,
				YValues: raw,
			},
			chart.TimeSeries{
				Name:    "ROI",
				XValues: x,
				YValues: roi,
				YAxis:   chart.YAxisSecondary,
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

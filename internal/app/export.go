package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"stocks-watcher/internal/proximity"
)

// Export renders the current status table as CSV and/or a PNG bar chart of distance to level.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	maxRows := a.Config.ResolveMaxRows(opts.MaxRows)

	views, err := a.statuses(ctx, opts.Refresh)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		a.Logger.Info().Msg("no statuses to export")
		return nil
	}
	if len(views) > maxRows {
		views = views[:maxRows]
	}
	a.Logger.Info().Int("exported", len(views)).Msg("exporting statuses")

	if opts.CSVPath != "" {
		if err := writeStatusCSV(opts.CSVPath, views); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeDistancePNG(opts.PNGPath, views); err != nil {
			return err
		}
	}

	return nil
}

func writeStatusCSV(path string, views []proximity.View) error {
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

	header := []string{"ticker", "price", "currency", "nearest_level", "distance_pct", "near", "open_price", "price_change_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, v := range views {
		record := []string{
			v.Ticker,
			formatFloat(v.Price, 4),
			v.Currency,
			csvOptional(v.NearestLevel, 4),
			formatFloat(v.DistancePct*100, 4),
			strconv.FormatBool(v.Near),
			csvOptional(v.OpenPrice, 4),
			csvOptional(v.PriceChangePct, 4),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func csvOptional(v *float64, places int32) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, places)
}

func writeDistancePNG(path string, views []proximity.View) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(views))
	for _, v := range views {
		if v.NearestLevel == nil {
			continue
		}
		bars = append(bars, chart.Value{Label: v.Ticker, Value: v.DistancePct * 100})
	}
	if len(bars) == 0 {
		return errors.New("no watch has levels; nothing to chart")
	}
	// go-chart needs a non-degenerate range
	if len(bars) == 1 {
		bars = append(bars, chart.Value{Label: " ", Value: 0})
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f%%")
	}
	graph := chart.BarChart{
		Title:    "Distance to nearest level",
		Width:    1280,
		Height:   720,
		BarWidth: 60,
		YAxis: chart.YAxis{
			Name:           "Distance (%)",
			ValueFormatter: pctFormatter,
		},
		Bars: bars,
	}

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

package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// statsCacheKeyFormat is where each plot lands: stats/loans/{unit}/{frequency}
const statsCacheKeyFormat = "stats/loans/%s/%s"

// statsPlot is the JSON payload served from the stats cache.
type statsPlot struct {
	Title       string        `json:"title"`
	XAxis       string        `json:"x_axis"`
	YAxis       string        `json:"y_axis"`
	GeneratedAt float64       `json:"generated_at"`
	Data        statsPlotData `json:"data"`
}

type statsPlotData struct {
	Categories []string      `json:"categories"`
	Series     []statsSeries `json:"series"`
}

type statsSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

type yearMonth struct {
	Year  int
	Month int
}

func (ym yearMonth) String() string {
	return fmt.Sprintf("%d-%d", ym.Year, ym.Month)
}

func (ym yearMonth) quarter() string {
	return fmt.Sprintf("%dQ%d", ym.Year, (ym.Month-1)/3+1)
}

// LoansStatsWorker recomputes the monthly and quarterly aggregate series
// {lent, repaid, unpaid} x {count, usd} and writes each plot JSON to its
// well-known cache key. 8AM UTC is presumably off-peak hours.
type LoansStatsWorker struct{}

// Name implements Worker
func (w *LoansStatsWorker) Name() string {
	return "loans_stats"
}

// Run implements Worker
func (w *LoansStatsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	return RunDailyAt(ctx, 8, 0, func(ctx context.Context) error {
		return w.updateStats(ctx, deps)
	})
}

// seriesStyles maps each series to the timestamp column that buckets it.
var seriesStyles = []struct {
	name   string
	column string
}{
	{"lent", "created_at"},
	{"repaid", "repaid_at"},
	{"unpaid", "unpaid_at"},
}

func (w *LoansStatsWorker) updateStats(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	generatedAt := float64(time.Now().Unix())

	counts := map[string]map[yearMonth]float64{}
	usds := map[string]map[yearMonth]float64{}
	allKeys := map[yearMonth]bool{}

	for _, style := range seriesStyles {
		var rows []struct {
			Year     int   `db:"year"`
			Month    int   `db:"month"`
			Count    int64 `db:"count"`
			USDCents int64 `db:"usd_cents"`
		}
		query := fmt.Sprintf(`
			SELECT DATE_PART('year', loans.%s)::int AS year,
			       DATE_PART('month', loans.%s)::int AS month,
			       COUNT(*) AS count,
			       COALESCE(SUM(principals.amount_usd_cents), 0) AS usd_cents
			FROM loans
			JOIN moneys principals ON principals.id = loans.principal_id
			WHERE loans.deleted_at IS NULL
			  AND loans.%s IS NOT NULL
			GROUP BY 1, 2`,
			style.column, style.column, style.column)
		if err := deps.DB.SelectContext(ctx, &rows, query); err != nil {
			return fmt.Errorf("stats query for %s: %w", style.name, err)
		}

		counts[style.name] = map[yearMonth]float64{}
		usds[style.name] = map[yearMonth]float64{}
		for _, row := range rows {
			key := yearMonth{Year: row.Year, Month: row.Month}
			counts[style.name][key] = float64(row.Count)
			usds[style.name][key] = float64(row.USDCents) / 100
			allKeys[key] = true
		}
	}

	categories := make([]yearMonth, 0, len(allKeys))
	for key := range allKeys {
		categories = append(categories, key)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Year != categories[j].Year {
			return categories[i].Year < categories[j].Year
		}
		return categories[i].Month < categories[j].Month
	})

	byUnit := map[string]map[string]map[yearMonth]float64{
		"count": counts,
		"usd":   usds,
	}

	for unit, series := range byUnit {
		monthly := w.buildMonthlyPlot(unit, series, categories, generatedAt)
		quarterly := w.buildQuarterlyPlot(unit, monthly, categories, generatedAt)

		for frequency, plot := range map[string]*statsPlot{"monthly": monthly, "quarterly": quarterly} {
			encoded, err := json.Marshal(plot)
			if err != nil {
				return err
			}
			key := fmt.Sprintf(statsCacheKeyFormat, unit, frequency)
			if err := deps.Cache.Set(ctx, key, encoded, 0); err != nil {
				return err
			}
			log.Debug("wrote stats plot", zap.String("key", key))
		}
	}

	log.Info("updated loan stats", zap.Int("months", len(categories)))
	return nil
}

func (w *LoansStatsWorker) buildMonthlyPlot(unit string, series map[string]map[yearMonth]float64, categories []yearMonth, generatedAt float64) *statsPlot {
	plot := &statsPlot{
		Title:       fmt.Sprintf("Monthly %s", unit),
		XAxis:       "Month",
		YAxis:       unit,
		GeneratedAt: generatedAt,
	}
	for _, key := range categories {
		plot.Data.Categories = append(plot.Data.Categories, key.String())
	}
	for _, style := range seriesStyles {
		data := make([]float64, len(categories))
		for i, key := range categories {
			data[i] = series[style.name][key]
		}
		plot.Data.Series = append(plot.Data.Series, statsSeries{Name: style.name, Data: data})
	}
	return plot
}

// buildQuarterlyPlot folds the monthly series into quarters: months 1-3
// are Q1, 4-6 are Q2, and so on.
func (w *LoansStatsWorker) buildQuarterlyPlot(unit string, monthly *statsPlot, categories []yearMonth, generatedAt float64) *statsPlot {
	plot := &statsPlot{
		Title:       fmt.Sprintf("Quarterly %s", unit),
		XAxis:       "Quarter",
		YAxis:       unit,
		GeneratedAt: generatedAt,
	}

	for _, key := range categories {
		quarter := key.quarter()
		if n := len(plot.Data.Categories); n == 0 || plot.Data.Categories[n-1] != quarter {
			plot.Data.Categories = append(plot.Data.Categories, quarter)
		}
	}

	for _, monthlySeries := range monthly.Data.Series {
		var data []float64
		lastQuarter := ""
		for i, key := range categories {
			quarter := key.quarter()
			if quarter == lastQuarter {
				data[len(data)-1] += monthlySeries.Data[i]
			} else {
				lastQuarter = quarter
				data = append(data, monthlySeries.Data[i])
			}
		}
		plot.Data.Series = append(plot.Data.Series, statsSeries{Name: monthlySeries.Name, Data: data})
	}

	return plot
}

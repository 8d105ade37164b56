package field

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteReport renders an HTML run report: the coverage scores, the drop
// funnel from the run summary and the NDVI mean distribution across the
// surviving fields. The report is self-contained and opens in a browser
// without a server. metrics may be nil when the evaluation stage did not
// run.
func WriteReport(path string, cat *Catalog, metrics *Metrics, sum *RunSummary) error {
	page := components.NewPage()
	if metrics != nil {
		page.AddCharts(coverageChart(metrics))
	}
	page.AddCharts(funnelChart(sum), ndviHistogram(cat))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func coverageChart(m *Metrics) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "coverage",
			Subtitle: fmt.Sprintf("reference %.1f ha, segmented %.1f ha, intersection %.1f ha", m.ReferenceAreaHa, m.SegmentedAreaHa, m.IntersectionAreaHa),
		}),
		charts.WithYAxisOpts(opts.YAxis{Max: 100}),
	)
	bar.SetXAxis([]string{"recall", "precision"}).
		AddSeries("percent", []opts.BarData{
			{Value: m.Recall},
			{Value: m.Precision},
		})
	return bar
}

func funnelChart(sum *RunSummary) *charts.Bar {
	counts := sum.Counts()
	keys := []string{"extracted", "repaired", "dropped_repair", "dropped_size",
		"dropped_overlap", "dropped_nostats", "final"}

	data := make([]opts.BarData, len(keys))
	for i, k := range keys {
		data[i] = opts.BarData{Value: counts[k]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "pipeline funnel",
		Subtitle: "run " + sum.RunID,
	}))
	bar.SetXAxis(keys).AddSeries("features", data)
	return bar
}

// ndviHistogram bins the NDVI means of the catalog into 0.05-wide buckets
// over [-0.2, 1.0].
func ndviHistogram(cat *Catalog) *charts.Bar {
	const (
		lo    = -0.2
		hi    = 1.0
		width = 0.05
	)
	nBins := int((hi - lo) / width)
	bins := make([]int, nBins)
	for _, p := range cat.Polygons() {
		mean, ok := p.Metric(MetricNDVIMean)
		if !ok {
			continue
		}
		idx := int((mean - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= nBins {
			idx = nBins - 1
		}
		bins[idx]++
	}

	labels := make([]string, nBins)
	data := make([]opts.BarData, nBins)
	for i := 0; i < nBins; i++ {
		labels[i] = fmt.Sprintf("%.2f", lo+width*float64(i))
		data[i] = opts.BarData{Value: bins[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "NDVI mean distribution"}))
	bar.SetXAxis(labels).AddSeries("fields", data)
	return bar
}

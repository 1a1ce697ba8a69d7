// Package charts renders aggregate statistics as interactive HTML charts.
package charts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig controls the look of a rendered chart.
type ChartConfig struct {
	Title    string
	Subtitle string
	// YAxisLabel names the value axis.
	YAxisLabel string
	Width      string
	Height     string
	Theme      string
	ShowLegend bool
	Colors     []string
}

var palette = []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"}

// DefaultChartConfig returns a light themed config sized for a browser tab.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "600px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     palette,
	}
}

// DataPoint is one labelled bar.
type DataPoint struct {
	Label string
	Value float64
}

// SeriesData is a named set of bars.
type SeriesData struct {
	Name   string
	Points []DataPoint
}

// RenderBarChart writes a single series as a horizontal bar chart.
func RenderBarChart(w io.Writer, series string, data []DataPoint, config ChartConfig) error {
	if len(data) == 0 {
		return errors.New("no data points provided")
	}
	return render(w, []SeriesData{{Name: series, Points: data}}, config)
}

// RenderMultiBarChart writes several series as grouped horizontal bars. The
// categories are every label of every series in first-seen order; a series
// without a label plots zero for it.
func RenderMultiBarChart(w io.Writer, series []SeriesData, config ChartConfig) error {
	if len(series) == 0 {
		return errors.New("no data series provided")
	}
	return render(w, series, config)
}

func render(w io.Writer, series []SeriesData, config ChartConfig) error {
	colors := config.Colors
	if len(colors) == 0 {
		colors = palette
	}
	labels := categories(series)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{Title: config.Title, Subtitle: config.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(config.ShowLegend && len(series) > 1)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: config.YAxisLabel}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category"}),
	)
	bar.SetXAxis(labels)

	for i, s := range series {
		values := make(map[string]float64, len(s.Points))
		for _, p := range s.Points {
			values[p.Label] = p.Value
		}
		data := make([]opts.BarData, len(labels))
		for j, label := range labels {
			data[j] = opts.BarData{Name: label, Value: values[label]}
		}
		bar.AddSeries(s.Name, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[i%len(colors)]}),
		)
	}
	bar.XYReversal()

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func categories(series []SeriesData) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range series {
		for _, p := range s.Points {
			if !seen[p.Label] {
				seen[p.Label] = true
				labels = append(labels, p.Label)
			}
		}
	}
	return labels
}

// WriteFile renders a chart into the file at path.
func WriteFile(path string, fn func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return fn(f)
}

// OpenInBrowser opens a file with the platform's default handler.
func OpenInBrowser(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	var name string
	args := []string{abs}
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux", "freebsd", "openbsd":
		name = "xdg-open"
	case "windows":
		name, args = "cmd", []string{"/c", "start", "", abs}
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return exec.Command(name, args...).Start()
}

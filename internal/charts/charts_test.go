package charts

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBarChart(t *testing.T) {
	config := DefaultChartConfig()
	config.Title = "Control key cards"

	var buf bytes.Buffer
	err := RenderBarChart(&buf, "Playability", []DataPoint{
		{Label: "Counterspell", Value: 0.62},
		{Label: "Brainstorm", Value: 0.41},
	}, config)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Control key cards")
	assert.Contains(t, html, "Counterspell")
	assert.Contains(t, html, "Playability")
}

func TestRenderBarChart_NoData(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderBarChart(&buf, "Playability", nil, DefaultChartConfig()))
}

func TestRenderMultiBarChart(t *testing.T) {
	var buf bytes.Buffer
	err := RenderMultiBarChart(&buf, []SeriesData{
		{Name: "S1", Points: []DataPoint{{Label: "Control", Value: 4}, {Label: "Aggro", Value: 6}}},
		{Name: "S2", Points: []DataPoint{{Label: "Aggro", Value: 2}, {Label: "Tempo", Value: 1}}},
	}, DefaultChartConfig())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Aggro")
	assert.Contains(t, buf.String(), "Tempo", "labels only the second series has are plotted too")

	assert.Error(t, RenderMultiBarChart(&buf, nil, DefaultChartConfig()))
}

func TestCategories(t *testing.T) {
	labels := categories([]SeriesData{
		{Points: []DataPoint{{Label: "Island"}, {Label: "Negate"}}},
		{Points: []DataPoint{{Label: "Negate"}, {Label: "Brainstorm"}}},
	})
	assert.Equal(t, []string{"Island", "Negate", "Brainstorm"}, labels)
}

func TestRender_EmptyColorsFallsBack(t *testing.T) {
	config := DefaultChartConfig()
	config.Colors = nil

	var buf bytes.Buffer
	require.NoError(t, RenderBarChart(&buf, "Decks", []DataPoint{{Label: "Aggro", Value: 6}}, config))
	assert.Contains(t, buf.String(), palette[0])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.html")
	err := WriteFile(path, func(w io.Writer) error {
		return RenderBarChart(w, "Decks", []DataPoint{{Label: "Aggro", Value: 6}}, DefaultChartConfig())
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<html")
}

package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/kinest/internal/storage"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow,
	asciigraph.Cyan, asciigraph.Magenta,
}

const maxSeries = 6

// PlotCurve plots the MSE of each nested model against K.
func PlotCurve(curve []storage.CurvePoint, width, height int) (string, error) {
	if len(curve) == 0 {
		return "", fmt.Errorf("no selection curve to plot")
	}
	mse := make([]float64, len(curve))
	for i, pt := range curve {
		mse[i] = pt.MSE
	}
	return asciigraph.Plot(mse,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("mse vs K (1..%d)", len(curve))),
	), nil
}

// PlotProfiles overlays up to six concentration profiles. states is
// indexed by time then component.
func PlotProfiles(states [][]float64, times []float64, components []string, width, height int) (string, error) {
	if len(states) == 0 || len(components) == 0 {
		return "", fmt.Errorf("no profiles to plot")
	}
	n := min(len(components), maxSeries)
	series := make([][]float64, n)
	for j := range series {
		series[j] = make([]float64, len(states))
		for i, row := range states {
			if j < len(row) {
				series[j][i] = row[j]
			}
		}
	}
	caption := strings.Join(components[:n], " ")
	if len(times) > 0 {
		caption = fmt.Sprintf("%s  (t %.3g..%.3g)", caption, times[0], times[len(times)-1])
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(seriesColors[:n]...),
		asciigraph.Caption(caption),
	), nil
}

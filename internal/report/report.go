// Package report plots search progress.
package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ChizhovVadim/rnnsearch/internal/search"
)

// LossCurves writes one validation loss line per configuration. The image format follows
// the extension of path (png, svg, pdf). Non-finite losses are left out.
func LossCurves(path string, trials []search.Trial) error {
	p := plot.New()
	p.Title.Text = "Validation loss by configuration"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	for i, trial := range trials {
		var xys = lossPoints(trial)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%v", trial.Config), line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

func lossPoints(trial search.Trial) plotter.XYs {
	var xys = make(plotter.XYs, 0, len(trial.History))
	for epoch, loss := range trial.History {
		if math.IsNaN(loss.Validation) || math.IsInf(loss.Validation, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(epoch), Y: loss.Validation})
	}
	return xys
}

package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"evonet/internal/model"
)

// WriteFitnessPlot renders best score per generation, plus the mean score
// when diagnostics cover the same generations. The image format follows
// the path extension.
func WriteFitnessPlot(path, title string, diagnostics []model.GenerationDiagnostics, bestByGeneration []float64) error {
	if len(bestByGeneration) == 0 {
		return fmt.Errorf("fitness history is empty")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Score"

	bestPts := make(plotter.XYs, len(bestByGeneration))
	for i, best := range bestByGeneration {
		bestPts[i].X = float64(i)
		bestPts[i].Y = best
	}
	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return err
	}
	p.Add(bestLine)
	p.Legend.Add("best", bestLine)

	if len(diagnostics) == len(bestByGeneration) {
		meanPts := make(plotter.XYs, len(diagnostics))
		for i, d := range diagnostics {
			meanPts[i].X = float64(d.Generation)
			meanPts[i].Y = d.MeanScore
		}
		meanLine, err := plotter.NewLine(meanPts)
		if err != nil {
			return err
		}
		meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(meanLine)
		p.Legend.Add("mean", meanLine)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

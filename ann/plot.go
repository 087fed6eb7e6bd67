package ann

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotHistory saves a per-epoch training/validation curve as a PNG. val
// may be nil when no validation set was used.
func plotHistory(path, title, yLabel string, train, val []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel

	trainLine, err := plotter.NewLine(history(train))
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{B: 255, A: 255}
	p.Add(trainLine)
	p.Legend.Add("training", trainLine)

	if len(val) > 0 {
		valLine, err := plotter.NewLine(history(val))
		if err != nil {
			return err
		}
		valLine.Color = color.RGBA{R: 255, A: 255}
		valLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(valLine)
		p.Legend.Add("validation", valLine)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func history(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

package plot

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"zebrabmd/domain/bmd"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	observedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	curveColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	bmdColor      = color.RGBA{R: 80, G: 80, B: 80, A: 255}
)

// CurveRenderer draws observed fractions, Wilson bounds and the selected fit as PNG
type CurveRenderer struct {
	width  vg.Length
	height vg.Length
}

var _ ports.CurveRenderer = (*CurveRenderer)(nil)

// NewCurveRenderer creates a renderer for 8x5 inch images
func NewCurveRenderer() *CurveRenderer {
	return &CurveRenderer{width: 8 * vg.Inch, height: 5 * vg.Inch}
}

// RenderCurve implements ports.CurveRenderer
func (r *CurveRenderer) RenderCurve(result *bmd.UnitResult, w io.Writer) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s / %s", result.Key.ChemicalID, result.Key.Endpoint)
	if result.Selection.HasSelection() {
		p.Title.Text += " (" + result.Selection.SelectedModel + ")"
	}
	p.X.Label.Text = "Dose"
	p.Y.Label.Text = "Fraction affected"
	p.Y.Min, p.Y.Max = 0, 1

	observed := make(plotter.XYs, len(result.DoseResponse))
	for i, row := range result.DoseResponse {
		observed[i] = plotter.XY{X: row.Dose, Y: row.Response}
	}
	if len(observed) > 0 {
		scatter, err := plotter.NewScatter(observed)
		if err != nil {
			return errors.Wrap(err, "failed to build observed points")
		}
		scatter.Color = observedColor
		p.Add(scatter)
		p.Legend.Add("observed", scatter)

		for _, row := range result.DoseResponse {
			if math.IsNaN(row.CILower) || math.IsNaN(row.CIUpper) {
				continue
			}
			bar, err := plotter.NewLine(plotter.XYs{{X: row.Dose, Y: row.CILower}, {X: row.Dose, Y: row.CIUpper}})
			if err != nil {
				return errors.Wrap(err, "failed to build interval")
			}
			bar.Color = observedColor
			bar.Width = vg.Points(0.75)
			p.Add(bar)
		}
	}

	if len(result.Curve) > 1 {
		fitted := make(plotter.XYs, len(result.Curve))
		for i, c := range result.Curve {
			fitted[i] = plotter.XY{X: c.Dose, Y: c.Response}
		}
		line, err := plotter.NewLine(fitted)
		if err != nil {
			return errors.Wrap(err, "failed to build fitted curve")
		}
		line.Color = curveColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("fit", line)
	}

	if b := result.Summary.BMD10; !math.IsNaN(b) && !math.IsInf(b, 0) {
		marker, err := plotter.NewLine(plotter.XYs{{X: b, Y: 0}, {X: b, Y: 1}})
		if err != nil {
			return errors.Wrap(err, "failed to build BMD marker")
		}
		marker.Color = bmdColor
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("BMD10 = %.3g", b), marker)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	wt, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return errors.Wrap(err, "failed to render plot")
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveAll writes one PNG per unit with a selected model into dir and returns the paths
func (r *CurveRenderer) SaveAll(dir string, results []*bmd.UnitResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError(dir, err)
	}

	var paths []string
	for _, res := range results {
		if !res.Selection.HasSelection() {
			continue
		}
		path := filepath.Join(dir, FileName(res))
		if err := r.saveOne(path, res); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *CurveRenderer) saveOne(path string, res *bmd.UnitResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	defer f.Close()

	if err := r.RenderCurve(res, f); err != nil {
		return err
	}
	return f.Close()
}

// FileName is the PNG name of one unit, safe for any file system
func FileName(res *bmd.UnitResult) string {
	clean := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return clean.Replace(res.Key.ChemicalID) + "__" + clean.Replace(res.Key.Endpoint) + ".png"
}

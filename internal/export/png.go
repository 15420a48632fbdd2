package export

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/smpsim/internal/storage"
)

// Chart renders the named columns of a series on one time axis. With no
// names it plots Vout.
func Chart(s *storage.Series, names ...string) (*plot.Plot, error) {
	if len(names) == 0 {
		names = []string{"Vout"}
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "time [s]"
	p.Add(plotter.NewGrid())

	for i, name := range names {
		values, ok := s.Column(name)
		if !ok {
			return nil, errors.Errorf("export: no column %q in %q", name, s.Title)
		}
		pts := make(plotter.XYs, len(values))
		for j, v := range values {
			pts[j].X = s.Times[j]
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", name)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)

		label := name
		if u := s.Unit(name); u != "" {
			label = fmt.Sprintf("%s [%s]", name, u)
		}
		p.Legend.Add(label, line)
		if len(names) == 1 {
			p.Y.Label.Text = label
		}
	}
	p.Legend.Top = true
	return p, nil
}

// WritePNG saves the chart; the format follows the file extension, so
// .svg and .pdf work as well.
func WritePNG(path string, s *storage.Series, names ...string) error {
	p, err := Chart(s, names...)
	if err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

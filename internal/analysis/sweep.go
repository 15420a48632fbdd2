package analysis

import (
	"context"
	"strings"

	"github.com/san-kum/smpsim/internal/control"
	"github.com/san-kum/smpsim/internal/experiment"
)

// SweepPoint represents the settled output for one coefficient value
type SweepPoint struct {
	Param float64
	Cost  float64
	// Values are the distinct output voltages after the transient,
	// quantized to a millivolt. One value means a steady output, several
	// mean a limit cycle.
	Values []float64
	Err    error
}

// Sweep runs spec once per value of the named coefficient between
// paramMin and paramMax and records the output after transient seconds.
//
// Parameters:
// - reg, kind, spec, opts: the scenario, as for experiment.Build
// - paramName: coefficient passed to SetParam
// - paramMin, paramMax, paramSteps: sweep range
// - transient: simulated time ignored before recording
func Sweep(
	ctx context.Context,
	reg *experiment.Registry,
	kind control.Kind,
	spec experiment.Spec,
	opts experiment.Options,
	paramName string,
	paramMin, paramMax float64,
	paramSteps int,
	transient float64,
) ([]SweepPoint, error) {
	if paramSteps <= 1 {
		paramSteps = 2 // Prevent division by zero
	}
	paramStep := (paramMax - paramMin) / float64(paramSteps-1)
	results := make([]SweepPoint, 0, paramSteps)

	for i := 0; i < paramSteps; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		param := paramMin + float64(i)*paramStep
		point := SweepPoint{Param: param}

		o := opts
		o.Params = make(map[string]float64, len(opts.Params)+1)
		for k, v := range opts.Params {
			o.Params[k] = v
		}
		o.Params[paramName] = param

		sc, err := experiment.Build(reg, kind, spec, o)
		if err != nil {
			// an unknown parameter fails every point
			return nil, err
		}
		if _, err := sc.Run(ctx); err != nil {
			point.Err = err
			results = append(results, point)
			continue
		}
		point.Cost = sc.Cost.TotalCost

		times, vout, _ := sc.Trace.Series("Vout")
		seen := make(map[int]bool)
		for j, t := range times {
			if t < transient {
				continue
			}
			// Quantize to find distinct values
			key := int(vout[j] * 1000)
			if !seen[key] {
				seen[key] = true
				point.Values = append(point.Values, vout[j])
			}
		}
		results = append(results, point)
	}

	return results, nil
}

// SweepToASCII converts sweep data to ASCII art
func SweepToASCII(data []SweepPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	// Find value range - need at least one valid value
	var minVal, maxVal float64
	foundFirst := false
	for _, p := range data {
		for _, v := range p.Values {
			if !foundFirst {
				minVal, maxVal = v, v
				foundFirst = true
			} else {
				minVal = min(minVal, v)
				maxVal = max(maxVal, v)
			}
		}
	}
	if !foundFirst {
		return "" // No values to plot
	}

	if maxVal == minVal {
		maxVal = minVal + 1
	}

	// Create canvas
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	// Plot points
	for i, p := range data {
		col := i * width / len(data)
		if col >= width {
			col = width - 1
		}

		for _, v := range p.Values {
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height && col >= 0 && col < width {
				canvas[row][col] = '•'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

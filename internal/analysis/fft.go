package analysis

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

type Line struct {
	Frequency float64
	Magnitude float64
}

// SpectrumResult holds the one-sided amplitude spectrum of a series with
// its mean removed.
type SpectrumResult struct {
	SampleRate float64
	Lines      []Line
}

// Dominant returns the strongest line above DC.
func (s *SpectrumResult) Dominant() Line {
	best := Line{}
	for _, l := range s.Lines[1:] {
		if l.Magnitude > best.Magnitude {
			best = l
		}
	}
	return best
}

// Spectrum assumes the samples are close to uniformly spaced, which holds
// for traces written at the simulator's output cadence.
func Spectrum(times, values []float64) (*SpectrumResult, error) {
	n := len(values)
	if n < 4 || len(times) != n {
		return nil, errors.Errorf("spectrum: need at least 4 samples with times, got %d/%d", n, len(times))
	}
	dt := (times[n-1] - times[0]) / float64(n-1)
	if !(dt > 0) {
		return nil, errors.Errorf("spectrum: time axis is not increasing")
	}

	mean := stat.Mean(values, nil)
	seq := make([]float64, n)
	for i, v := range values {
		seq[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, seq)

	res := &SpectrumResult{SampleRate: 1 / dt, Lines: make([]Line, len(coeff))}
	for i, c := range coeff {
		mag := cmplx.Abs(c) / float64(n)
		if i > 0 && 2*i != n {
			mag *= 2
		}
		res.Lines[i] = Line{Frequency: fft.Freq(i) / dt, Magnitude: mag}
	}
	return res, nil
}

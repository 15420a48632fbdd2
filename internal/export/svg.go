package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/smpsim/internal/storage"
)

// TraceToSVG draws one column of a series as a polyline over time.
func TraceToSVG(s *storage.Series, name string, width, height int, strokeColor string) (string, error) {
	values, ok := s.Column(name)
	if !ok {
		return "", errors.Errorf("export: no column %q in %q", name, s.Title)
	}
	if len(values) < 2 {
		return "", errors.Errorf("export: column %q has %d samples", name, len(values))
	}

	minX, maxX := s.Times[0], s.Times[0]
	minY, maxY := values[0], values[0]
	for i, v := range values {
		minX = min(minX, s.Times[i])
		maxX = max(maxX, s.Times[i])
		minY = min(minY, v)
		maxY = max(maxY, v)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<title>%s: %s</title>
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, s.Title, name, strokeColor))

	for i, v := range values {
		x := (s.Times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (v-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String(), nil
}

func WriteSVG(path string, s *storage.Series, name string) error {
	svg, err := TraceToSVG(s, name, 800, 300, "#00ff00")
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(svg), 0644)
}

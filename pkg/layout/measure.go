// Package layout measures watermark text and plans where text blocks go on a
// canvas.
package layout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// SplitLines normalises text to NFC and splits it into lines, dropping lines
// that contain only whitespace.
func SplitLines(text string) []string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Metrics holds measured advance widths for a sequence of lines.
type Metrics struct {
	Widths   []float64
	MaxWidth float64
}

// Measure returns the advance width of every line as drawn with face. The
// same face must be used for drawing or centred lines drift.
func Measure(face font.Face, lines []string) Metrics {
	m := Metrics{Widths: make([]float64, len(lines))}
	for i, line := range lines {
		w := fixedToFloat(font.MeasureString(face, line))
		m.Widths[i] = w
		if w > m.MaxWidth {
			m.MaxWidth = w
		}
	}
	return m
}

// VerticalMiddle returns the distance from a line's vertical centre down to
// its baseline, so that a line drawn at centreY+VerticalMiddle sits centred on
// centreY.
func VerticalMiddle(face font.Face) float64 {
	metrics := face.Metrics()
	return (fixedToFloat(metrics.Ascent) - fixedToFloat(metrics.Descent)) / 2
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

package layout

import "math"

// BaseDimension is the shorter image side at which watermark geometry is used
// unscaled.
const BaseDimension = 1280.0

// ScaleFactor returns max(1, min(w, h)/BaseDimension). Small images are never
// scaled down and there is no upper bound.
func ScaleFactor(w, h int) float64 {
	return math.Max(1.0, float64(min(w, h))/BaseDimension)
}

// Params are the geometric watermark parameters in pixels.
type Params struct {
	FontSize    float64
	Spacing     float64
	LineHeight  float64
	StrokeWidth float64
}

// Scale multiplies every parameter by f.
func (p Params) Scale(f float64) Params {
	return Params{
		FontSize:    p.FontSize * f,
		Spacing:     p.Spacing * f,
		LineHeight:  p.LineHeight * f,
		StrokeWidth: p.StrokeWidth * f,
	}
}

// Point is a position in the watermark frame: origin at the canvas centre,
// axes rotated with the watermark.
type Point struct {
	X, Y float64
}

// Grid is a rows x cols lattice of text block centres.
type Grid struct {
	Rows, Cols         int
	SpacingX, SpacingY float64
	Origin             Point
}

// Centered is the single-placement layout: one block at the canvas centre.
func Centered() Grid {
	return Grid{Rows: 1, Cols: 1}
}

// TileGrid plans a lattice that still covers a w x h canvas after rotation
// by any angle about its centre. The grid extent in both directions is at
// least the canvas diagonal plus two cells of margin.
func TileGrid(w, h int, spacingX, spacingY float64) Grid {
	if spacingX <= 0 || spacingY <= 0 || w <= 0 || h <= 0 {
		return Grid{}
	}
	d := math.Hypot(float64(w), float64(h))
	cols := int(math.Ceil(d/spacingX)) + 2
	rows := int(math.Ceil(d/spacingY)) + 2
	return Grid{
		Rows:     rows,
		Cols:     cols,
		SpacingX: spacingX,
		SpacingY: spacingY,
		Origin: Point{
			X: -float64(cols) * spacingX / 2,
			Y: -float64(rows) * spacingY / 2,
		},
	}
}

// Plan picks the tiled or centred layout for a block of the given size.
func Plan(w, h int, tiled bool, blockW, blockH, spacing float64) Grid {
	if !tiled {
		return Centered()
	}
	return TileGrid(w, h, blockW+spacing, blockH+spacing)
}

// Len returns the number of cells.
func (g Grid) Len() int {
	return g.Rows * g.Cols
}

// Cell returns the centre of the block at row, col.
func (g Grid) Cell(row, col int) Point {
	return Point{
		X: g.Origin.X + float64(col)*g.SpacingX,
		Y: g.Origin.Y + float64(row)*g.SpacingY,
	}
}

// Cells lists all block centres in row-major order.
func (g Grid) Cells() []Point {
	out := make([]Point, 0, g.Len())
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			out = append(out, g.Cell(row, col))
		}
	}
	return out
}

// Visible reports whether a block centred at p with bounding radius r can
// touch a w x h canvas once the watermark frame is rotated by angle radians.
func Visible(p Point, w, h int, angle, r float64) bool {
	sin, cos := math.Sincos(angle)
	x := float64(w)/2 + p.X*cos - p.Y*sin
	y := float64(h)/2 + p.X*sin + p.Y*cos
	return x+r >= 0 && x-r <= float64(w) && y+r >= 0 && y-r <= float64(h)
}

// LineOffsets returns the vertical centre of each of n lines relative to the
// block centre.
func LineOffsets(n int, lineHeight float64) []float64 {
	total := float64(n) * lineHeight
	out := make([]float64, n)
	for i := range out {
		out[i] = -total/2 + lineHeight/2 + float64(i)*lineHeight
	}
	return out
}

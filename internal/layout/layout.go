package layout

// DefaultColumns is the horizontal resolution of the dashboard grid.
const DefaultColumns = 12

// Rect is a widget placement on the grid, in grid cells.
type Rect struct {
	ID string
	X  int
	Y  int
	W  int
	H  int
}

// Overlaps reports whether the x-intervals [X, X+W) and y-intervals [Y, Y+H)
// of a and b both intersect.
func Overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W &&
		a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

// InBounds reports whether r has a positive size and fits within columns.
func InBounds(r Rect, columns int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 && r.X+r.W <= columns
}

// Bottom returns the first row below every rectangle.
func Bottom(rects []Rect) int {
	bottom := 0
	for _, r := range rects {
		if r.Y+r.H > bottom {
			bottom = r.Y + r.H
		}
	}
	return bottom
}

// Overlapping returns the index pairs of every two rectangles that overlap.
func Overlapping(rects []Rect) [][2]int {
	var pairs [][2]int
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if Overlaps(rects[i], rects[j]) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

// FindNextPosition returns the first free anchor for a rectangle of the given
// width, scanning rows top to bottom and columns left to right. A candidate is
// free when a one-row rectangle at (x, y) overlaps none of existing; the height of
// the rectangle being placed is not considered. Rows are unbounded so the scan
// always succeeds.
func FindNextPosition(existing []Rect, width, columns int) (int, int) {
	return scan(existing, width, 1, columns)
}

// FindNextPositionFit is FindNextPosition testing the full requested height,
// so the returned anchor is free for the whole rectangle.
func FindNextPositionFit(existing []Rect, width, height, columns int) (int, int) {
	if height < 1 {
		height = 1
	}
	return scan(existing, width, height, columns)
}

func scan(existing []Rect, width, height, columns int) (int, int) {
	if columns <= 0 {
		columns = DefaultColumns
	}
	if width < 1 {
		width = 1
	}
	if width > columns {
		width = columns
	}
	// every row at or below Bottom is empty, so the loop ends there at the latest
	limit := Bottom(existing)
	for y := 0; ; y++ {
		for x := 0; x <= columns-width; x++ {
			if free(existing, Rect{X: x, Y: y, W: width, H: height}) {
				return x, y
			}
		}
		if y >= limit {
			return 0, y
		}
	}
}

func free(existing []Rect, c Rect) bool {
	for _, r := range existing {
		if Overlaps(c, r) {
			return false
		}
	}
	return true
}

// Append places a rectangle of the given size with FindNextPosition and
// returns a copy of existing with it appended. existing is not modified.
func Append(existing []Rect, id string, width, height, columns int) []Rect {
	if columns > 0 && width > columns {
		width = columns
	}
	x, y := FindNextPosition(existing, width, columns)
	return appendRect(existing, Rect{ID: id, X: x, Y: y, W: width, H: height})
}

func appendRect(existing []Rect, r Rect) []Rect {
	out := make([]Rect, len(existing), len(existing)+1)
	copy(out, existing)
	return append(out, r)
}

// Engine places new rectangles on a grid of fixed column count.
type Engine struct {
	Columns int
	// FullHeight selects FindNextPositionFit over the single-row scan.
	FullHeight bool
}

// NewEngine creates an engine for the given column count, falling back to
// DefaultColumns when columns is not positive.
func NewEngine(columns int, fullHeight bool) *Engine {
	if columns <= 0 {
		columns = DefaultColumns
	}
	return &Engine{Columns: columns, FullHeight: fullHeight}
}

// Place returns the anchor for a new width x height rectangle.
func (e *Engine) Place(existing []Rect, width, height int) (int, int) {
	if e.FullHeight {
		return FindNextPositionFit(existing, width, height, e.Columns)
	}
	return FindNextPosition(existing, width, e.Columns)
}

// Append places a new rectangle and returns a copy of existing with it appended.
func (e *Engine) Append(existing []Rect, id string, width, height int) []Rect {
	if width > e.Columns {
		width = e.Columns
	}
	x, y := e.Place(existing, width, height)
	return appendRect(existing, Rect{ID: id, X: x, Y: y, W: width, H: height})
}

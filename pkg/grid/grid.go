// Package grid maps linear indexes onto rows of fixed width.
package grid

// GetGridCoords returns the column and row of index in a grid of cols
// columns.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Rect is a cell of a grid in pixels.
type Rect struct {
	X, Y, W, H int
}

// Cells splits a width x height area into n cells laid out over cols
// columns, filling rows left to right.
func Cells(n, cols, width, height int) []Rect {
	if n <= 0 || cols <= 0 {
		return nil
	}
	rows := (n + cols - 1) / cols
	w, h := width/cols, height/rows
	cells := make([]Rect, n)
	for i := range cells {
		x, y := GetGridCoords(i, cols)
		cells[i] = Rect{X: x * w, Y: y * h, W: w, H: h}
	}
	return cells
}

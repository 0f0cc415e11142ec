// Package state holds the layout arithmetic of the entry list screen.
package state

// NarrowWidth is the terminal width below which the list behaves like the
// mobile layout: read entries are hidden when leaving them.
const NarrowWidth = 80

func IsNarrow(width int) bool {
	return width > 0 && width < NarrowWidth
}

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

func PageStep(height int, hasStatus bool) int {
	if height <= 0 {
		return 10
	}
	headerLines := 6
	if hasStatus {
		headerLines += 2
	}
	step := height - headerLines
	if step < 3 {
		step = 3
	}
	return step
}

func CenteredWindow(totalRows, cursor, height int) (int, int) {
	if totalRows <= 0 {
		return 0, 0
	}
	if height <= 0 || totalRows <= height {
		return 0, totalRows
	}
	cursor = ClampCursor(cursor, totalRows)
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	maxStart := totalRows - height
	if start > maxStart {
		start = maxStart
	}
	return start, start + height
}

// Viewport is the visible slice of the list. Top is an index into the
// entries; Height is the number of rows that fit.
type Viewport struct {
	Top    int
	Height int
}

// Window returns the [start, end) range to render for total rows.
func (v Viewport) Window(total int) (int, int) {
	if total <= 0 {
		return 0, 0
	}
	if v.Height <= 0 || total <= v.Height {
		return 0, total
	}
	start := ClampCursor(v.Top, total-v.Height+1)
	return start, start + v.Height
}

// Reveal scrolls the least amount needed to show index.
func (v Viewport) Reveal(index, total int) Viewport {
	if index < 0 || total <= 0 {
		return v
	}
	index = ClampCursor(index, total)
	switch {
	case index < v.Top:
		v.Top = index
	case v.Height > 0 && index >= v.Top+v.Height:
		v.Top = index - v.Height + 1
	}
	return v
}

// AlignTop puts index on the first visible row, as far as the list allows.
func (v Viewport) AlignTop(index, total int) Viewport {
	if index < 0 || total <= 0 {
		return v
	}
	v.Top = ClampCursor(index, total)
	if v.Height > 0 && total > v.Height && v.Top > total-v.Height {
		v.Top = total - v.Height
	}
	return v
}

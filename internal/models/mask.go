package models

// Mask is a binary raster. A set cell holds 1.
type Mask struct {
	Width  int
	Height int
	Data   []uint8
}

// NewMask creates an empty mask
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

// Get reports whether (x, y) is set. Out-of-range coordinates are never set.
func (m *Mask) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Data[y*m.Width+x] != 0
}

// Set marks (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Data[y*m.Width+x] = 1
}

// Count returns the number of set cells
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy
func (m *Mask) Clone() *Mask {
	c := NewMask(m.Width, m.Height)
	copy(c.Data, m.Data)
	return c
}

// Occupancy counts, per pixel, how many curve interiors cover it.
type Occupancy struct {
	Width  int
	Height int
	Counts []int

	// Curves is the number of interiors accumulated into Counts
	Curves int
}

// NewOccupancy creates an empty occupancy grid
func NewOccupancy(width, height int) *Occupancy {
	return &Occupancy{
		Width:  width,
		Height: height,
		Counts: make([]int, width*height),
	}
}

// Add accumulates one interior mask. The mask must have the grid's size.
func (o *Occupancy) Add(m *Mask) {
	for i, v := range m.Data {
		if v != 0 {
			o.Counts[i]++
		}
	}
	o.Curves++
}

// At returns the count at (x, y); 0 outside the grid
func (o *Occupancy) At(x, y int) int {
	if x < 0 || y < 0 || x >= o.Width || y >= o.Height {
		return 0
	}
	return o.Counts[y*o.Width+x]
}

// OverlapArea returns the number of pixels covered by two or more curves
func (o *Occupancy) OverlapArea() int {
	n := 0
	for _, k := range o.Counts {
		if k >= 2 {
			n++
		}
	}
	return n
}

// Labels is a label image: 0 is background, i+1 marks curve i.
type Labels struct {
	Width  int
	Height int
	Data   []uint16
}

// NewLabels creates an all-background label image
func NewLabels(width, height int) *Labels {
	return &Labels{
		Width:  width,
		Height: height,
		Data:   make([]uint16, width*height),
	}
}

// Paint writes label into every set cell of m that is still background
func (l *Labels) Paint(m *Mask, label uint16) {
	for i, v := range m.Data {
		if v != 0 && l.Data[i] == 0 {
			l.Data[i] = label
		}
	}
}

// Area returns the number of pixels carrying label
func (l *Labels) Area(label uint16) int {
	n := 0
	for _, v := range l.Data {
		if v == label {
			n++
		}
	}
	return n
}

package field

import (
	"image"

	"coupledsnakes/internal/models"
)

// Component is one 4-connected region of a binary mask.
type Component struct {
	Label  int
	Area   int
	CX, CY float64
	Bounds image.Rectangle
}

// Components labels the 4-connected regions of m. The returned label plane
// holds 0 for unset cells and the component label (from 1) otherwise.
// Components smaller than minArea are dropped and left as 0.
func Components(m *models.Mask, minArea int) ([]Component, []int) {
	w, h := m.Width, m.Height
	labels := make([]int, w*h)
	seen := make([]bool, w*h)
	var comps []Component
	queue := make([]int, 0, 64)
	next := 1

	for start, v := range m.Data {
		if v == 0 || seen[start] {
			continue
		}
		label := next
		seen[start] = true
		labels[start] = label
		queue = append(queue[:0], start)
		members := []int{start}
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if m.Data[j] != 0 && !seen[j] {
					seen[j] = true
					labels[j] = label
					queue = append(queue, j)
					members = append(members, j)
				}
			}
		}

		if len(members) < minArea {
			for _, i := range members {
				labels[i] = 0
			}
			continue
		}

		c := Component{Label: label, Area: len(members)}
		for _, i := range members {
			x, y := i%w, i/w
			c.CX += float64(x)
			c.CY += float64(y)
			c.Bounds = c.Bounds.Union(image.Rect(x, y, x+1, y+1))
		}
		c.CX /= float64(c.Area)
		c.CY /= float64(c.Area)
		comps = append(comps, c)
		next++
	}
	return comps, labels
}

package viz

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphfluid/internal/camera"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille dot grid. Its drawing surface is (Width*2) x
// (Height*4) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the drawing surface size in dots.
func (c *Canvas) Dots() (w, h int) {
	return c.Width * 2, c.Height * 4
}

// Set turns on the dot at (x, y). Out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the dot at (x, y) is on.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Plot projects p through cam and sets the dot it lands on.
func (c *Canvas) Plot(cam *camera.Orbit, p r3.Vec) bool {
	w, h := c.Dots()
	x, y, _, ok := cam.Project(p, w, h)
	if !ok {
		return false
	}
	c.Set(int(x), int(y))
	return true
}

// DrawBox draws the wireframe of the axis-aligned box with the given half
// extents, centred on the origin.
func (c *Canvas) DrawBox(cam *camera.Orbit, half r3.Vec) {
	w, h := c.Dots()
	var corners [8][2]int
	var visible [8]bool
	for i := range corners {
		p := r3.Vec{X: half.X, Y: half.Y, Z: half.Z}
		if i&1 != 0 {
			p.X = -p.X
		}
		if i&2 != 0 {
			p.Y = -p.Y
		}
		if i&4 != 0 {
			p.Z = -p.Z
		}
		x, y, _, ok := cam.Project(p, w, h)
		corners[i] = [2]int{int(x), int(y)}
		visible[i] = ok
	}
	for i := range corners {
		for _, bit := range []int{1, 2, 4} {
			j := i | bit
			if j == i || !visible[i] || !visible[j] {
				continue
			}
			c.DrawLine(corners[i][0], corners[i][1], corners[j][0], corners[j][1])
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

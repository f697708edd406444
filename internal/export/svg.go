package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphfluid/internal/camera"
	"github.com/san-kum/sphfluid/internal/fluid"
)

// ColorMode selects the per-particle colour channel.
type ColorMode int

const (
	ColorBySpeed ColorMode = iota
	ColorByDensity
)

type projected struct {
	x, y, depth float64
	value       float64
}

// ParticlesToSVG projects a particle snapshot through cam and draws it back
// to front, coloured by speed or density.
func ParticlesToSVG(particles []fluid.Particle, cam *camera.Orbit, width, height int, mode ColorMode) string {
	pts := make([]projected, 0, len(particles))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range particles {
		p := &particles[i]
		pos := r3.Vec{X: float64(p.Position[0]), Y: float64(p.Position[1]), Z: float64(p.Position[2])}
		x, y, depth, ok := cam.Project(pos, width, height)
		if !ok || x < 0 || y < 0 || x >= float64(width) || y >= float64(height) {
			continue
		}
		v := p.Speed()
		if mode == ColorByDensity {
			v = float64(p.Density)
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		pts = append(pts, projected{x, y, depth, v})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].depth > pts[j].depth })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g>
`, width, height, width, height))

	focal := float64(height) / 2 / math.Tan(cam.FOV/2)
	for _, p := range pts {
		t := 0.0
		if hi > lo {
			t = (p.value - lo) / (hi - lo)
		}
		r := math.Max(0.5, 0.08*focal/p.depth)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, p.x, p.y, r, Gradient(t)))
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Gradient maps t in [0,1] from deep blue through cyan to white.
func Gradient(t float64) string {
	t = math.Max(0, math.Min(1, t))
	var r, g, b float64
	if t < 0.5 {
		s := t * 2
		r, g, b = 0.05, 0.2+0.6*s, 0.6+0.4*s
	} else {
		s := (t - 0.5) * 2
		r, g, b = 0.05+0.95*s, 0.8+0.2*s, 1
	}
	return fmt.Sprintf("#%02x%02x%02x", int(r*255), int(g*255), int(b*255))
}

// SeriesToSVG draws a line chart of values, e.g. kinetic energy per frame.
func SeriesToSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	last := float64(len(values) - 1)
	for i, v := range values {
		x := float64(i) / last * float64(width)
		y := float64(height) - (v-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

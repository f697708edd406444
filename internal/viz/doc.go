// Package viz renders a running fluid simulation in the terminal.
//
// The live view is a Bubble Tea program that draws particles on a
// braille [Canvas] through an orbit camera and turns mouse drags into the
// external force probe.
//
// # Key Bindings
//
//	Space      - Pause/Resume
//	R          - Reset (reallocate and reseed)
//	B          - Toggle open bounds
//	Tab        - Cycle parameter slider
//	Up/Down    - Adjust selected slider
//	H/J/K/L    - Orbit camera
//	+/-        - Zoom
//	T          - Cycle color themes
//	S          - Save an SVG snapshot
//	Q          - Quit
//
// Left drag pulls particles toward the pointer; right drag pushes them away.
package viz

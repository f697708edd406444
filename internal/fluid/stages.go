package fluid

import "math"

// Stage identifies one pass of the pipeline.
type Stage int

const (
	StageDensity Stage = iota
	StageForces
	StageIntegrate
	numStages
)

// Stages lists the pipeline passes in dispatch order.
var Stages = [numStages]Stage{StageDensity, StageForces, StageIntegrate}

func (s Stage) String() string {
	switch s {
	case StageDensity:
		return "density"
	case StageForces:
		return "forces"
	case StageIntegrate:
		return "integrate"
	default:
		return "unknown"
	}
}

// stageFunc processes particles [start, end). It may read any particle but
// writes only the fields its stage owns, and only for its own range. The
// return value counts rejected updates.
type stageFunc func(ps []Particle, u *Uniforms, start, end int) int

var stageFuncs = [numStages]stageFunc{
	StageDensity:   computeDensity,
	StageForces:    computeForces,
	StageIntegrate: integrate,
}

// computeDensity sums poly6 contributions from every particle within h,
// including the particle itself, and derives pressure from the equation of
// state p = k(ρ - ρ0).
func computeDensity(ps []Particle, u *Uniforms, start, end int) int {
	h2 := float64(u.H) * float64(u.H)
	poly6 := float64(u.Poly6)
	k := float64(u.GasConstant)
	rest := float64(u.RestDensity)

	for i := start; i < end; i++ {
		xi := float64(ps[i].Position[0])
		yi := float64(ps[i].Position[1])
		zi := float64(ps[i].Position[2])

		rho := 0.0
		for j := range ps {
			dx := xi - float64(ps[j].Position[0])
			dy := yi - float64(ps[j].Position[1])
			dz := zi - float64(ps[j].Position[2])
			r2 := dx*dx + dy*dy + dz*dz
			if r2 <= h2 {
				d := h2 - r2
				rho += float64(ps[j].Mass) * poly6 * d * d * d
			}
		}

		ps[i].Density = float32(rho)
		ps[i].Pressure = float32(k * (rho - rest))
	}
	return 0
}

// computeForces accumulates the symmetric pressure force, viscosity,
// gravity and the external probe force into Force.
func computeForces(ps []Particle, u *Uniforms, start, end int) int {
	h := float64(u.H)
	h2 := h * h
	spiky := float64(u.Spiky)
	laplace := float64(u.Laplace)
	mu := float64(u.Viscosity)
	minRho := float64(u.MinDensity)
	extM := float64(u.ExternalForceMagnitude)

	for i := start; i < end; i++ {
		pi := &ps[i]
		xi, yi, zi := float64(pi.Position[0]), float64(pi.Position[1]), float64(pi.Position[2])
		vxi, vyi, vzi := float64(pi.Velocity[0]), float64(pi.Velocity[1]), float64(pi.Velocity[2])
		presI := float64(pi.Pressure)
		mi := float64(pi.Mass)

		var fx, fy, fz float64
		for j := range ps {
			if j == i {
				continue
			}
			pj := &ps[j]
			dx := xi - float64(pj.Position[0])
			dy := yi - float64(pj.Position[1])
			dz := zi - float64(pj.Position[2])
			r2 := dx*dx + dy*dy + dz*dz
			if r2 > h2 {
				continue
			}
			rhoJ := float64(pj.Density)
			if rhoJ < minRho {
				continue
			}

			r := math.Sqrt(r2)
			hr := h - r
			mj := float64(pj.Mass)

			// ∇W_spiky = -3 spiky (h-r)² r̂, taken as zero at r = 0.
			if r > 0 {
				grad := -3 * spiky * hr * hr / r
				c := -mj * (presI + float64(pj.Pressure)) / (2 * rhoJ) * grad
				fx += c * dx
				fy += c * dy
				fz += c * dz
			}

			visc := mj * mu / rhoJ * laplace * hr
			fx += visc * (float64(pj.Velocity[0]) - vxi)
			fy += visc * (float64(pj.Velocity[1]) - vyi)
			fz += visc * (float64(pj.Velocity[2]) - vzi)
		}

		fx += mi * float64(u.Gravity[0])
		fy += mi * float64(u.Gravity[1])
		fz += mi * float64(u.Gravity[2])

		if extM != 0 {
			ex := float64(u.ExternalForcePoint[0]) - xi
			ey := float64(u.ExternalForcePoint[1]) - yi
			ez := float64(u.ExternalForcePoint[2]) - zi
			if n := math.Sqrt(ex*ex + ey*ey + ez*ez); n > 0 {
				fx += extM * ex / n
				fy += extM * ey / n
				fz += extM * ez / n
			}
		}

		pi.Force = [3]float32{float32(fx), float32(fy), float32(fz)}
	}
	return 0
}

// integrate advances velocity then position with semi-implicit Euler and
// reflects any axis that left the box. A particle whose new state is not
// finite keeps its position and loses its velocity.
func integrate(ps []Particle, u *Uniforms, start, end int) int {
	dt := float64(u.DeltaTime)
	restitution := 1 - float64(u.Damping)
	rejected := 0

	for i := start; i < end; i++ {
		p := &ps[i]
		m := float64(p.Mass)

		var pos, vel [3]float64
		finite := true
		for a := 0; a < 3; a++ {
			v := float64(p.Velocity[a]) + float64(p.Force[a])/m*dt
			x := float64(p.Position[a]) + v*dt

			b := float64(u.Bounds[a])
			if x > b {
				x = b
				v = -v * restitution
			} else if x < -b {
				x = -b
				v = -v * restitution
			}

			if !finite32(x) || !finite32(v) {
				finite = false
			}
			pos[a], vel[a] = x, v
		}

		if !finite {
			p.Velocity = [3]float32{}
			rejected++
			continue
		}
		p.Position = [3]float32{float32(pos[0]), float32(pos[1]), float32(pos[2])}
		p.Velocity = [3]float32{float32(vel[0]), float32(vel[1]), float32(vel[2])}
	}
	return rejected
}

// finite32 reports whether x survives conversion to float32 as a finite value.
func finite32(x float64) bool {
	return !math.IsNaN(x) && math.Abs(x) <= math.MaxFloat32
}

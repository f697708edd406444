package storage

import "github.com/san-kum/sphfluid/internal/fluid"

// ParticleRow is the CSV form of a particle. Force is transient and not
// stored.
type ParticleRow struct {
	Index    int     `csv:"index"`
	X        float32 `csv:"x"`
	Y        float32 `csv:"y"`
	Z        float32 `csv:"z"`
	VX       float32 `csv:"vx"`
	VY       float32 `csv:"vy"`
	VZ       float32 `csv:"vz"`
	Density  float32 `csv:"density"`
	Pressure float32 `csv:"pressure"`
	Mass     float32 `csv:"mass"`
}

func ParticleRows(ps []fluid.Particle) []ParticleRow {
	rows := make([]ParticleRow, len(ps))
	for i, p := range ps {
		rows[i] = ParticleRow{
			Index: i,
			X:     p.Position[0], Y: p.Position[1], Z: p.Position[2],
			VX: p.Velocity[0], VY: p.Velocity[1], VZ: p.Velocity[2],
			Density:  p.Density,
			Pressure: p.Pressure,
			Mass:     p.Mass,
		}
	}
	return rows
}

func FromRows(rows []ParticleRow) []fluid.Particle {
	ps := make([]fluid.Particle, len(rows))
	for i, r := range rows {
		ps[i] = fluid.Particle{
			Position: [3]float32{r.X, r.Y, r.Z},
			Velocity: [3]float32{r.VX, r.VY, r.VZ},
			Density:  r.Density,
			Pressure: r.Pressure,
			Mass:     r.Mass,
		}
	}
	return ps
}

// Package fluid implements a Smoothed Particle Hydrodynamics (SPH) fluid.
//
// The simulation advances a packed array of [Particle] records through a
// fixed three-stage pipeline, once per substep:
//
//   - [StageDensity]: per-particle density (poly6 kernel) and pressure
//   - [StageForces]: pressure, viscosity, gravity and external forces
//   - [StageIntegrate]: semi-implicit Euler with per-axis boundary reflection
//
// Every stage visits every particle pair (O(n²)); there is no spatial
// partitioning. Stages are dispatched through a [Pipeline], which either runs
// the Go kernels on a [compute.Backend] or executes the equivalent shaders on
// an accelerator. A dispatch returns only after every particle has been
// processed, so stage N's writes are visible to stage N+1.
//
// # Lifecycle
//
//	sim, _ := fluid.New(fluid.Options{Params: p, Backend: compute.NewCPUBackend(0)})
//	if err := sim.Init(ctx); err != nil { ... }
//	for running {
//	    stats, err := sim.Update(ctx, probeSample)
//	    render(sim.Particles())
//	}
//	sim.Teardown()
//
// Parameter edits ([Simulation.Submit], [Simulation.Apply]) and resets
// ([Simulation.Reset]) are queued and take effect at the start of the next
// frame, never in the middle of a pipeline run.
package fluid

// Package gpu runs the fluid pipeline as OpenGL 4.3 compute shaders.
//
// The particle array lives in a shader storage buffer bound at index 0 with
// the same 48-byte record layout as fluid.Particle. Each stage is its own
// program; uniforms are set by name from fluid.Uniforms.Map and a memory
// barrier separates consecutive dispatches.
//
// A Pipeline needs a current OpenGL 4.3 context on the calling thread, so it
// is created and driven from the window's render loop.
package gpu

// Package compute provides the data-parallel dispatch backends used by the
// fluid pipeline.
//
// A backend runs a kernel over an index range and returns only once every
// index has been processed, which makes each dispatch a full barrier:
//
//	backend := compute.NewCPUBackend(0)
//	err := backend.Dispatch(ctx, n, func(start, end int) {
//	    for i := start; i < end; i++ { ... }
//	})
//
// Available backends:
//
//   - cpu: chunked goroutines bounded by the worker count
//   - serial: a single goroutine, used as the reference in tests
//
// The OpenGL compute pipeline lives in package gpu, since it runs shaders
// rather than Go kernels.
package compute

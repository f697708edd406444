package compute

import (
	"context"
	"fmt"
	"sort"
)

// Kernel processes the half-open index range [start, end).
type Kernel func(start, end int)

type Backend interface {
	Name() string
	Available() bool
	// Dispatch runs kernel over [0, n) and returns after every index is done.
	Dispatch(ctx context.Context, n int, kernel Kernel) error
	Cleanup()
}

var registry = map[string]func(workers int) Backend{
	"cpu":    func(workers int) Backend { return NewCPUBackend(workers) },
	"serial": func(int) Backend { return NewSerialBackend() },
}

// New builds the named backend. workers <= 0 selects runtime.NumCPU.
func New(name string, workers int) (Backend, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	return factory(workers), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

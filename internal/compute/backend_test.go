package compute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestDispatchCoversRange(t *testing.T) {
	backends := []Backend{
		NewSerialBackend(),
		NewCPUBackend(1),
		NewCPUBackend(4),
		&CPUBackend{workers: 8, MinChunk: 1},
	}
	sizes := []int{1, 63, 128, 1000, 4097}

	for _, b := range backends {
		for _, n := range sizes {
			hits := make([]int32, n)
			err := b.Dispatch(context.Background(), n, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			if err != nil {
				t.Fatalf("%s n=%d: unexpected error: %v", b.Name(), n, err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Errorf("%s n=%d: index %d visited %d times", b.Name(), n, i, h)
					break
				}
			}
		}
	}
}

func TestDispatchEmpty(t *testing.T) {
	called := false
	b := NewCPUBackend(4)
	if err := b.Dispatch(context.Background(), 0, func(int, int) { called = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected kernel not to run for n=0")
	}
}

func TestDispatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, b := range []Backend{NewSerialBackend(), NewCPUBackend(4)} {
		err := b.Dispatch(ctx, 10000, func(int, int) {})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", b.Name(), err)
		}
	}
}

func TestDispatchIsBarrier(t *testing.T) {
	b := &CPUBackend{workers: 8, MinChunk: 16}
	n := 1024
	var done atomic.Int64

	if err := b.Dispatch(context.Background(), n, func(start, end int) {
		done.Add(int64(end - start))
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := done.Load(); got != int64(n) {
		t.Errorf("expected %d indices complete on return, got %d", n, got)
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		b, err := New(name, 2)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("expected name %q, got %q", name, b.Name())
		}
		if !b.Available() {
			t.Errorf("expected %q to be available", name)
		}
	}

	if _, err := New("cuda", 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}

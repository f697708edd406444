package compute

import "context"

type SerialBackend struct{}

func NewSerialBackend() *SerialBackend {
	return &SerialBackend{}
}

func (s *SerialBackend) Name() string    { return "serial" }
func (s *SerialBackend) Available() bool { return true }
func (s *SerialBackend) Cleanup()        {}

func (s *SerialBackend) Dispatch(ctx context.Context, n int, kernel Kernel) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	kernel(0, n)
	return nil
}

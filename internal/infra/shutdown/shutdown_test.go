package shutdown

import (
	"context"
	"errors"
	"reflect"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler_DefaultTimeout(t *testing.T) {
	if h := NewHandler(0); h.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", h.timeout, DefaultTimeout)
	}
	if h := NewHandler(time.Second); h.timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", h.timeout)
	}
}

func TestHandler_Shutdown_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var order []string
	h.OnShutdown(func(context.Context) error { order = append(order, "metrics"); return nil })
	h.OnShutdown(func(context.Context) error { order = append(order, "engine"); return nil })

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if want := []string{"engine", "metrics"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed after Shutdown")
	}
}

func TestHandler_Shutdown_JoinsErrors(t *testing.T) {
	h := NewHandler(time.Second)
	errWAL := errors.New("close wal")
	errKV := errors.New("close backend")

	ran := 0
	h.OnShutdown(func(context.Context) error { ran++; return errKV })
	h.OnShutdown(func(context.Context) error { ran++; return nil })
	h.OnShutdown(func(context.Context) error { ran++; return errWAL })

	err := h.Shutdown()
	if !errors.Is(err, errWAL) || !errors.Is(err, errKV) {
		t.Errorf("Shutdown() = %v, want both errors", err)
	}
	if ran != 3 {
		t.Errorf("ran %d hooks, want 3", ran)
	}
}

func TestHandler_Shutdown_Once(t *testing.T) {
	h := NewHandler(time.Second)
	calls := 0
	h.OnShutdown(func(context.Context) error { calls++; return errors.New("boom") })

	first := h.Shutdown()
	second := h.Shutdown()
	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
	if first == nil || first != second {
		t.Errorf("Shutdown results differ: %v, %v", first, second)
	}
}

func TestHandler_Shutdown_Deadline(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)
	h.OnShutdown(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("hook context has no deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Shutdown ignored the timeout")
	}
}

func TestWithSignals(t *testing.T) {
	ctx, stop := WithSignals(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled by SIGTERM")
	}
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyProbe_ReportsRoundTrip(t *testing.T) {
	req := require.New(t)
	reports := make(chan int, 16)
	p := NewLatencyProbe(5*time.Millisecond, 100*time.Millisecond,
		func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("echo context has no deadline")
			}
			return nil
		},
		func(pingMs int) { reports <- pingMs })
	p.Start(context.Background())
	defer p.Stop()

	select {
	case ms := <-reports:
		req.GreaterOrEqual(ms, 0)
	case <-time.After(time.Second):
		t.Fatal("no report within a second")
	}
}

func TestLatencyProbe_SkipsFailedEcho(t *testing.T) {
	var cycles, reported atomic.Int32
	p := NewLatencyProbe(2*time.Millisecond, 10*time.Millisecond,
		func(ctx context.Context) error {
			cycles.Add(1)
			return errors.New("echo lost")
		},
		func(pingMs int) { reported.Add(1) })
	p.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	require.Greater(t, cycles.Load(), int32(0))
	require.Zero(t, reported.Load())
}

func TestLatencyProbe_NoReportAfterStop(t *testing.T) {
	var reported atomic.Int32
	p := NewLatencyProbe(2*time.Millisecond, 10*time.Millisecond,
		func(ctx context.Context) error { return nil },
		func(pingMs int) { reported.Add(1) })
	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	p.Stop()
	after := reported.Load()
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, after, reported.Load())
}

func TestLatencyProbe_StartTwiceIsNoOp(t *testing.T) {
	p := NewLatencyProbe(time.Hour, time.Second,
		func(ctx context.Context) error { return nil },
		func(pingMs int) {})
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}

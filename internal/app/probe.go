package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LatencyProbe measures the signaling round trip on a fixed period.
// Each cycle issues one bounded echo; on success the elapsed time is
// handed to report, on timeout or error the cycle is silently skipped.
type LatencyProbe struct {
	period  time.Duration
	timeout time.Duration
	echo    func(ctx context.Context) error
	report  func(pingMs int)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLatencyProbe(period, timeout time.Duration, echo func(context.Context) error, report func(pingMs int)) *LatencyProbe {
	return &LatencyProbe{
		period:  period,
		timeout: timeout,
		echo:    echo,
		report:  report,
	}
}

// Start launches the probe loop. A second Start without Stop is a
// no-op.
func (p *LatencyProbe) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	log.Debug().Str("module", "app.probe").Dur("period", p.period).Msg("latency probe started")
}

// Stop cancels the loop and waits for it to exit, so no report fires
// after Stop returns. Idempotent.
func (p *LatencyProbe) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Debug().Str("module", "app.probe").Msg("latency probe stopped")
}

func (p *LatencyProbe) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := time.Now()
		echoCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.echo(echoCtx)
		cancel()
		if err != nil {
			// Timeout or transport error: skip until the next cycle.
			continue
		}
		if ctx.Err() != nil {
			return
		}
		p.report(int(time.Since(start).Milliseconds()))
	}
}

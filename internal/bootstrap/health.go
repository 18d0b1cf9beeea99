package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// startHealthLoop launches the single background goroutine that probes the
// active engine and drives failover. Caller must hold no locks; the loop is
// stopped through healthCancel and signals completion on healthDone.
func (o *Orchestrator) startHealthLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	o.mu.Lock()
	o.healthCancel = cancel
	o.healthDone = done
	o.mu.Unlock()

	go o.healthLoop(ctx, done)
}

func (o *Orchestrator) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := o.cfg.VectorDatabase.AutoInit.HealthCheckInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info("health-check loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("health-check loop stopped")
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick runs one probe cycle against the active engine. A success resets the
// consecutive-failure counter and restores Ready after a degraded spell; a
// failure increments it and, at the configured threshold, triggers failover.
func (o *Orchestrator) tick(ctx context.Context) {
	ai := o.cfg.VectorDatabase.AutoInit

	o.mu.Lock()
	adapter, current := o.adapter, o.current
	o.mu.Unlock()
	if adapter == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, ai.ProbeTimeout)
	err := adapter.Probe(pctx)
	cancel()

	if err == nil {
		ProbesTotal.WithLabelValues(string(current), "success").Inc()
		EngineUp.WithLabelValues(string(current)).Set(1)

		o.mu.Lock()
		o.failures[current] = 0
		recovered := o.state == StateDegraded
		if recovered {
			o.state = StateReady
		}
		o.mu.Unlock()

		if recovered {
			stateGauge(StateReady)
			o.logger.Info("engine recovered", zap.String("engine", string(current)))
		}
		return
	}

	ProbesTotal.WithLabelValues(string(current), "error").Inc()
	EngineUp.WithLabelValues(string(current)).Set(0)

	o.mu.Lock()
	o.failures[current]++
	n := o.failures[current]
	o.mu.Unlock()

	o.logger.Warn("health probe failed",
		zap.String("engine", string(current)),
		zap.Int("consecutive_failures", n),
		zap.Int("threshold", ai.FailoverThreshold),
		zap.Error(err))

	if ai.AutoFailover && n >= ai.FailoverThreshold {
		o.failover(ctx, current)
	}
}

// failover makes a single pass over the fallback engines, skipping the
// failed one, and swaps to the first that fully initializes. No per-engine
// retries here: the loop keeps ticking and will try again next interval if
// every fallback is down.
func (o *Orchestrator) failover(ctx context.Context, failed schema.EngineID) {
	ai := o.cfg.VectorDatabase.AutoInit

	o.logger.Warn("failover triggered",
		zap.String("failed_engine", string(failed)),
		zap.Int("fallbacks", len(ai.FallbackEngines)))

	for _, id := range ai.FallbackEngines {
		if id == failed || !o.backends.Supports(id) {
			continue
		}
		adapter, done, err := o.initEngineOnce(ctx, id)
		if err != nil {
			o.logger.Warn("fallback engine unavailable",
				zap.String("engine", string(id)),
				zap.Error(err))
			continue
		}

		o.mu.Lock()
		old := o.adapter
		o.adapter = adapter
		o.current = id
		o.failures[id] = 0
		o.initialized = done
		o.state = StateReady
		o.mu.Unlock()

		if old != nil {
			_ = old.Disconnect()
		}

		stateGauge(StateReady)
		EngineUp.WithLabelValues(string(id)).Set(1)
		FailoversTotal.WithLabelValues("success").Inc()
		o.logger.Info("failed over to fallback engine",
			zap.String("from", string(failed)),
			zap.String("to", string(id)))
		return
	}

	o.setState(StateDegraded)
	FailoversTotal.WithLabelValues("exhausted").Inc()
	o.logger.Error("failover exhausted: no fallback engine available, vector operations degraded",
		zap.String("failed_engine", string(failed)))
}

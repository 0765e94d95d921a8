package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/health"
	"github.com/fleetctl/masterctl/internal/platform/logger"
	"github.com/fleetctl/masterctl/internal/registry"
	"github.com/fleetctl/masterctl/internal/repos"
	"github.com/fleetctl/masterctl/internal/tracker"
	"github.com/fleetctl/masterctl/internal/workerclient"
)

// healthSweepInterval matches spec.md §5's "health sweep (every 5s)".
const healthSweepInterval = 5 * time.Second

// sweepConcurrency bounds how many worker /health polls run at once, so one
// slow or unreachable worker can't stall the sweep of the rest of the pool.
const sweepConcurrency = 8

// healthSweepLoop proactively polls every registered worker's GET /health
// endpoint (spec.md §6 worker RPC boundary), complementing the workers' own
// POST /heartbeat self-reports: a worker that stops heartbeating but is
// still reachable gets a second chance to prove liveness before C7 marks it
// unhealthy, and a worker that's gone entirely is recorded as a failure
// immediately rather than waiting out the freshness window.
func healthSweepLoop(ctx context.Context, log *logger.Logger, reg *registry.Registry, hm *health.Monitor, trk *tracker.Tracker, workerRepo repos.WorkerRepo, wc *workerclient.Client) {
	ticker := time.NewTicker(healthSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, log, reg, hm, trk, workerRepo, wc)
		}
	}
}

func sweepOnce(ctx context.Context, log *logger.Logger, reg *registry.Registry, hm *health.Monitor, trk *tracker.Tracker, workerRepo repos.WorkerRepo, wc *workerclient.Client) {
	workers := reg.All()
	if len(workers) == 0 {
		return
	}

	sweepCtx, cancel := context.WithTimeout(ctx, healthSweepInterval)
	defer cancel()

	g, gctx := errgroup.WithContext(sweepCtx)
	g.SetLimit(sweepConcurrency)

	for _, w := range workers {
		w := w
		g.Go(func() error {
			pollWorker(gctx, log, reg, hm, trk, workerRepo, wc, w)
			return nil // a single worker's poll failure never aborts the sweep
		})
	}
	_ = g.Wait()
}

// pollWorker refreshes one worker's liveness (registry + health monitor) and
// persists the durable snapshot (agents row + tracker stats) the §6 /stats
// endpoint's registry summary is ultimately sourced from on restart.
func pollWorker(ctx context.Context, log *logger.Logger, reg *registry.Registry, hm *health.Monitor, trk *tracker.Tracker, workerRepo repos.WorkerRepo, wc *workerclient.Client, w domain.Worker) {
	resp, err := wc.Health(ctx, w.Host, w.Port)
	if err != nil {
		hm.RecordFailure(w.Name)
		log.Debug("health sweep: worker unreachable", "worker", w.Name, "error", err)
		return
	}
	status := domain.WorkerStatus(resp.Status)
	if status == "" {
		status = domain.WorkerIdle
	}
	reg.Heartbeat(w.Name, status, resp.CPU, resp.Memory, resp.Temperature)
	hm.RecordHeartbeat(w.Name, status)

	if workerRepo == nil {
		return
	}
	w.Status = status
	w.CPUPercent = resp.CPU
	w.MemoryPercent = resp.Memory
	w.TemperatureC = resp.Temperature
	if err := workerRepo.Upsert(ctx, nil, &w); err != nil {
		log.Warn("health sweep: persist worker row failed", "worker", w.Name, "error", err)
		return
	}
	snap := trk.Stats(w.Name)
	if err := workerRepo.UpdateStats(ctx, nil, w.Name, snap.TotalTasks, snap.SuccessCount, snap.FailureCount, snap.AvgResponseTime, snap.CostPerTask); err != nil {
		log.Warn("health sweep: persist worker stats failed", "worker", w.Name, "error", err)
	}
}

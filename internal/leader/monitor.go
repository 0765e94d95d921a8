// Package leader implements the heartbeat-based election that picks exactly
// one active controller among replicas (spec component C1).
package leader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// Repo is the persistence port the monitor needs. Implemented by
// internal/repos.LeaderRepo against the controller_heartbeats table.
type Repo interface {
	UpsertHeartbeat(ctx context.Context, masterID string, now time.Time) error
	SetActive(ctx context.Context, masterID string, active bool) error
	ListReplicas(ctx context.Context) ([]domain.ControllerReplica, error)
}

// Config controls election timing. Zero values are replaced with the
// spec-default 5s heartbeat / 15s timeout.
type Config struct {
	MasterID          string
	HeartbeatInterval time.Duration
	Timeout           time.Duration
	EnableFailover    bool
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// Monitor runs the election loop and exposes the hot-path leadership check
// via an atomic so that every /chat request avoids the repo's lock.
type Monitor struct {
	cfg     Config
	repo    Repo
	log     *logger.Logger
	metrics LeaderGauge

	active atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// LeaderGauge is the narrow metrics surface the monitor reports its
// leadership transitions to; *observability.Metrics satisfies it.
type LeaderGauge interface {
	SetLeader(isLeader bool)
}

// New constructs a Monitor. EnableFailover=false makes ShouldProcessRequest
// always true, matching spec §4.1's "failover disabled" contract clause.
// metrics may be nil.
func New(cfg Config, repo Repo, log *logger.Logger, metrics LeaderGauge) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{
		cfg:     cfg,
		repo:    repo,
		log:     log.With("component", "leader.Monitor", "master_id", cfg.MasterID),
		metrics: metrics,
	}
}

// Start launches the background election loop. It ticks immediately so a
// freshly started replica doesn't wait a full interval before its first
// heartbeat and election attempt.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("leader: monitor already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(loopCtx)
	return nil
}

// Close stops the election loop and waits for it to exit.
func (m *Monitor) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if done != nil {
		<-done
	}
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	now := time.Now()
	if err := m.repo.UpsertHeartbeat(ctx, m.cfg.MasterID, now); err != nil {
		m.log.Warn("heartbeat write failed", "error", err)
		return
	}

	replicas, err := m.repo.ListReplicas(ctx)
	if err != nil {
		m.log.Warn("list replicas failed", "error", err)
		return
	}

	// Rule 1: an incumbent with a fresh heartbeat stays leader.
	for _, r := range replicas {
		if !r.Active {
			continue
		}
		if heartbeatAge(r, now) >= m.cfg.Timeout {
			continue
		}
		if r.MasterID == m.cfg.MasterID {
			m.becomeActive(false)
			return
		}
		m.becomeStandby(ctx)
		return
	}

	// Rule 2: among replicas (including self) with a fresh heartbeat,
	// the smallest lexicographic id is elected.
	live := map[string]bool{m.cfg.MasterID: true}
	for _, r := range replicas {
		if heartbeatAge(r, now) < m.cfg.Timeout {
			live[r.MasterID] = true
		}
	}
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	winner := ids[0]

	if winner != m.cfg.MasterID {
		m.becomeStandby(ctx)
		return
	}
	if err := m.repo.SetActive(ctx, m.cfg.MasterID, true); err != nil {
		m.log.Warn("set active failed", "error", err)
		return
	}
	m.becomeActive(true)
}

func heartbeatAge(r domain.ControllerReplica, now time.Time) time.Duration {
	if r.LastHeartbeat.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(r.LastHeartbeat)
}

func (m *Monitor) becomeActive(elected bool) {
	was := m.active.Swap(true)
	if elected && !was {
		m.log.Info("elected active controller")
	}
	if !was && m.metrics != nil {
		m.metrics.SetLeader(true)
	}
}

// becomeStandby steps this replica down and clears its own persisted active
// flag, so rule 1's "incumbent with a fresh heartbeat stays leader" check
// does not keep re-electing a replica that no longer believes it is leader.
func (m *Monitor) becomeStandby(ctx context.Context) {
	was := m.active.Swap(false)
	if !was {
		return
	}
	m.log.Info("stepping down to standby")
	if m.metrics != nil {
		m.metrics.SetLeader(false)
	}
	if err := m.repo.SetActive(ctx, m.cfg.MasterID, false); err != nil {
		m.log.Warn("clear active failed", "error", err)
	}
}

// IsActive reports whether this replica currently believes it is leader.
func (m *Monitor) IsActive() bool { return m.active.Load() }

// ShouldProcessRequest is the contract every external entry point to the
// router must check first (spec §4.1).
func (m *Monitor) ShouldProcessRequest() bool {
	return !m.cfg.EnableFailover || m.active.Load()
}

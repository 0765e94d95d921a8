// Package controller composes the capability ports (planner, context
// selector, cache, router) into the single request-handling service the
// HTTP layer calls, the way the teacher's services package composes repos
// and sub-services behind one ChatService interface.
package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fleetctl/masterctl/internal/cache"
	"github.com/fleetctl/masterctl/internal/contextselect"
	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/health"
	"github.com/fleetctl/masterctl/internal/planner"
	"github.com/fleetctl/masterctl/internal/platform/logger"
	"github.com/fleetctl/masterctl/internal/registry"
	"github.com/fleetctl/masterctl/internal/router"
	"github.com/fleetctl/masterctl/internal/tracker"
	"github.com/fleetctl/masterctl/internal/validator"
)

// History is the conversation-memory port: append a turn, read the last N
// for the context window (spec §3).
type History interface {
	Append(ctx context.Context, conversationID string, role domain.Role, content string) error
	Window(ctx context.Context, conversationID string, n int) ([]domain.Message, error)
	LastTaskDescription(ctx context.Context, conversationID string) string
}

// ChatResponse is the wire shape for POST /chat's result, per spec §6.
type ChatResponse struct {
	Answer         string   `json:"answer"`
	ConversationID string   `json:"conversation_id"`
	UsedCache      bool     `json:"used_cache"`
	Steps          int      `json:"steps"`
	WorkersUsed    []string `json:"workers_used"`
	Validation     string   `json:"validation,omitempty"`
}

// HealthResponse is the wire shape for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveMaster   string `json:"active_master"`
	WorkersHealthy int    `json:"workers_healthy"`
}

// StatsResponse is the wire shape for GET /stats: registry, tracker, cache,
// and health summaries in one envelope.
type StatsResponse struct {
	Registry  RegistrySummary   `json:"registry"`
	Tracker   tracker.Insights  `json:"tracker"`
	Cache     cache.Stats       `json:"cache"`
	Health    health.Report     `json:"health"`
	Validator *validator.Stats  `json:"validator,omitempty"`
}

// statsProvider is implemented by validator.OracleValidator (not by
// validator.Fallback, which tracks no history); Stats type-asserts against
// it so StatsResponse.Validator is only populated when an oracle validator
// is actually configured.
type statsProvider interface {
	Stats() validator.Stats
}

type RegistrySummary struct {
	TotalWorkers int                       `json:"total_workers"`
	ByStatus     map[domain.WorkerStatus]int `json:"by_status"`
}

// LeaderGate exposes just enough of leader.Monitor for the controller to
// report which replica is currently active.
type LeaderGate interface {
	ShouldProcessRequest() bool
	IsActive() bool
}

type Config struct {
	MasterID           string
	MaxContextMessages int
}

func (c Config) withDefaults() Config {
	if c.MaxContextMessages <= 0 {
		c.MaxContextMessages = domain.DefaultContextWindow
	}
	return c
}

// Service is the top-level request handler every HTTP handler calls into.
type Service struct {
	cfg Config
	log *logger.Logger

	history  History
	selector *contextselect.Selector
	plan     planner.Port
	cache    *cache.Cache
	supervisor *router.Supervisor
	registry *registry.Registry
	tracker  *tracker.Tracker
	health   *health.Monitor
	leader   LeaderGate
	metrics  CacheGauge
}

// CacheGauge is the narrow metrics surface the cache hit/miss is reported
// to; *observability.Metrics satisfies it. May be nil.
type CacheGauge interface {
	IncCacheLookup(outcome string)
}

func New(
	cfg Config,
	log *logger.Logger,
	history History,
	selector *contextselect.Selector,
	plan planner.Port,
	respCache *cache.Cache,
	supervisor *router.Supervisor,
	reg *registry.Registry,
	trk *tracker.Tracker,
	hm *health.Monitor,
	leader LeaderGate,
	metrics CacheGauge,
) *Service {
	return &Service{
		cfg:        cfg.withDefaults(),
		log:        log.With("service", "controller.Service"),
		history:    history,
		selector:   selector,
		plan:       plan,
		cache:      respCache,
		supervisor: supervisor,
		registry:   reg,
		tracker:    trk,
		health:     hm,
		leader:     leader,
		metrics:    metrics,
	}
}

// ErrNotLeader mirrors router.ErrNotLeader so handlers can map it to a 503
// without importing the router package directly for the sentinel.
var ErrNotLeader = router.ErrNotLeader

// Chat drives one full request through C3 (context) -> C4 (cache) -> C2
// (plan) -> C5-C8 (route). It is the Go analogue of the original
// process_request entrypoint.
func (s *Service) Chat(ctx context.Context, conversationID, userID, message string, files []domain.FileSummary) (ChatResponse, error) {
	if s.leader != nil && !s.leader.ShouldProcessRequest() {
		return ChatResponse{}, ErrNotLeader
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	window, err := s.history.Window(ctx, conversationID, s.cfg.MaxContextMessages)
	if err != nil {
		s.log.Warn("failed to load conversation window", "error", err, "conversation_id", conversationID)
	}

	decision, contextStr := s.selector.Select(ctx, message, window)
	s.log.Debug("context decision", "needs_context", decision.NeedsContext, "reason", decision.Reason)

	if answer, hit := s.cache.Get(message, contextStr); hit {
		if s.metrics != nil {
			s.metrics.IncCacheLookup("hit")
		}
		_ = s.history.Append(ctx, conversationID, domain.RoleUser, message)
		_ = s.history.Append(ctx, conversationID, domain.RoleAssistant, answer)
		return ChatResponse{
			Answer:         answer,
			ConversationID: conversationID,
			UsedCache:      true,
		}, nil
	}
	if s.metrics != nil {
		s.metrics.IncCacheLookup("miss")
	}

	generatedPlan, err := s.plan.Plan(ctx, planner.Request{Message: message, Files: files})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("controller: plan: %w", err)
	}

	priorTaskDescription := s.history.LastTaskDescription(ctx, conversationID)
	result, err := s.supervisor.RunPlan(ctx, conversationID, userID, message, generatedPlan, contextStr, priorTaskDescription)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("controller: run plan: %w", err)
	}

	if result.FinalAnswer != "" {
		s.cache.Set(message, contextStr, result.FinalAnswer)
	}

	_ = s.history.Append(ctx, conversationID, domain.RoleUser, message)
	if result.FinalAnswer != "" {
		_ = s.history.Append(ctx, conversationID, domain.RoleAssistant, result.FinalAnswer)
	}

	validation := "completed"
	if len(result.StepResults) > 0 {
		last := result.StepResults[len(result.StepResults)-1]
		if last.Outcome != router.OutcomeCompleted && last.Outcome != router.OutcomeUseBuiltin {
			validation = string(last.Outcome)
		}
	}

	return ChatResponse{
		Answer:         result.FinalAnswer,
		ConversationID: conversationID,
		UsedCache:      false,
		Steps:          len(result.StepResults),
		WorkersUsed:    result.WorkersUsed,
		Validation:     validation,
	}, nil
}

// Health reports the §6 GET /health envelope.
func (s *Service) Health() HealthResponse {
	activeMaster := ""
	if s.leader != nil && s.leader.IsActive() {
		activeMaster = s.cfg.MasterID
	}
	healthy := s.health.GetHealthyWorkers("")
	status := "ok"
	return HealthResponse{
		Status:         status,
		ActiveMaster:   activeMaster,
		WorkersHealthy: len(healthy),
	}
}

// Stats reports the §6 GET /stats envelope.
func (s *Service) Stats() StatsResponse {
	all := s.registry.All()
	byStatus := make(map[domain.WorkerStatus]int)
	for _, w := range all {
		byStatus[w.Status]++
	}
	resp := StatsResponse{
		Registry: RegistrySummary{TotalWorkers: len(all), ByStatus: byStatus},
		Tracker:  s.tracker.SystemInsights(),
		Cache:    s.cache.Stats(),
		Health:   s.health.GetHealthReport(),
	}
	if sp, ok := s.supervisor.Validator().(statsProvider); ok {
		stats := sp.Stats()
		resp.Validator = &stats
	}
	return resp
}

// Cancel implements POST /cancel/{task_id}.
func (s *Service) Cancel(ctx context.Context, taskID int64) error {
	return s.supervisor.CancelTask(ctx, taskID)
}

// RegisterWorker implements POST /register: a worker announces itself to
// the registry and starts out healthy for the purposes of heartbeat aging.
func (s *Service) RegisterWorker(worker domain.Worker) {
	s.registry.Register(worker)
	s.health.RecordHeartbeat(worker.Name, domain.WorkerIdle)
}

// Heartbeat implements POST /heartbeat: refresh liveness/hardware telemetry
// for an already-registered worker.
func (s *Service) Heartbeat(name string, status domain.WorkerStatus, cpu, memory, temperature float64) {
	s.registry.Heartbeat(name, status, cpu, memory, temperature)
	s.health.RecordHeartbeat(name, status)
}

// Package tracker implements the performance tracker (spec component C6):
// per-worker rolling metrics, adaptive-learning-rate exponential moving
// averages, trend/specialization detection, predicted success, and the
// composite Score used to rank workers for dispatch. Every formula here is
// ported field-for-field from performance_tracker.py; see DESIGN.md.
package tracker

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fleetctl/masterctl/internal/domain"
)

// workerMetrics is guarded by its own mutex (striped locking across workers,
// per the Tracker's sync.Map) so recording a result for one worker never
// blocks scoring or recording for another.
type workerMetrics struct {
	mu sync.Mutex

	successCount        int
	failureCount        int
	totalTasks          int
	avgResponseTime     float64
	avgQualityScore     float64
	totalTokensUsed     int
	totalCost           float64
	lastFailureTime     time.Time
	consecutiveFailures int
	uptimePercentage    float64
	taskTypes           map[string]int

	responseTimeHistory ring20
	successHistory      ring20
	qualityHistory      ring20

	costPerTask          float64
	predictedSuccessRate float64
	performanceTrend     domain.Trend
	optimalTaskTypes     []string
	learningPhase        bool
	specializationScore  float64
}

func newWorkerMetrics() *workerMetrics {
	return &workerMetrics{
		taskTypes:            make(map[string]int),
		uptimePercentage:     100,
		predictedSuccessRate: 100,
		performanceTrend:     domain.TrendStable,
		learningPhase:        true,
	}
}

// Snapshot is a point-in-time copy of one worker's metrics, safe to read
// without holding any lock.
type Snapshot struct {
	WorkerName           string
	SuccessCount         int
	FailureCount         int
	TotalTasks           int
	AvgResponseTime      float64
	AvgQualityScore      float64
	TotalTokensUsed      int
	TotalCost            float64
	ConsecutiveFailures  int
	UptimePercentage     float64
	CostPerTask          float64
	PredictedSuccessRate float64
	PerformanceTrend     domain.Trend
	OptimalTaskTypes     []string
	LearningPhase        bool
	SpecializationScore  float64
	TaskTypes            map[string]int
}

// Tracker holds one workerMetrics per worker name. sync.Map is appropriate
// here: the worker set is read far more than it is written (a new key is
// added only the first time any method looks up a worker name), matching
// sync.Map's stated sweet spot.
type Tracker struct {
	workers sync.Map // string -> *workerMetrics
}

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) getOrCreate(workerName string) *workerMetrics {
	if v, ok := t.workers.Load(workerName); ok {
		return v.(*workerMetrics)
	}
	v, _ := t.workers.LoadOrStore(workerName, newWorkerMetrics())
	return v.(*workerMetrics)
}

// LogResult records one completed task's outcome and recomputes every
// derived field (trend, specialization, predicted success) under the
// worker's own lock. qualityScore is nil when no validator score applies.
func (t *Tracker) LogResult(workerName, taskType string, success bool, durationSeconds float64, tokensUsed int, cost float64, qualityScore *float64) {
	m := t.getOrCreate(workerName)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalTasks++
	m.taskTypes[taskType]++

	var alpha float64
	switch {
	case m.totalTasks < 10:
		alpha = 0.5
		m.learningPhase = true
	case m.totalTasks < 50:
		alpha = 0.3
		m.learningPhase = false
	default:
		alpha = 0.2
	}

	if success {
		m.successCount++
		m.consecutiveFailures = 0
	} else {
		m.failureCount++
		m.consecutiveFailures++
		m.lastFailureTime = time.Now()
	}

	m.responseTimeHistory.push(durationSeconds)
	if success {
		m.successHistory.push(1)
	} else {
		m.successHistory.push(0)
	}

	if m.avgResponseTime == 0 {
		m.avgResponseTime = durationSeconds
	} else {
		m.avgResponseTime = alpha*durationSeconds + (1-alpha)*m.avgResponseTime
	}

	if qualityScore != nil {
		m.qualityHistory.push(*qualityScore)
		if m.avgQualityScore == 0 {
			m.avgQualityScore = *qualityScore
		} else {
			m.avgQualityScore = alpha**qualityScore + (1-alpha)*m.avgQualityScore
		}
	}

	m.totalTokensUsed += tokensUsed
	m.totalCost += cost
	if m.totalTasks > 0 {
		m.costPerTask = m.totalCost / float64(m.totalTasks)
	}
	m.uptimePercentage = float64(m.successCount) / float64(m.totalTasks) * 100

	m.analyzeTrendLocked()
	m.detectSpecializationLocked()
	m.calculatePredictedSuccessLocked()
}

func (m *workerMetrics) analyzeTrendLocked() {
	if m.successHistory.len < 10 {
		m.performanceTrend = domain.TrendLearning
		return
	}
	recent := m.successHistory.lastN(10)
	var older []float64
	if m.successHistory.len >= 20 {
		all := m.successHistory.values()
		older = all[len(all)-20 : len(all)-10]
	} else {
		older = recent
	}

	recentSuccess := mean(recent)
	olderSuccess := mean(older)
	diff := recentSuccess - olderSuccess

	switch {
	case diff > 0.1:
		m.performanceTrend = domain.TrendImproving
	case diff < -0.1:
		m.performanceTrend = domain.TrendDegrading
	default:
		m.performanceTrend = domain.TrendStable
	}
}

func (m *workerMetrics) detectSpecializationLocked() {
	if m.totalTasks < 15 || len(m.taskTypes) == 0 {
		return
	}
	total := 0
	for _, c := range m.taskTypes {
		total += c
	}
	if total == 0 {
		return
	}

	var specialized []string
	maxCount := 0
	for taskType, count := range m.taskTypes {
		if count > maxCount {
			maxCount = count
		}
		percentage := float64(count) / float64(total) * 100
		if percentage > 40 {
			specialized = append(specialized, taskType)
		}
	}
	sort.Strings(specialized)
	m.optimalTaskTypes = specialized

	if len(specialized) > 0 {
		m.specializationScore = math.Min(100, float64(maxCount)/float64(total)*100)
	} else {
		m.specializationScore = 0
	}
}

func (m *workerMetrics) calculatePredictedSuccessLocked() {
	if m.successHistory.len < 5 {
		m.predictedSuccessRate = m.uptimePercentage
		return
	}
	recent := m.successHistory.lastN(5)
	weights := []float64{1.0, 1.2, 1.4, 1.6, 2.0}

	var weightedSum, weightTotal float64
	for i, s := range recent {
		w := weights[i]
		weightedSum += s * w
		weightTotal += w
	}
	m.predictedSuccessRate = (weightedSum / weightTotal) * 100
}

// Score computes the composite routing score for worker/taskType, ported
// field-for-field from get_worker_score. taskType may be empty to skip the
// expertise term.
func (t *Tracker) Score(workerName, taskType string) float64 {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalTasks == 0 {
		return 50
	}

	successScore := (m.predictedSuccessRate / 100) * 35

	var speedScore float64
	if m.avgResponseTime > 0 {
		baseSpeed := math.Min(25, (1/m.avgResponseTime)*100)
		if m.responseTimeHistory.len >= 10 {
			recentAvg := mean(m.responseTimeHistory.lastN(5))
			all := m.responseTimeHistory.values()
			olderAvg := mean(all[len(all)-10 : len(all)-5])
			if recentAvg < olderAvg {
				baseSpeed *= 1.1
			}
		}
		speedScore = baseSpeed
	}

	var qualityScore float64
	if m.avgQualityScore > 0 {
		baseQuality := (m.avgQualityScore / 10) * 20
		if m.qualityHistory.len >= 10 {
			recentQ := mean(m.qualityHistory.lastN(5))
			all := m.qualityHistory.values()
			olderQ := mean(all[len(all)-10 : len(all)-5])
			if recentQ > olderQ {
				baseQuality *= 1.1
			}
		}
		qualityScore = baseQuality
	}

	var expertiseScore float64
	if taskType != "" {
		if containsStr(m.optimalTaskTypes, taskType) {
			expertiseScore = 15
		} else if count, ok := m.taskTypes[taskType]; ok {
			expertiseScore = math.Min(15, (float64(count)/10)*15)
		}
	}

	var costScore float64
	if m.costPerTask > 0 {
		costRatio := 0.01 / math.Max(m.costPerTask, 0.001)
		costScore = math.Min(5, costRatio*5)
	}

	var failurePenalty float64
	if m.consecutiveFailures > 0 {
		if m.performanceTrend == domain.TrendDegrading {
			failurePenalty = math.Min(30, float64(m.consecutiveFailures)*10)
		} else {
			failurePenalty = math.Min(20, float64(m.consecutiveFailures)*5)
		}
	}

	var trendBonus float64
	switch {
	case m.performanceTrend == domain.TrendImproving:
		trendBonus = 5
	case m.performanceTrend == domain.TrendStable && m.totalTasks > 20:
		trendBonus = 3
	}

	total := successScore + speedScore + qualityScore + expertiseScore + costScore + trendBonus - failurePenalty
	return math.Max(0, math.Min(100, total))
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// IsHealthy is the tracker's own circuit-breaker check (distinct from, and
// narrower than, internal/health.Monitor's classification): self-tuning
// adaptive thresholds ported from is_worker_healthy.
func (t *Tracker) IsHealthy(workerName string, maxConsecutiveFailures int) bool {
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = 3
	}
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()

	maxFailures := maxConsecutiveFailures
	switch {
	case m.totalTasks < 5:
		maxFailures = maxConsecutiveFailures + 2
	case m.performanceTrend == domain.TrendImproving:
		maxFailures = maxConsecutiveFailures + 1
	}
	if m.consecutiveFailures >= maxFailures {
		return false
	}

	if m.predictedSuccessRate < 40 {
		return false
	}

	if m.performanceTrend == domain.TrendDegrading {
		if m.totalTasks > 10 && m.uptimePercentage < 60 {
			return false
		}
	} else if m.totalTasks > 10 && m.uptimePercentage < 50 {
		return false
	}

	if !m.lastFailureTime.IsZero() {
		cooldown := 5 * time.Minute
		if m.performanceTrend == domain.TrendDegrading {
			cooldown = 10 * time.Minute
		}
		if time.Since(m.lastFailureTime) < cooldown {
			return false
		}
	}

	return true
}

// ResetWorker clears failure state, e.g. after an operator-initiated
// restart: consecutive failures, the last failure time, and the predicted
// success rate (back to its initial 100 until the next LogResult).
func (t *Tracker) ResetWorker(workerName string) {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures = 0
	m.lastFailureTime = time.Time{}
	m.predictedSuccessRate = 100
}

// LastFailureTime implements health.TrendProvider's cooldown lookup.
func (t *Tracker) LastFailureTime(workerName string) (time.Time, bool) {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastFailureTime.IsZero() {
		return time.Time{}, false
	}
	return m.lastFailureTime, true
}

// Trend implements health.TrendProvider.
func (t *Tracker) Trend(workerName string) domain.Trend {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.performanceTrend
}

// PredictedSuccess implements health.TrendProvider.
func (t *Tracker) PredictedSuccess(workerName string) float64 {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictedSuccessRate
}

// UptimePercentage implements health.TrendProvider.
func (t *Tracker) UptimePercentage(workerName string) float64 {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uptimePercentage
}

// TotalTasks implements health.TrendProvider.
func (t *Tracker) TotalTasks(workerName string) int {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalTasks
}

// Stats returns a snapshot of one worker's metrics.
func (t *Tracker) Stats(workerName string) Snapshot {
	m := t.getOrCreate(workerName)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(workerName)
}

func (m *workerMetrics) snapshotLocked(workerName string) Snapshot {
	taskTypes := make(map[string]int, len(m.taskTypes))
	for k, v := range m.taskTypes {
		taskTypes[k] = v
	}
	optimal := append([]string(nil), m.optimalTaskTypes...)
	return Snapshot{
		WorkerName:           workerName,
		SuccessCount:         m.successCount,
		FailureCount:         m.failureCount,
		TotalTasks:           m.totalTasks,
		AvgResponseTime:      m.avgResponseTime,
		AvgQualityScore:      m.avgQualityScore,
		TotalTokensUsed:      m.totalTokensUsed,
		TotalCost:            m.totalCost,
		ConsecutiveFailures:  m.consecutiveFailures,
		UptimePercentage:     m.uptimePercentage,
		CostPerTask:          m.costPerTask,
		PredictedSuccessRate: m.predictedSuccessRate,
		PerformanceTrend:     m.performanceTrend,
		OptimalTaskTypes:     optimal,
		LearningPhase:        m.learningPhase,
		SpecializationScore:  m.specializationScore,
		TaskTypes:            taskTypes,
	}
}

// AllStats returns every tracked worker's snapshot, keyed by name.
func (t *Tracker) AllStats() map[string]Snapshot {
	out := make(map[string]Snapshot)
	t.workers.Range(func(key, value any) bool {
		name := key.(string)
		m := value.(*workerMetrics)
		m.mu.Lock()
		out[name] = m.snapshotLocked(name)
		m.mu.Unlock()
		return true
	})
	return out
}

// Insights mirrors get_system_insights's shape.
type Insights struct {
	TotalWorkers      int
	HealthyWorkers    int
	DegradingWorkers  []DegradingWorker
	TopPerformers     []RankedWorker
	Recommendations   []string
	TotalCost         float64
	AvgCostPerTask    float64
	MostEfficient     string
	LeastEfficient    string
	SpecializationMap map[string][]string
}

type DegradingWorker struct {
	Name             string
	PredictedSuccess float64
	RecentFailures   int
}

type RankedWorker struct {
	Name  string
	Score float64
}

// SystemInsights computes the system-wide recommendation summary, ported
// from get_system_insights.
func (t *Tracker) SystemInsights() Insights {
	snapshots := t.AllStats()

	insights := Insights{
		SpecializationMap: make(map[string][]string),
	}
	insights.TotalWorkers = len(snapshots)

	var ranked []RankedWorker
	var byCost []RankedWorker
	var totalTasks int

	for name, s := range snapshots {
		if t.IsHealthy(name, 3) {
			insights.HealthyWorkers++
		}
		if s.PerformanceTrend == domain.TrendDegrading {
			insights.DegradingWorkers = append(insights.DegradingWorkers, DegradingWorker{
				Name:             name,
				PredictedSuccess: s.PredictedSuccessRate,
				RecentFailures:   s.ConsecutiveFailures,
			})
		}
		insights.TotalCost += s.TotalCost
		if len(s.OptimalTaskTypes) > 0 {
			insights.SpecializationMap[name] = s.OptimalTaskTypes
		}
		ranked = append(ranked, RankedWorker{Name: name, Score: t.Score(name, "")})
		totalTasks += s.TotalTasks
		if s.TotalTasks > 5 {
			byCost = append(byCost, RankedWorker{Name: name, Score: s.CostPerTask})
		}
	}

	sort.Slice(insights.DegradingWorkers, func(i, j int) bool { return insights.DegradingWorkers[i].Name < insights.DegradingWorkers[j].Name })

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	insights.TopPerformers = ranked

	if totalTasks > 0 {
		insights.AvgCostPerTask = insights.TotalCost / float64(totalTasks)
	}

	if len(byCost) > 0 {
		sort.Slice(byCost, func(i, j int) bool { return byCost[i].Score < byCost[j].Score })
		insights.MostEfficient = byCost[0].Name
		insights.LeastEfficient = byCost[len(byCost)-1].Name
	}

	if len(insights.DegradingWorkers) > 0 {
		insights.Recommendations = append(insights.Recommendations,
			"worker(s) showing degraded performance - consider restart")
	}
	if insights.HealthyWorkers < 2 {
		insights.Recommendations = append(insights.Recommendations,
			"low worker availability - consider starting more workers")
	}
	if len(insights.SpecializationMap) == 0 && totalTasks > 50 {
		insights.Recommendations = append(insights.Recommendations,
			"no specialized workers detected - consider dedicated workers per task type")
	}
	if len(insights.Recommendations) == 0 {
		insights.Recommendations = append(insights.Recommendations, "system operating optimally")
	}

	return insights
}

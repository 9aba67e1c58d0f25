// Package prometheus wires the enrichment pipeline's operational metrics
// into a Prometheus registry.  A nil *Collector is valid everywhere and
// records nothing, so library code never has to guard its observations.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every pipeline metric family.
type Collector struct {
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	candidatesTotal    *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	stageFailures      *prometheus.CounterVec
	literatureCache    *prometheus.CounterVec
	llmCallsTotal      *prometheus.CounterVec
	reportEntriesTotal prometheus.Counter
}

// NewCollector constructs and registers the metric families.  Registration
// panics on duplicate names, matching promauto behaviour, so each process
// constructs at most one Collector per registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of one pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_candidates_total",
			Help:      "Processed candidates by final state.",
		}, []string{"state"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Wall time of one enrichment stage for one candidate.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_failures_total",
			Help:      "Stage failures by stage and error code.",
		}, []string{"stage", "code"}),
		literatureCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "literature_cache_requests_total",
			Help:      "Literature cache lookups by result.",
		}, []string{"result"}),
		llmCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM capability invocations by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		reportEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_entries_total",
			Help:      "Report entries emitted across all runs.",
		}),
	}
	reg.MustRegister(
		c.runsTotal, c.runDuration, c.candidatesTotal, c.stageDuration,
		c.stageFailures, c.literatureCache, c.llmCallsTotal, c.reportEntriesTotal,
	)
	return c
}

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(outcome string, elapsed time.Duration, entries int) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(elapsed.Seconds())
	c.reportEntriesTotal.Add(float64(entries))
}

// ObserveCandidate records one candidate reaching a terminal state.
func (c *Collector) ObserveCandidate(state string) {
	if c == nil {
		return
	}
	c.candidatesTotal.WithLabelValues(state).Inc()
}

// ObserveStage records one stage execution.
func (c *Collector) ObserveStage(stage string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveStageFailure records one stage failure.
func (c *Collector) ObserveStageFailure(stage, code string) {
	if c == nil {
		return
	}
	c.stageFailures.WithLabelValues(stage, code).Inc()
}

// ObserveLiteratureCache records one cache lookup result ("hit" | "miss").
func (c *Collector) ObserveLiteratureCache(result string) {
	if c == nil {
		return
	}
	c.literatureCache.WithLabelValues(result).Inc()
}

// ObserveLLMCall records one capability invocation.
func (c *Collector) ObserveLLMCall(purpose, outcome string) {
	if c == nil {
		return
	}
	c.llmCallsTotal.WithLabelValues(purpose, outcome).Inc()
}

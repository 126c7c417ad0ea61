package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	budgetChecksTotal  *prometheus.CounterVec
	budgetDenialsTotal *prometheus.CounterVec
	reservationsActive prometheus.Gauge
	tokensCommitted    *prometheus.CounterVec

	governanceChecksTotal     *prometheus.CounterVec
	governanceViolationsTotal *prometheus.CounterVec

	agentRunTotal    *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentIterations  *prometheus.HistogramVec

	llmCallTotal    *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	routingDecisionsTotal *prometheus.CounterVec
	activeSessions        prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			budgetChecksTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "budget_checks_total",
					Help: "Total budget checks by outcome.",
				},
				[]string{"outcome"},
			),
			budgetDenialsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "budget_denials_total",
					Help: "Total budget denials by scope.",
				},
				[]string{"scope"},
			),
			reservationsActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "budget_reservations_active",
					Help: "Current number of unsettled token reservations.",
				},
			),
			tokensCommitted: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "budget_tokens_committed_total",
					Help: "Total tokens committed to the ledger by agent.",
				},
				[]string{"agent"},
			),
			governanceChecksTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "governance_checks_total",
					Help: "Total governance checks by direction and outcome.",
				},
				[]string{"direction", "outcome"},
			),
			governanceViolationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "governance_violations_total",
					Help: "Total governance violations by stage.",
				},
				[]string{"stage"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total agent runs by agent and status.",
				},
				[]string{"agent", "status"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_duration_seconds",
					Help:    "Agent run duration in seconds by agent.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			agentIterations: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_loop_iterations",
					Help:    "Tool-loop iterations per agent run.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
				[]string{"agent"},
			),
			llmCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_call_total",
					Help: "Total LLM calls by provider, model and status.",
				},
				[]string{"provider", "model", "status"},
			),
			llmCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_call_duration_seconds",
					Help:    "LLM call duration in seconds by provider and model.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider", "model"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			routingDecisionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "routing_decisions_total",
					Help: "Total routing decisions by target agent.",
				},
				[]string{"target"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
		}

		prometheus.MustRegister(
			m.budgetChecksTotal,
			m.budgetDenialsTotal,
			m.reservationsActive,
			m.tokensCommitted,
			m.governanceChecksTotal,
			m.governanceViolationsTotal,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentIterations,
			m.llmCallTotal,
			m.llmCallDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.routingDecisionsTotal,
			m.activeSessions,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered registers the module metrics with the default registry.
// Safe to call from every package that records metrics.
func EnsureRegistered() {
	getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordBudgetCheck(allowed bool, scope string) {
	m := getMetrics()
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.budgetChecksTotal.WithLabelValues(outcome).Inc()
	if !allowed && scope != "" {
		m.budgetDenialsTotal.WithLabelValues(scope).Inc()
	}
}

func SetActiveReservations(count int) {
	getMetrics().reservationsActive.Set(float64(count))
}

func RecordTokensCommitted(agent string, tokens int) {
	if agent == "" {
		agent = "unknown"
	}
	getMetrics().tokensCommitted.WithLabelValues(agent).Add(float64(tokens))
}

func RecordGovernanceCheck(direction string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	getMetrics().governanceChecksTotal.WithLabelValues(direction, outcome).Inc()
}

func RecordGovernanceViolation(stage string) {
	getMetrics().governanceViolationsTotal.WithLabelValues(stage).Inc()
}

func RecordAgentRun(agent string, duration time.Duration, iterations int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.agentRunTotal.WithLabelValues(agent, status).Inc()
	m.agentRunDuration.WithLabelValues(agent).Observe(duration.Seconds())
	m.agentIterations.WithLabelValues(agent).Observe(float64(iterations))
}

func RecordLLMCall(provider, model string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.llmCallTotal.WithLabelValues(provider, model, status).Inc()
	m.llmCallDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordRoutingDecision(target string) {
	if target == "" {
		target = "direct"
	}
	getMetrics().routingDecisionsTotal.WithLabelValues(target).Inc()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

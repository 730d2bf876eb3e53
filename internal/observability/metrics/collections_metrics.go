package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/collections/internal/collections/domain"
)

// Config labels every collector with the owning service.
type Config struct {
	ServiceName string
	Environment string
}

const (
	CacheResultHit   = "hit"
	CacheResultMiss  = "miss"
	CacheResultError = "error"
)

const actionTypeOther = "other"

// CollectionsMetrics exports the collections summary and write counters.
type CollectionsMetrics struct {
	workflowsActive  *prometheus.GaugeVec
	criticalOrHigh   *prometheus.GaugeVec
	promises         *prometheus.GaugeVec
	amountAtRisk     *prometheus.GaugeVec
	actionsDueToday  *prometheus.GaugeVec
	actionsRecorded  *prometheus.CounterVec
	promisesCreated  prometheus.Counter
	promisesResolved *prometheus.CounterVec
	snapshotCache    *prometheus.CounterVec
	ledgerErrors     *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New(cfg Config) *CollectionsMetrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewWithRegisterer(registerer prometheus.Registerer, cfg Config) *CollectionsMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels))
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels))
	}

	return &CollectionsMetrics{
		workflowsActive: gauge("collections_workflows_active", "Open invoices with a derived workflow.", "org_id"),
		criticalOrHigh:  gauge("collections_workflows_critical_or_high", "Workflows classified critical or high.", "org_id"),
		promises:        gauge("collections_promises", "Payment promises by derived state.", "org_id", "state"),
		amountAtRisk:    gauge("collections_amount_at_risk", "Sum of invoice amounts more than 30 days overdue.", "org_id"),
		actionsDueToday: gauge("collections_actions_due_today", "Workflows whose next action falls on today.", "org_id"),
		actionsRecorded: counter("collections_actions_recorded_total", "Collection actions appended to the ledger.", "action_type"),
		promisesCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "collections_promises_created_total",
			Help:        "Payment promises created.",
			ConstLabels: constLabels,
		})),
		promisesResolved: counter("collections_promises_resolved_total", "Payment promise resolutions by outcome.", "outcome"),
		snapshotCache:    counter("collections_snapshot_cache_total", "Workflow snapshot cache lookups by result.", "result"),
		ledgerErrors:     counter("collections_ledger_errors_total", "Ledger failures by operation and reason.", "op", "reason"),
	}
}

// ObserveSummary publishes the latest aggregate for a tenant.
func (m *CollectionsMetrics) ObserveSummary(orgID string, summary domain.Metrics) {
	if m == nil {
		return
	}
	m.workflowsActive.WithLabelValues(orgID).Set(float64(summary.TotalWorkflows))
	m.criticalOrHigh.WithLabelValues(orgID).Set(float64(summary.CriticalOrHigh))
	m.promises.WithLabelValues(orgID, string(domain.PromiseStatePending)).Set(float64(summary.PendingPromises))
	m.promises.WithLabelValues(orgID, string(domain.PromiseStateBroken)).Set(float64(summary.BrokenPromises))
	m.promises.WithLabelValues(orgID, string(domain.PromiseStatePartial)).Set(float64(summary.PartialPromises))
	m.promises.WithLabelValues(orgID, string(domain.PromiseStateFulfilled)).Set(float64(summary.FulfilledPromises))
	m.amountAtRisk.WithLabelValues(orgID).Set(summary.AmountAtRisk.InexactFloat64())
	m.actionsDueToday.WithLabelValues(orgID).Set(float64(summary.ActionsDueToday))
}

// IncActionRecorded counts a recorded action. Free-form types collapse into
// "other" to keep the label bounded.
func (m *CollectionsMetrics) IncActionRecorded(actionType string) {
	if m == nil {
		return
	}
	m.actionsRecorded.WithLabelValues(actionTypeLabel(actionType)).Inc()
}

func (m *CollectionsMetrics) IncPromiseCreated() {
	if m == nil {
		return
	}
	m.promisesCreated.Inc()
}

func (m *CollectionsMetrics) IncPromiseResolved(outcome domain.PromiseState) {
	if m == nil {
		return
	}
	m.promisesResolved.WithLabelValues(string(outcome)).Inc()
}

func (m *CollectionsMetrics) IncSnapshotCache(result string) {
	if m == nil {
		return
	}
	m.snapshotCache.WithLabelValues(result).Inc()
}

func (m *CollectionsMetrics) IncLedgerError(op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(op, ClassifyLedgerReason(err)).Inc()
}

func actionTypeLabel(actionType string) string {
	normalized := domain.ActionType(strings.ToLower(strings.TrimSpace(actionType)))
	for _, known := range domain.StageActionTypes {
		if normalized == known {
			return string(known)
		}
	}
	return actionTypeOther
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "collections"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// register reuses an identical collector when one is already registered, so
// building the module twice in one process does not panic.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newTestMetrics(t *testing.T) (*CollectionsMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewWithRegisterer(registry, Config{ServiceName: "collections", Environment: "test"}), registry
}

func TestObserveSummary(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveSummary("42", domain.Metrics{
		TotalWorkflows:    4,
		CriticalOrHigh:    2,
		PendingPromises:   1,
		BrokenPromises:    3,
		PartialPromises:   1,
		FulfilledPromises: 5,
		AmountAtRisk:      decimal.RequireFromString("2500.50"),
		ActionsDueToday:   2,
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.workflowsActive.WithLabelValues("42")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.criticalOrHigh.WithLabelValues("42")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.promises.WithLabelValues("42", "broken")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.promises.WithLabelValues("42", "fulfilled")))
	assert.Equal(t, 2500.5, testutil.ToFloat64(m.amountAtRisk.WithLabelValues("42")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.actionsDueToday.WithLabelValues("42")))
}

func TestIncActionRecordedBoundsLabel(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.IncActionRecorded("call")
	m.IncActionRecorded(" CALL ")
	m.IncActionRecorded("site visit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actionsRecorded.WithLabelValues("call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actionsRecorded.WithLabelValues("other")))
}

func TestCountersAndNilReceiver(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.IncPromiseCreated()
	m.IncPromiseResolved(domain.PromiseStateFulfilled)
	m.IncSnapshotCache(CacheResultHit)
	m.IncSnapshotCache(CacheResultHit)
	m.IncLedgerError("list_open_invoices", context.DeadlineExceeded)
	m.IncLedgerError("list_open_invoices", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.promisesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promisesResolved.WithLabelValues("fulfilled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerErrors.WithLabelValues("list_open_invoices", LedgerReasonDeadlineExceeded)))

	var nilMetrics *CollectionsMetrics
	assert.NotPanics(t, func() {
		nilMetrics.IncPromiseCreated()
		nilMetrics.ObserveSummary("1", domain.Metrics{})
	})
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewWithRegisterer(registry, Config{})
	second := NewWithRegisterer(registry, Config{})

	first.IncPromiseCreated()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.promisesCreated))
}

func TestHTTPMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(registry, Config{})

	m.Observe("GET", "/api/collections/workflows", 200, 20*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
}

func TestClassifyLedgerReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: LedgerReasonDeadlineExceeded},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: LedgerReasonDBLockTimeout},
		{name: "serialization", err: fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40001"}), want: LedgerReasonSerializationFailure},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: LedgerReasonUniqueViolation},
		{name: "invalid db", err: gorm.ErrInvalidDB, want: LedgerReasonConnection},
		{name: "unknown", err: errors.New("boom"), want: LedgerReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLedgerReason(tc.err))
		})
	}
}

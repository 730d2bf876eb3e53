package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	collectionsdomain "github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/config"
	"github.com/smallbiznis/collections/internal/observability"
	obsmetrics "github.com/smallbiznis/collections/internal/observability/metrics"
	"github.com/smallbiznis/collections/internal/orgcontext"
	"github.com/smallbiznis/collections/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	workflowsReq collectionsdomain.ListWorkflowsRequest
	promiseReq   collectionsdomain.CreatePromiseRequest
	actionReq    collectionsdomain.RecordActionRequest
	actionsReq   collectionsdomain.ListActionsRequest
	partialPaid  decimal.Decimal
	resolvedID   string
	orgSeen      string

	err          error
	actionStatus string
}

func (f *fakeService) captureOrg(ctx context.Context) {
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
		f.orgSeen = orgID.String()
	}
}

func (f *fakeService) ListWorkflows(ctx context.Context, req collectionsdomain.ListWorkflowsRequest) (collectionsdomain.ListWorkflowsResponse, error) {
	f.captureOrg(ctx)
	f.workflowsReq = req
	if f.err != nil {
		return collectionsdomain.ListWorkflowsResponse{}, f.err
	}
	return collectionsdomain.ListWorkflowsResponse{
		Workflows: []collectionsdomain.WorkflowInstance{{
			InvoiceID:     101,
			ClientID:      11,
			InvoiceNumber: "INV-101",
			DaysOverdue:   10,
			Priority:      collectionsdomain.PriorityMedium,
		}},
		HasData: true,
	}, nil
}

func (f *fakeService) GetMetrics(ctx context.Context) (collectionsdomain.MetricsResponse, error) {
	f.captureOrg(ctx)
	if f.err != nil {
		return collectionsdomain.MetricsResponse{}, f.err
	}
	return collectionsdomain.MetricsResponse{Metrics: collectionsdomain.Metrics{TotalWorkflows: 3}}, nil
}

func (f *fakeService) GetConfig(context.Context) collectionsdomain.WorkflowConfig {
	return config.DefaultWorkflowConfig()
}

func (f *fakeService) CreatePromise(ctx context.Context, req collectionsdomain.CreatePromiseRequest) (collectionsdomain.PaymentPromise, error) {
	f.captureOrg(ctx)
	f.promiseReq = req
	if f.err != nil {
		return collectionsdomain.PaymentPromise{}, f.err
	}
	return collectionsdomain.PaymentPromise{ID: 500, Amount: req.Amount, PromisedDate: req.PromisedDate}, nil
}

func (f *fakeService) resolve(id string) (collectionsdomain.PaymentPromise, error) {
	f.resolvedID = id
	if f.err != nil {
		return collectionsdomain.PaymentPromise{}, f.err
	}
	return collectionsdomain.PaymentPromise{ID: 500}, nil
}

func (f *fakeService) MarkPromiseFulfilled(_ context.Context, id string) (collectionsdomain.PaymentPromise, error) {
	return f.resolve(id)
}

func (f *fakeService) MarkPromiseFailed(_ context.Context, id string) (collectionsdomain.PaymentPromise, error) {
	return f.resolve(id)
}

func (f *fakeService) MarkPromisePartial(_ context.Context, id string, paid decimal.Decimal) (collectionsdomain.PaymentPromise, error) {
	f.partialPaid = paid
	return f.resolve(id)
}

func (f *fakeService) ListPromises(context.Context, collectionsdomain.ListPromisesRequest) (collectionsdomain.ListPromisesResponse, error) {
	if f.err != nil {
		return collectionsdomain.ListPromisesResponse{}, f.err
	}
	return collectionsdomain.ListPromisesResponse{}, nil
}

func (f *fakeService) RecordAction(ctx context.Context, req collectionsdomain.RecordActionRequest) (collectionsdomain.RecordActionResponse, error) {
	f.captureOrg(ctx)
	f.actionReq = req
	if f.err != nil {
		return collectionsdomain.RecordActionResponse{}, f.err
	}
	status := f.actionStatus
	if status == "" {
		status = collectionsdomain.ActionStatusRecorded
	}
	return collectionsdomain.RecordActionResponse{Status: status}, nil
}

func (f *fakeService) ListActions(_ context.Context, req collectionsdomain.ListActionsRequest) (collectionsdomain.ListActionsResponse, error) {
	f.actionsReq = req
	if f.err != nil {
		return collectionsdomain.ListActionsResponse{}, f.err
	}
	return collectionsdomain.ListActionsResponse{}, nil
}

func newTestServer(t *testing.T, svc collectionsdomain.Service, limiter *ratelimit.WriteLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(
		observability.Config{Environment: "test"},
		obsmetrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry(), obsmetrics.Config{ServiceName: "collections"}),
	)
	srv := NewServer(ServerParams{
		Gin:            engine,
		Log:            zap.NewNop(),
		CollectionsSvc: svc,
		WriteLimiter:   limiter,
	})
	return srv.Engine()
}

func doRequest(engine *gin.Engine, method, path, body string, withOrg bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if withOrg {
		req.Header.Set(orgcontext.HeaderOrgID, "1001")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthProbe(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMissingOrgHeaderIsRejected(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodGet, "/api/collections/workflows", "", false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "organization", payload.Errors[0].Field)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodGet, "/api/nope", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWorkflowsPassesFilters(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(t, svc, nil)

	rec := doRequest(engine, http.MethodGet, "/api/collections/workflows?due_from=2024-03-01&due_to=2024-03-31&client_id=11&priority=high", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "1001", svc.orgSeen)
	require.NotNil(t, svc.workflowsReq.DueFrom)
	require.NotNil(t, svc.workflowsReq.DueTo)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(*svc.workflowsReq.DueFrom))
	assert.Equal(t, "11", svc.workflowsReq.ClientID)
	assert.Equal(t, "high", svc.workflowsReq.Priority)

	var resp struct {
		Workflows []map[string]any `json:"workflows"`
		HasData   bool             `json:"has_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasData)
	require.Len(t, resp.Workflows, 1)
	assert.Equal(t, "INV-101", resp.Workflows[0]["invoice_number"])
}

func TestListWorkflowsRejectsBadDate(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodGet, "/api/collections/workflows?due_from=yesterday", "", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "due_from", decodeError(t, rec).Errors[0].Field)
}

func TestCreatePromise(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(t, svc, nil)

	rec := doRequest(engine, http.MethodPost, "/api/collections/promises",
		`{"client_id":"11","invoice_id":"101","amount":"250.75","promised_date":"2024-03-20","contact_name":"Dana"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "11", svc.promiseReq.ClientID)
	assert.Equal(t, "101", svc.promiseReq.InvoiceID)
	assert.True(t, decimal.RequireFromString("250.75").Equal(svc.promiseReq.Amount))
	assert.True(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC).Equal(svc.promiseReq.PromisedDate))
	assert.Equal(t, "Dana", svc.promiseReq.ContactName)
}

func TestCreatePromiseBadRequests(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodPost, "/api/collections/promises", `{"amount":`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request", decodeError(t, rec).Errors[0].Field)

	rec = doRequest(engine, http.MethodPost, "/api/collections/promises", `{"client_id":"11","amount":"10"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "promised_date", decodeError(t, rec).Errors[0].Field)
}

func TestPromiseResolutionRoutes(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(t, svc, nil)

	rec := doRequest(engine, http.MethodPost, "/api/collections/promises/500/fulfill", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "500", svc.resolvedID)

	rec = doRequest(engine, http.MethodPost, "/api/collections/promises/501/fail", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "501", svc.resolvedID)

	rec = doRequest(engine, http.MethodPost, "/api/collections/promises/502/partial", `{"paid_amount":"40"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "502", svc.resolvedID)
	assert.True(t, decimal.NewFromInt(40).Equal(svc.partialPaid))
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", collectionsdomain.ErrPromiseNotFound, http.StatusNotFound, "not_found"},
		{"already resolved", collectionsdomain.ErrPromiseAlreadyResolved, http.StatusConflict, "conflict"},
		{"resolution busy", collectionsdomain.ErrPromiseResolutionBusy, http.StatusConflict, "conflict"},
		{"ledger down", collectionsdomain.NewLedgerError("update_promise", context.DeadlineExceeded), http.StatusServiceUnavailable, "service_unavailable"},
		{"invalid amount", collectionsdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestServer(t, &fakeService{err: tc.err}, nil)

			rec := doRequest(engine, http.MethodPost, "/api/collections/promises/500/fulfill", "", true)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.typ, decodeError(t, rec).Type)
		})
	}
}

func TestRecordActionStatusCodes(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(t, svc, nil)
	body := `{"client_id":"11","action_type":"call","description":"Called AP","next_action_date":"2024-03-22","idempotency_key":"k1"}`

	rec := doRequest(engine, http.MethodPost, "/api/collections/actions", body, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "call", svc.actionReq.ActionType)
	assert.Equal(t, "k1", svc.actionReq.IdempotencyKey)
	require.NotNil(t, svc.actionReq.NextActionDate)

	svc.actionStatus = collectionsdomain.ActionStatusDuplicate
	rec = doRequest(engine, http.MethodPost, "/api/collections/actions", body, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListActionsLimit(t *testing.T) {
	svc := &fakeService{}
	engine := newTestServer(t, svc, nil)

	rec := doRequest(engine, http.MethodGet, "/api/collections/actions?invoice_id=101&limit=5", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.actionsReq.Limit)
	assert.Equal(t, "101", svc.actionsReq.InvoiceID)

	rec = doRequest(engine, http.MethodGet, "/api/collections/actions?limit=ten", "", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decodeError(t, rec).Errors[0].Field)
}

func TestSummaryAndConfig(t *testing.T) {
	engine := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(engine, http.MethodGet, "/api/collections/summary", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_workflows":3`)

	rec = doRequest(engine, http.MethodGet, "/api/collections/config", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pre_due")
}

func TestWriteRateLimitPerTenant(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewWriteLimiter(config.Config{WriteRate: 0.01, WriteBurst: 1}, client)
	require.True(t, limiter.Enabled())
	engine := newTestServer(t, &fakeService{}, limiter)

	rec := doRequest(engine, http.MethodPost, "/api/collections/promises/500/fulfill", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(engine, http.MethodPost, "/api/collections/promises/500/fulfill", "", true)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = doRequest(engine, http.MethodGet, "/api/collections/workflows", "", true)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not budgeted")
}

func TestWriteRateLimitFailsOpenWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewWriteLimiter(config.Config{WriteRate: 1, WriteBurst: 1}, client)
	engine := newTestServer(t, &fakeService{}, limiter)
	mr.Close()

	rec := doRequest(engine, http.MethodPost, "/api/collections/promises/500/fail", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

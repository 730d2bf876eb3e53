package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collections/internal/cache"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/collections/engine"
	"github.com/smallbiznis/collections/internal/config"
	"github.com/smallbiznis/collections/internal/observability/logger"
	"github.com/smallbiznis/collections/internal/observability/metrics"
	"github.com/smallbiznis/collections/internal/observability/tracing"
	"github.com/smallbiznis/collections/internal/orgcontext"
	"github.com/smallbiznis/collections/internal/ratelimit"
	"github.com/smallbiznis/collections/pkg/rls"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	Workflow *config.WorkflowConfigHolder

	Cache   cache.SnapshotCache         `optional:"true"`
	Metrics *metrics.CollectionsMetrics `optional:"true"`
	Locker  *ratelimit.Locker           `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	workflow *config.WorkflowConfigHolder

	cache   cache.SnapshotCache
	metrics *metrics.CollectionsMetrics
	locker  *ratelimit.Locker
}

func NewService(p Params) domain.Service {
	workflow := p.Workflow
	if workflow == nil {
		workflow = config.NewStaticWorkflowConfigHolder(config.DefaultWorkflowConfig())
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	return &Service{
		db:       p.DB,
		log:      p.Log.Named("collections.service"),
		clock:    clk,
		genID:    p.GenID,
		repo:     p.Repo,
		workflow: workflow,
		cache:    p.Cache,
		metrics:  p.Metrics,
		locker:   p.Locker,
	}
}

func (s *Service) ListWorkflows(ctx context.Context, req domain.ListWorkflowsRequest) (resp domain.ListWorkflowsResponse, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListWorkflowsResponse{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.ListWorkflows", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	filter, err := parseInvoiceFilter(req)
	if err != nil {
		return domain.ListWorkflowsResponse{}, err
	}
	var priority domain.Priority
	if raw := strings.TrimSpace(req.Priority); raw != "" {
		parsed, ok := domain.ParsePriority(raw)
		if !ok {
			return domain.ListWorkflowsResponse{}, domain.ErrInvalidPriority
		}
		priority = parsed
	}

	var snap engine.Snapshot
	if filter == (domain.InvoiceFilter{}) {
		snap, err = s.loadSnapshot(ctx, orgID)
	} else {
		snap, err = s.readSnapshot(ctx, orgID, filter)
	}
	if err != nil {
		return domain.ListWorkflowsResponse{}, err
	}

	now := s.clock.Now().UTC()
	instances := engine.BuildInstances(snap, s.workflow.Get(), now)
	if priority != "" {
		filtered := make([]domain.WorkflowInstance, 0, len(instances))
		for _, inst := range instances {
			if inst.Priority == priority {
				filtered = append(filtered, inst)
			}
		}
		instances = filtered
	}

	span.SetAttributes(attribute.Int("workflow_count", len(instances)))
	return domain.ListWorkflowsResponse{
		Workflows:   instances,
		HasData:     len(instances) > 0,
		GeneratedAt: now,
	}, nil
}

func (s *Service) GetMetrics(ctx context.Context) (resp domain.MetricsResponse, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.MetricsResponse{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.GetMetrics", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	snap, err := s.loadSnapshot(ctx, orgID)
	if err != nil {
		return domain.MetricsResponse{}, err
	}

	now := s.clock.Now().UTC()
	instances := engine.BuildInstances(snap, s.workflow.Get(), now)
	summary := engine.Aggregate(instances, snap.Promises, now)
	s.metrics.ObserveSummary(orgID.String(), summary)

	return domain.MetricsResponse{Metrics: summary, GeneratedAt: now}, nil
}

func (s *Service) GetConfig(ctx context.Context) domain.WorkflowConfig {
	return s.workflow.Get()
}

func parseInvoiceFilter(req domain.ListWorkflowsRequest) (domain.InvoiceFilter, error) {
	var filter domain.InvoiceFilter
	if req.DueFrom != nil {
		from := engine.StartOfDay(*req.DueFrom)
		filter.DueFrom = &from
	}
	if req.DueTo != nil {
		// Inclusive of the whole final day.
		to := engine.StartOfDay(*req.DueTo).Add(24*time.Hour - time.Nanosecond)
		filter.DueTo = &to
	}
	if filter.DueFrom != nil && filter.DueTo != nil && filter.DueFrom.After(*filter.DueTo) {
		return domain.InvoiceFilter{}, domain.ErrInvalidDateRange
	}
	clientID, err := parseOptionalID(req.ClientID, domain.ErrInvalidClientID)
	if err != nil {
		return domain.InvoiceFilter{}, err
	}
	filter.ClientID = clientID
	return filter, nil
}

// loadSnapshot serves the unfiltered tenant snapshot through the cache.
// The fill is tagged with the generation seen before the ledger read, so a
// write that lands mid-read keeps its effect. Cache failures are logged and
// fall through to the ledger.
func (s *Service) loadSnapshot(ctx context.Context, orgID snowflake.ID) (engine.Snapshot, error) {
	var (
		gen      int64
		fillable bool
	)
	if s.cache != nil {
		snap, observed, ok, err := s.cache.Get(ctx, orgID)
		switch {
		case err != nil:
			s.metrics.IncSnapshotCache(metrics.CacheResultError)
			logger.WithContext(ctx, s.log).Warn("snapshot cache read failed", zap.Error(err))
		case ok:
			s.metrics.IncSnapshotCache(metrics.CacheResultHit)
			return snap, nil
		default:
			s.metrics.IncSnapshotCache(metrics.CacheResultMiss)
			gen, fillable = observed, true
		}
	}

	snap, err := s.readSnapshot(ctx, orgID, domain.InvoiceFilter{})
	if err != nil {
		return engine.Snapshot{}, err
	}

	if fillable {
		if err := s.cache.Set(ctx, orgID, gen, snap); err != nil {
			logger.WithContext(ctx, s.log).Warn("snapshot cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

// readSnapshot reads invoices, the full promise history and action counts
// in one tenant-scoped transaction. It never returns a partial snapshot.
func (s *Service) readSnapshot(ctx context.Context, orgID snowflake.ID, filter domain.InvoiceFilter) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := s.inTenant(ctx, orgID, "read_snapshot", func(tx *gorm.DB) error {
		invoices, err := s.repo.ListOpenInvoices(ctx, tx, orgID, filter)
		if err != nil {
			return s.ledgerError("list_open_invoices", err)
		}
		promises, err := s.repo.ListPromises(ctx, tx, orgID, domain.PromiseFilter{ClientID: filter.ClientID})
		if err != nil {
			return s.ledgerError("list_promises", err)
		}
		counts, err := s.repo.CountActions(ctx, tx, orgID)
		if err != nil {
			return s.ledgerError("count_actions", err)
		}
		snap = engine.Snapshot{Invoices: invoices, Promises: promises, ActionCounts: counts}
		return nil
	})
	if err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}

// inTenant runs fn in a transaction scoped to orgID. Errors returned by fn
// pass through untouched; failures of the transaction itself are ledger
// errors.
func (s *Service) inTenant(ctx context.Context, orgID snowflake.ID, op string, fn func(tx *gorm.DB) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, orgID); err != nil {
			fnErr = s.ledgerError(op+".tenant", err)
			return fnErr
		}
		fnErr = fn(tx)
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return s.ledgerError(op, err)
}

func (s *Service) ledgerError(op string, err error) error {
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) {
		return err
	}
	s.metrics.IncLedgerError(op, err)
	return domain.NewLedgerError(op, err)
}

func (s *Service) invalidate(ctx context.Context, orgID snowflake.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, orgID); err != nil {
		logger.WithContext(ctx, s.log).Warn("snapshot cache invalidation failed", zap.Error(err))
	}
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func parseOptionalID(raw string, invalid error) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw, invalid)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

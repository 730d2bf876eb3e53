package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/collections/engine"
	"github.com/smallbiznis/collections/internal/observability/logger"
	"github.com/smallbiznis/collections/internal/observability/tracing"
	"github.com/smallbiznis/collections/internal/orgcontext"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type resolutionKind int

const (
	resolveFulfilled resolutionKind = iota
	resolveFailed
	resolvePartial
)

func (s *Service) CreatePromise(ctx context.Context, req domain.CreatePromiseRequest) (promise domain.PaymentPromise, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.PaymentPromise{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.CreatePromise", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	clientID, err := parseID(req.ClientID, domain.ErrInvalidClientID)
	if err != nil {
		return domain.PaymentPromise{}, err
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.PaymentPromise{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentPromise{}, domain.ErrInvalidAmount
	}
	if req.PromisedDate.IsZero() {
		return domain.PaymentPromise{}, domain.ErrInvalidPromisedDate
	}

	now := s.clock.Now().UTC()
	promise = domain.PaymentPromise{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		ClientID:     clientID,
		InvoiceID:    invoiceID,
		Amount:       req.Amount,
		PromisedDate: req.PromisedDate.UTC(),
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    now,
	}

	err = s.inTenant(ctx, orgID, "create_promise", func(tx *gorm.DB) error {
		if err := s.repo.InsertPromise(ctx, tx, &promise); err != nil {
			return s.ledgerError("insert_promise", err)
		}
		return nil
	})
	if err != nil {
		return domain.PaymentPromise{}, err
	}

	s.invalidate(ctx, orgID)
	s.metrics.IncPromiseCreated()
	logger.WithContext(ctx, s.log).Info("payment promise created",
		zap.String("promise_id", promise.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("amount", promise.Amount.String()),
		zap.Time("promised_date", promise.PromisedDate),
	)

	promise.State = engine.DerivePromiseState(promise, now)
	return promise, nil
}

func (s *Service) MarkPromiseFulfilled(ctx context.Context, id string) (domain.PaymentPromise, error) {
	return s.resolvePromise(ctx, id, resolveFulfilled, decimal.Zero)
}

func (s *Service) MarkPromiseFailed(ctx context.Context, id string) (domain.PaymentPromise, error) {
	return s.resolvePromise(ctx, id, resolveFailed, decimal.Zero)
}

func (s *Service) MarkPromisePartial(ctx context.Context, id string, paidAmount decimal.Decimal) (domain.PaymentPromise, error) {
	return s.resolvePromise(ctx, id, resolvePartial, paidAmount)
}

func (s *Service) resolvePromise(ctx context.Context, rawID string, kind resolutionKind, paid decimal.Decimal) (promise domain.PaymentPromise, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.PaymentPromise{}, domain.ErrInvalidOrganization
	}
	promiseID, err := parseID(rawID, domain.ErrInvalidPromiseID)
	if err != nil {
		return domain.PaymentPromise{}, err
	}
	ctx, span := tracing.Start(ctx, "collections.ResolvePromise",
		attribute.Int64("org_id", orgID.Int64()),
		attribute.Int64("promise_id", promiseID.Int64()),
	)
	defer func() { tracing.End(span, err) }()

	release, err := s.lockPromise(ctx, orgID, promiseID)
	if err != nil {
		return domain.PaymentPromise{}, err
	}
	defer release()

	now := s.clock.Now().UTC()
	changed := false
	err = s.inTenant(ctx, orgID, "resolve_promise", func(tx *gorm.DB) error {
		current, err := s.repo.FindPromiseByID(ctx, tx, orgID, promiseID)
		if err != nil {
			return s.ledgerError("find_promise", err)
		}
		if current == nil {
			return domain.ErrPromiseNotFound
		}

		resolution, apply, err := applyResolution(*current, kind, paid, now)
		if err != nil {
			return err
		}
		promise = *current
		if !apply {
			return nil
		}

		if err := s.repo.UpdatePromiseResolution(ctx, tx, orgID, promiseID, resolution); err != nil {
			return s.ledgerError("update_promise_resolution", err)
		}
		promise.Fulfilled = resolution.Fulfilled
		promise.PaidAmount = resolution.PaidAmount
		promise.ResolvedAt = resolution.ResolvedAt
		changed = true
		return nil
	})
	if err != nil {
		return domain.PaymentPromise{}, err
	}

	promise.State = engine.DerivePromiseState(promise, now)
	if changed {
		s.invalidate(ctx, orgID)
		s.metrics.IncPromiseResolved(promise.State)
		logger.WithContext(ctx, s.log).Info("payment promise resolved",
			zap.String("promise_id", promise.ID.String()),
			zap.String("state", string(promise.State)),
		)
	}
	return promise, nil
}

// applyResolution decides the write for a resolution request. Repeating the
// recorded outcome is a no-op; flipping fulfilled and failed is a conflict.
func applyResolution(p domain.PaymentPromise, kind resolutionKind, paid decimal.Decimal, now time.Time) (domain.PromiseResolution, bool, error) {
	current := domain.PromiseResolution{
		Fulfilled:  p.Fulfilled,
		PaidAmount: p.PaidAmount,
		ResolvedAt: p.ResolvedAt,
	}
	resolvedAt := now

	switch kind {
	case resolveFulfilled:
		if p.Fulfilled != nil {
			if *p.Fulfilled {
				return current, false, nil
			}
			return current, false, domain.ErrPromiseAlreadyResolved
		}
		fulfilled := true
		amount := p.Amount
		return domain.PromiseResolution{Fulfilled: &fulfilled, PaidAmount: &amount, ResolvedAt: &resolvedAt}, true, nil

	case resolveFailed:
		if p.Fulfilled != nil {
			if !*p.Fulfilled {
				return current, false, nil
			}
			return current, false, domain.ErrPromiseAlreadyResolved
		}
		failed := false
		return domain.PromiseResolution{Fulfilled: &failed, PaidAmount: p.PaidAmount, ResolvedAt: &resolvedAt}, true, nil

	case resolvePartial:
		if !paid.IsPositive() || !paid.LessThan(p.Amount) {
			return current, false, domain.ErrInvalidAmount
		}
		if p.Fulfilled != nil {
			return current, false, domain.ErrPromiseAlreadyResolved
		}
		if p.PaidAmount != nil && p.PaidAmount.Equal(paid) {
			return current, false, nil
		}
		return domain.PromiseResolution{PaidAmount: &paid}, true, nil
	}
	return current, false, domain.ErrInvalidPromiseState
}

// lockPromise serializes resolutions of one promise across replicas. Without
// Redis, or when Redis fails, the transaction alone guards the write.
func (s *Service) lockPromise(ctx context.Context, orgID, promiseID snowflake.ID) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	lease, ok, err := s.locker.LeasePromise(ctx, orgID, promiseID)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("promise lock unavailable", zap.Error(err))
		return noop, nil
	}
	if !ok {
		return noop, domain.ErrPromiseResolutionBusy
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.WithContext(ctx, s.log).Warn("promise lock release failed", zap.Error(err))
		}
	}, nil
}

func (s *Service) ListPromises(ctx context.Context, req domain.ListPromisesRequest) (resp domain.ListPromisesResponse, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListPromisesResponse{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.ListPromises", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	clientID, err := parseOptionalID(req.ClientID, domain.ErrInvalidClientID)
	if err != nil {
		return domain.ListPromisesResponse{}, err
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.ListPromisesResponse{}, err
	}
	var state domain.PromiseState
	if raw := strings.TrimSpace(req.State); raw != "" {
		parsed, ok := domain.ParsePromiseState(raw)
		if !ok {
			return domain.ListPromisesResponse{}, domain.ErrInvalidPromiseState
		}
		state = parsed
	}

	var rows []domain.PaymentPromise
	err = s.inTenant(ctx, orgID, "list_promises", func(tx *gorm.DB) error {
		var err error
		rows, err = s.repo.ListPromises(ctx, tx, orgID, domain.PromiseFilter{ClientID: clientID, InvoiceID: invoiceID})
		if err != nil {
			return s.ledgerError("list_promises", err)
		}
		return nil
	})
	if err != nil {
		return domain.ListPromisesResponse{}, err
	}

	promises := engine.WithStates(rows, s.clock.Now().UTC())
	if state != "" {
		filtered := make([]domain.PaymentPromise, 0, len(promises))
		for _, p := range promises {
			if p.State == state {
				filtered = append(filtered, p)
			}
		}
		promises = filtered
	}

	return domain.ListPromisesResponse{Promises: promises, HasData: len(promises) > 0}, nil
}

package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/observability/logger"
	"github.com/smallbiznis/collections/internal/observability/tracing"
	"github.com/smallbiznis/collections/internal/orgcontext"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultActionLimit = 50
	maxActionLimit     = 500
)

// RecordAction appends an action to the ledger. Action types are free-form;
// they are not checked against the stage catalog.
func (s *Service) RecordAction(ctx context.Context, req domain.RecordActionRequest) (resp domain.RecordActionResponse, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.RecordActionResponse{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.RecordAction", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	clientID, err := parseID(req.ClientID, domain.ErrInvalidClientID)
	if err != nil {
		return domain.RecordActionResponse{}, err
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.RecordActionResponse{}, err
	}
	actionType := strings.TrimSpace(req.ActionType)
	if actionType == "" {
		return domain.RecordActionResponse{}, domain.ErrInvalidActionType
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.RecordActionResponse{}, domain.ErrInvalidDescription
	}

	action := domain.CollectionAction{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		ClientID:       clientID,
		InvoiceID:      invoiceID,
		ActionType:     actionType,
		Description:    description,
		Outcome:        strings.TrimSpace(req.Outcome),
		ContactName:    strings.TrimSpace(req.ContactName),
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CreatedAt:      s.clock.Now().UTC(),
	}
	if req.NextActionDate != nil && !req.NextActionDate.IsZero() {
		next := req.NextActionDate.UTC()
		action.NextActionDate = &next
	}

	status := domain.ActionStatusRecorded
	err = s.inTenant(ctx, orgID, "record_action", func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertAction(ctx, tx, &action)
		if err != nil {
			return s.ledgerError("insert_action", err)
		}
		if inserted {
			return nil
		}

		status = domain.ActionStatusDuplicate
		existing, err := s.repo.FindActionByIdempotencyKey(ctx, tx, orgID, action.IdempotencyKey)
		if err != nil {
			return s.ledgerError("find_action", err)
		}
		if existing != nil {
			action = *existing
		}
		return nil
	})
	if err != nil {
		return domain.RecordActionResponse{}, err
	}

	span.SetAttributes(attribute.String("action_status", status))
	if status == domain.ActionStatusRecorded {
		s.invalidate(ctx, orgID)
		s.metrics.IncActionRecorded(action.ActionType)
		logger.WithContext(ctx, s.log).Info("collection action recorded",
			zap.String("action_id", action.ID.String()),
			zap.String("client_id", clientID.String()),
			zap.String("action_type", action.ActionType),
		)
	}

	return domain.RecordActionResponse{Action: action, Status: status}, nil
}

func (s *Service) ListActions(ctx context.Context, req domain.ListActionsRequest) (resp domain.ListActionsResponse, err error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListActionsResponse{}, domain.ErrInvalidOrganization
	}
	ctx, span := tracing.Start(ctx, "collections.ListActions", attribute.Int64("org_id", orgID.Int64()))
	defer func() { tracing.End(span, err) }()

	clientID, err := parseOptionalID(req.ClientID, domain.ErrInvalidClientID)
	if err != nil {
		return domain.ListActionsResponse{}, err
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, domain.ErrInvalidInvoiceID)
	if err != nil {
		return domain.ListActionsResponse{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultActionLimit
	}
	limit = min(limit, maxActionLimit)

	var actions []domain.CollectionAction
	err = s.inTenant(ctx, orgID, "list_actions", func(tx *gorm.DB) error {
		var err error
		actions, err = s.repo.ListActions(ctx, tx, orgID, domain.ActionFilter{
			ClientID:  clientID,
			InvoiceID: invoiceID,
			Limit:     limit,
		})
		if err != nil {
			return s.ledgerError("list_actions", err)
		}
		return nil
	})
	if err != nil {
		return domain.ListActionsResponse{}, err
	}

	return domain.ListActionsResponse{Actions: actions, HasData: len(actions) > 0}, nil
}

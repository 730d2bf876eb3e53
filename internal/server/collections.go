package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	collectionsdomain "github.com/smallbiznis/collections/internal/collections/domain"
)

type createPromiseRequest struct {
	ClientID     string          `json:"client_id"`
	InvoiceID    string          `json:"invoice_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	PromisedDate string          `json:"promised_date"`
	ContactName  string          `json:"contact_name,omitempty"`
	ContactPhone string          `json:"contact_phone,omitempty"`
	Note         string          `json:"note,omitempty"`
}

type partialPromiseRequest struct {
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

type recordActionRequest struct {
	ClientID       string `json:"client_id"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	ActionType     string `json:"action_type"`
	Description    string `json:"description"`
	Outcome        string `json:"outcome,omitempty"`
	ContactName    string `json:"contact_name,omitempty"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	NextActionDate string `json:"next_action_date,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (s *Server) ListWorkflows(c *gin.Context) {
	dueFrom, err := parseOptionalTime(c.Query("due_from"))
	if err != nil {
		AbortWithError(c, newValidationError("due_from", "invalid_due_from", "invalid date"))
		return
	}
	dueTo, err := parseOptionalTime(c.Query("due_to"))
	if err != nil {
		AbortWithError(c, newValidationError("due_to", "invalid_due_to", "invalid date"))
		return
	}

	resp, err := s.collectionsSvc.ListWorkflows(c.Request.Context(), collectionsdomain.ListWorkflowsRequest{
		DueFrom:  dueFrom,
		DueTo:    dueTo,
		ClientID: c.Query("client_id"),
		Priority: c.Query("priority"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCollectionsSummary(c *gin.Context) {
	resp, err := s.collectionsSvc.GetMetrics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetWorkflowConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.collectionsSvc.GetConfig(c.Request.Context()))
}

func (s *Server) CreatePromise(c *gin.Context) {
	var req createPromiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	promisedDate, err := parseOptionalTime(req.PromisedDate)
	if err != nil || promisedDate == nil {
		AbortWithError(c, collectionsdomain.ErrInvalidPromisedDate)
		return
	}

	promise, err := s.collectionsSvc.CreatePromise(c.Request.Context(), collectionsdomain.CreatePromiseRequest{
		ClientID:     req.ClientID,
		InvoiceID:    req.InvoiceID,
		Amount:       req.Amount,
		PromisedDate: *promisedDate,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Note:         req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, promise)
}

func (s *Server) ListPromises(c *gin.Context) {
	resp, err := s.collectionsSvc.ListPromises(c.Request.Context(), collectionsdomain.ListPromisesRequest{
		ClientID:  c.Query("client_id"),
		InvoiceID: c.Query("invoice_id"),
		State:     c.Query("state"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) FulfillPromise(c *gin.Context) {
	promise, err := s.collectionsSvc.MarkPromiseFulfilled(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, promise)
}

func (s *Server) FailPromise(c *gin.Context) {
	promise, err := s.collectionsSvc.MarkPromiseFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, promise)
}

func (s *Server) PartialPromise(c *gin.Context) {
	var req partialPromiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	promise, err := s.collectionsSvc.MarkPromisePartial(c.Request.Context(), c.Param("id"), req.PaidAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, promise)
}

func (s *Server) RecordAction(c *gin.Context) {
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	nextActionDate, err := parseOptionalTime(req.NextActionDate)
	if err != nil {
		AbortWithError(c, newValidationError("next_action_date", "invalid_next_action_date", "invalid date"))
		return
	}

	resp, err := s.collectionsSvc.RecordAction(c.Request.Context(), collectionsdomain.RecordActionRequest{
		ClientID:       req.ClientID,
		InvoiceID:      req.InvoiceID,
		ActionType:     req.ActionType,
		Description:    req.Description,
		Outcome:        req.Outcome,
		ContactName:    req.ContactName,
		ContactPhone:   req.ContactPhone,
		NextActionDate: nextActionDate,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Status == collectionsdomain.ActionStatusDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (s *Server) ListActions(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.collectionsSvc.ListActions(c.Request.Context(), collectionsdomain.ListActionsRequest{
		ClientID:  c.Query("client_id"),
		InvoiceID: c.Query("invoice_id"),
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

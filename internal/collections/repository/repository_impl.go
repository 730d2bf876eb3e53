package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type invoiceRow struct {
	ID            int64           `gorm:"column:id"`
	OrgID         int64           `gorm:"column:org_id"`
	ClientID      int64           `gorm:"column:client_id"`
	ClientName    string          `gorm:"column:client_name"`
	InvoiceNumber string          `gorm:"column:invoice_number"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	DueDate       time.Time       `gorm:"column:due_date"`
	Status        string          `gorm:"column:status"`
}

func (r *repo) ListOpenInvoices(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var query strings.Builder
	query.WriteString(`SELECT i.id, i.org_id, i.client_id, COALESCE(c.name, '') AS client_name,
		i.invoice_number, i.amount, i.due_date, i.status
		FROM invoices i
		LEFT JOIN clients c ON c.id = i.client_id AND c.org_id = i.org_id
		WHERE i.org_id = ? AND i.status IN ?`)
	args := []any{orgID, domain.OpenInvoiceStatuses}

	if filter.DueFrom != nil {
		query.WriteString(` AND i.due_date >= ?`)
		args = append(args, *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query.WriteString(` AND i.due_date <= ?`)
		args = append(args, *filter.DueTo)
	}
	if filter.ClientID != nil {
		query.WriteString(` AND i.client_id = ?`)
		args = append(args, *filter.ClientID)
	}
	query.WriteString(` ORDER BY i.due_date ASC, i.id ASC`)

	var rows []invoiceRow
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, domain.Invoice{
			ID:            snowflake.ID(row.ID),
			OrgID:         snowflake.ID(row.OrgID),
			ClientID:      snowflake.ID(row.ClientID),
			ClientName:    row.ClientName,
			InvoiceNumber: row.InvoiceNumber,
			Amount:        row.Amount,
			DueDate:       row.DueDate.UTC(),
			Status:        row.Status,
		})
	}
	return invoices, nil
}

type promiseRow struct {
	ID           int64               `gorm:"column:id"`
	OrgID        int64               `gorm:"column:org_id"`
	ClientID     int64               `gorm:"column:client_id"`
	InvoiceID    sql.NullInt64       `gorm:"column:invoice_id"`
	Amount       decimal.Decimal     `gorm:"column:amount"`
	PromisedDate time.Time           `gorm:"column:promised_date"`
	ContactName  sql.NullString      `gorm:"column:contact_name"`
	ContactPhone sql.NullString      `gorm:"column:contact_phone"`
	Note         sql.NullString      `gorm:"column:note"`
	Fulfilled    sql.NullBool        `gorm:"column:fulfilled"`
	PaidAmount   decimal.NullDecimal `gorm:"column:paid_amount"`
	ResolvedAt   sql.NullTime        `gorm:"column:resolved_at"`
	CreatedAt    time.Time           `gorm:"column:created_at"`
}

const promiseColumns = `id, org_id, client_id, invoice_id, amount, promised_date, contact_name,
	contact_phone, note, fulfilled, paid_amount, resolved_at, created_at`

func (row promiseRow) toDomain() domain.PaymentPromise {
	p := domain.PaymentPromise{
		ID:           snowflake.ID(row.ID),
		OrgID:        snowflake.ID(row.OrgID),
		ClientID:     snowflake.ID(row.ClientID),
		InvoiceID:    idPtr(row.InvoiceID),
		Amount:       row.Amount,
		PromisedDate: row.PromisedDate.UTC(),
		ContactName:  row.ContactName.String,
		ContactPhone: row.ContactPhone.String,
		Note:         row.Note.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
	if row.Fulfilled.Valid {
		fulfilled := row.Fulfilled.Bool
		p.Fulfilled = &fulfilled
	}
	if row.PaidAmount.Valid {
		paid := row.PaidAmount.Decimal
		p.PaidAmount = &paid
	}
	if row.ResolvedAt.Valid {
		resolved := row.ResolvedAt.Time.UTC()
		p.ResolvedAt = &resolved
	}
	return p
}

func (r *repo) ListPromises(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.PromiseFilter) ([]domain.PaymentPromise, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + promiseColumns + ` FROM payment_promises WHERE org_id = ?`)
	args := []any{orgID}

	if filter.ClientID != nil {
		query.WriteString(` AND client_id = ?`)
		args = append(args, *filter.ClientID)
	}
	if filter.InvoiceID != nil {
		query.WriteString(` AND invoice_id = ?`)
		args = append(args, *filter.InvoiceID)
	}
	if filter.UnresolvedOnly {
		query.WriteString(` AND fulfilled IS NULL`)
	}
	query.WriteString(` ORDER BY promised_date ASC, id ASC`)

	var rows []promiseRow
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	promises := make([]domain.PaymentPromise, 0, len(rows))
	for _, row := range rows {
		promises = append(promises, row.toDomain())
	}
	return promises, nil
}

func (r *repo) FindPromiseByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PaymentPromise, error) {
	var row promiseRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+promiseColumns+` FROM payment_promises WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	promise := row.toDomain()
	return &promise, nil
}

func (r *repo) InsertPromise(ctx context.Context, db *gorm.DB, promise *domain.PaymentPromise) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_promises (`+promiseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		promise.ID,
		promise.OrgID,
		promise.ClientID,
		nullableID(promise.InvoiceID),
		promise.Amount,
		promise.PromisedDate,
		nullableString(promise.ContactName),
		nullableString(promise.ContactPhone),
		nullableString(promise.Note),
		nullableBool(promise.Fulfilled),
		nullableDecimal(promise.PaidAmount),
		nullableTime(promise.ResolvedAt),
		promise.CreatedAt,
	).Error
}

func (r *repo) UpdatePromiseResolution(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, resolution domain.PromiseResolution) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_promises SET fulfilled = ?, paid_amount = ?, resolved_at = ?
		 WHERE org_id = ? AND id = ?`,
		nullableBool(resolution.Fulfilled),
		nullableDecimal(resolution.PaidAmount),
		nullableTime(resolution.ResolvedAt),
		orgID,
		id,
	).Error
}

type actionCountRow struct {
	ClientID  int64         `gorm:"column:client_id"`
	InvoiceID sql.NullInt64 `gorm:"column:invoice_id"`
	Count     int           `gorm:"column:action_count"`
}

func (r *repo) CountActions(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.ActionCount, error) {
	var rows []actionCountRow
	err := db.WithContext(ctx).Raw(
		`SELECT client_id, invoice_id, COUNT(*) AS action_count
		 FROM collection_actions
		 WHERE org_id = ?
		 GROUP BY client_id, invoice_id`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make([]domain.ActionCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, domain.ActionCount{
			ClientID:  snowflake.ID(row.ClientID),
			InvoiceID: idPtr(row.InvoiceID),
			Count:     row.Count,
		})
	}
	return counts, nil
}

type actionRow struct {
	ID             int64          `gorm:"column:id"`
	OrgID          int64          `gorm:"column:org_id"`
	ClientID       int64          `gorm:"column:client_id"`
	InvoiceID      sql.NullInt64  `gorm:"column:invoice_id"`
	ActionType     string         `gorm:"column:action_type"`
	Description    string         `gorm:"column:description"`
	Outcome        sql.NullString `gorm:"column:outcome"`
	ContactName    sql.NullString `gorm:"column:contact_name"`
	ContactPhone   sql.NullString `gorm:"column:contact_phone"`
	NextActionDate sql.NullTime   `gorm:"column:next_action_date"`
	IdempotencyKey sql.NullString `gorm:"column:idempotency_key"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

const actionColumns = `id, org_id, client_id, invoice_id, action_type, description, outcome,
	contact_name, contact_phone, next_action_date, idempotency_key, created_at`

func (row actionRow) toDomain() domain.CollectionAction {
	action := domain.CollectionAction{
		ID:             snowflake.ID(row.ID),
		OrgID:          snowflake.ID(row.OrgID),
		ClientID:       snowflake.ID(row.ClientID),
		InvoiceID:      idPtr(row.InvoiceID),
		ActionType:     row.ActionType,
		Description:    row.Description,
		Outcome:        row.Outcome.String,
		ContactName:    row.ContactName.String,
		ContactPhone:   row.ContactPhone.String,
		IdempotencyKey: row.IdempotencyKey.String,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if row.NextActionDate.Valid {
		next := row.NextActionDate.Time.UTC()
		action.NextActionDate = &next
	}
	return action
}

func (r *repo) InsertAction(ctx context.Context, db *gorm.DB, action *domain.CollectionAction) (bool, error) {
	insert := `INSERT INTO collection_actions (` + actionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if db.Dialector.Name() == "mysql" {
		insert = strings.Replace(insert, "INSERT INTO", "INSERT IGNORE INTO", 1)
	} else {
		insert += ` ON CONFLICT DO NOTHING`
	}

	result := db.WithContext(ctx).Exec(
		insert,
		action.ID,
		action.OrgID,
		action.ClientID,
		nullableID(action.InvoiceID),
		action.ActionType,
		action.Description,
		nullableString(action.Outcome),
		nullableString(action.ContactName),
		nullableString(action.ContactPhone),
		nullableTime(action.NextActionDate),
		nullableString(action.IdempotencyKey),
		action.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindActionByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*domain.CollectionAction, error) {
	var row actionRow
	err := db.WithContext(ctx).Raw(
		`SELECT `+actionColumns+` FROM collection_actions WHERE org_id = ? AND idempotency_key = ? LIMIT 1`,
		orgID,
		key,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	action := row.toDomain()
	return &action, nil
}

func (r *repo) ListActions(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ActionFilter) ([]domain.CollectionAction, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + actionColumns + ` FROM collection_actions WHERE org_id = ?`)
	args := []any{orgID}

	if filter.ClientID != nil {
		query.WriteString(` AND client_id = ?`)
		args = append(args, *filter.ClientID)
	}
	if filter.InvoiceID != nil {
		query.WriteString(` AND invoice_id = ?`)
		args = append(args, *filter.InvoiceID)
	}
	query.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	var rows []actionRow
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	actions := make([]domain.CollectionAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.toDomain())
	}
	return actions, nil
}

func idPtr(v sql.NullInt64) *snowflake.ID {
	if !v.Valid || v.Int64 == 0 {
		return nil
	}
	id := snowflake.ID(v.Int64)
	return &id
}

func nullableID(id *snowflake.ID) any {
	if id == nil || *id == 0 {
		return nil
	}
	return int64(*id)
}

func nullableString(v string) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

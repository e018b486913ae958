package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finrecord/api/internal/models"
)

const licenseColumns = `
	id, account_id, product_id, status, modify_date_activated, activation_days,
	expires_at, current_plan, current_price, plan_history, tool_name, category,
	payment_method, note, options, created_at, updated_at`

// licenseSortColumns whitelists the client-facing sort keys.
var licenseSortColumns = map[string]string{
	"productId":     "product_id",
	"status":        "status",
	"toolName":      "tool_name",
	"category":      "category",
	"paymentMethod": "payment_method",
	"expiresAt":     "expires_at",
	"createdAt":     "created_at",
}

type LicenseRepository struct {
	pool *pgxpool.Pool
}

func NewLicenseRepository(pool *pgxpool.Pool) *LicenseRepository {
	return &LicenseRepository{pool: pool}
}

func scanLicense(row pgx.Row) (models.License, error) {
	var lic models.License
	if err := row.Scan(
		&lic.ID,
		&lic.AccountID,
		&lic.ProductID,
		&lic.Status,
		&lic.ModifyDateActivated,
		&lic.ActivationDays,
		&lic.ExpiresAt,
		&lic.CurrentPlan,
		&lic.CurrentPrice,
		&lic.PlanHistory,
		&lic.ToolName,
		&lic.Category,
		&lic.PaymentMethod,
		&lic.Note,
		&lic.Options,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.License{}, ErrLicenseNotFound
		}
		return models.License{}, err
	}
	return lic, nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id string) (models.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = $1`
	return scanLicense(r.pool.QueryRow(ctx, query, id))
}

// ListByIDs loads a batch of licenses; missing ids are silently skipped.
func (r *LicenseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.License, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLicenses(rows)
}

func collectLicenses(rows pgx.Rows) ([]models.License, error) {
	var licenses []models.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}
	return licenses, rows.Err()
}

func licenseWhere(filter models.LicenseFilter) (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	add := func(column, value string) {
		if value != "" {
			args = append(args, value)
			clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	add("account_id", filter.AccountID)
	add("product_id", filter.ProductID)
	add("status", filter.Status)
	add("tool_name", filter.ToolName)
	add("category", filter.Category)
	add("payment_method", filter.PaymentMethod)

	return strings.Join(clauses, " AND "), args
}

func (r *LicenseRepository) Count(ctx context.Context, filter models.LicenseFilter) (int, error) {
	where, args := licenseWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM licenses WHERE `+where, args...).Scan(&count)
	return count, err
}

func (r *LicenseRepository) Find(ctx context.Context, filter models.LicenseFilter, page models.Page) ([]models.License, error) {
	where, args := licenseWhere(filter)

	order := "created_at ASC"
	if sort, dir, ok := page.SortOrder(); ok {
		if column, known := licenseSortColumns[sort]; known {
			order = column + " " + strings.ToUpper(dir)
		}
	}

	args = append(args, page.Limit(), page.Start)
	query := fmt.Sprintf(
		`SELECT%s FROM licenses WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		licenseColumns, where, order, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLicenses(rows)
}

// FindOverdueCandidates returns non-expired licenses that carry an expiry
// value; the caller decides staleness after lenient parsing.
func (r *LicenseRepository) FindOverdueCandidates(ctx context.Context, limit int) ([]models.License, error) {
	query := `SELECT` + licenseColumns + `
		FROM licenses
		WHERE status <> $1 AND NULLIF(expires_at, '') IS NOT NULL
		ORDER BY created_at
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, models.LicenseStatusExpired, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLicenses(rows)
}

func insertLicense(ctx context.Context, q querier, lic models.License) error {
	const query = `
		INSERT INTO licenses (
			id, account_id, product_id, status, modify_date_activated, activation_days,
			expires_at, current_plan, current_price, plan_history, tool_name, category,
			payment_method, note, options, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, NOW(), NOW()
		)`
	_, err := q.Exec(ctx, query,
		lic.ID,
		lic.AccountID,
		lic.ProductID,
		lic.Status,
		lic.ModifyDateActivated,
		lic.ActivationDays,
		lic.ExpiresAt,
		lic.CurrentPlan,
		lic.CurrentPrice,
		sliceOrEmpty(lic.PlanHistory),
		lic.ToolName,
		lic.Category,
		lic.PaymentMethod,
		lic.Note,
		optionsOrEmpty(lic.Options),
	)
	return err
}

func (r *LicenseRepository) Update(ctx context.Context, lic models.License) error {
	return updateLicense(ctx, r.pool, lic)
}

// UpdateStatus persists the expired transition. The status guard makes the
// write idempotent under concurrent lazy reconciliation.
func (r *LicenseRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE licenses SET status = $2, updated_at = NOW() WHERE id = $1 AND status <> $2`,
		id, status,
	)
	return err
}

// GrantToAccount inserts the license and saves the already-mutated owning
// account in one transaction; a failure rolls back both writes.
func (r *LicenseRepository) GrantToAccount(ctx context.Context, lic models.License, account models.Account) error {
	return r.withinTx(ctx, func(tx pgx.Tx) error {
		if err := insertLicense(ctx, tx, lic); err != nil {
			return err
		}
		return saveAccount(ctx, tx, account)
	})
}

// UpdateForAccount updates the license and the owner's mirrored options key
// atomically.
func (r *LicenseRepository) UpdateForAccount(ctx context.Context, lic models.License, account models.Account) error {
	return r.withinTx(ctx, func(tx pgx.Tx) error {
		if err := updateLicense(ctx, tx, lic); err != nil {
			return err
		}
		return saveAccount(ctx, tx, account)
	})
}

// DeleteForAccount removes the license row together with the owner's list
// entry and options key.
func (r *LicenseRepository) DeleteForAccount(ctx context.Context, id string, account models.Account) error {
	return r.withinTx(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrLicenseNotFound
		}
		return saveAccount(ctx, tx, account)
	})
}

func updateLicense(ctx context.Context, q querier, lic models.License) error {
	const query = `
		UPDATE licenses SET
			product_id = $2, status = $3, modify_date_activated = $4,
			activation_days = $5, expires_at = $6, current_plan = $7,
			current_price = $8, plan_history = $9, tool_name = $10,
			category = $11, payment_method = $12, note = $13, options = $14,
			updated_at = NOW()
		WHERE id = $1`
	cmd, err := q.Exec(ctx, query,
		lic.ID,
		lic.ProductID,
		lic.Status,
		lic.ModifyDateActivated,
		lic.ActivationDays,
		lic.ExpiresAt,
		lic.CurrentPlan,
		lic.CurrentPrice,
		sliceOrEmpty(lic.PlanHistory),
		lic.ToolName,
		lic.Category,
		lic.PaymentMethod,
		lic.Note,
		optionsOrEmpty(lic.Options),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

func (r *LicenseRepository) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

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

const recordColumns = `
	id, account_id, date, updated_date, amount, original_amount, currency,
	category, child_category, payment_method, note, created_at, updated_at`

var recordSortColumns = map[string]string{
	"date":          "date",
	"amount":        "amount",
	"category":      "category",
	"paymentMethod": "payment_method",
	"createdAt":     "created_at",
}

type RecordRepository struct {
	pool *pgxpool.Pool
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func scanRecord(row pgx.Row) (models.FinancialRecord, error) {
	var rec models.FinancialRecord
	if err := row.Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.Date,
		&rec.UpdatedDate,
		&rec.Amount,
		&rec.OriginalAmount,
		&rec.Currency,
		&rec.Category,
		&rec.ChildCategory,
		&rec.PaymentMethod,
		&rec.Note,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FinancialRecord{}, ErrRecordNotFound
		}
		return models.FinancialRecord{}, err
	}
	return rec, nil
}

func (r *RecordRepository) FindByID(ctx context.Context, id string) (models.FinancialRecord, error) {
	query := `SELECT` + recordColumns + ` FROM financial_records WHERE id = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, id))
}

func recordWhere(filter models.RecordFilter) (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.AccountID != "" {
		add("account_id", filter.AccountID)
	}
	if filter.Category != "" {
		add("category", filter.Category)
	}
	if filter.ChildCategory != "" {
		add("child_category", filter.ChildCategory)
	}
	if filter.PaymentMethod != "" {
		add("payment_method", filter.PaymentMethod)
	}
	if filter.Amount != nil {
		add("amount", *filter.Amount)
	}
	if filter.OriginalAmount != nil {
		add("original_amount", *filter.OriginalAmount)
	}

	return strings.Join(clauses, " AND "), args
}

func (r *RecordRepository) Count(ctx context.Context, filter models.RecordFilter) (int, error) {
	where, args := recordWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_records WHERE `+where, args...).Scan(&count)
	return count, err
}

func (r *RecordRepository) Find(ctx context.Context, filter models.RecordFilter, page models.Page) ([]models.FinancialRecord, error) {
	where, args := recordWhere(filter)

	order := "created_at ASC"
	if sort, dir, ok := page.SortOrder(); ok {
		if column, known := recordSortColumns[sort]; known {
			order = column + " " + strings.ToUpper(dir)
		}
	}

	args = append(args, page.Limit(), page.Start)
	query := fmt.Sprintf(
		`SELECT%s FROM financial_records WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		recordColumns, where, order, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FinancialRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func insertRecord(ctx context.Context, q querier, rec models.FinancialRecord) error {
	const query = `
		INSERT INTO financial_records (
			id, account_id, date, updated_date, amount, original_amount,
			currency, category, child_category, payment_method, note,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			NOW(), NOW()
		)`
	_, err := q.Exec(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.Date,
		rec.UpdatedDate,
		rec.Amount,
		rec.OriginalAmount,
		rec.Currency,
		rec.Category,
		rec.ChildCategory,
		rec.PaymentMethod,
		rec.Note,
	)
	return err
}

// CreateForAccount inserts the record and saves the owner's updated record
// list in one transaction.
func (r *RecordRepository) CreateForAccount(ctx context.Context, rec models.FinancialRecord, account models.Account) error {
	return r.withinTx(ctx, func(tx pgx.Tx) error {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
		return saveAccount(ctx, tx, account)
	})
}

func (r *RecordRepository) Update(ctx context.Context, rec models.FinancialRecord) error {
	const query = `
		UPDATE financial_records SET
			date = $2, updated_date = $3, amount = $4, original_amount = $5,
			currency = $6, category = $7, child_category = $8,
			payment_method = $9, note = $10, updated_at = NOW()
		WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Date,
		rec.UpdatedDate,
		rec.Amount,
		rec.OriginalAmount,
		rec.Currency,
		rec.Category,
		rec.ChildCategory,
		rec.PaymentMethod,
		rec.Note,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteForAccount removes the record row and the owner's list entry
// atomically.
func (r *RecordRepository) DeleteForAccount(ctx context.Context, id string, account models.Account) error {
	return r.withinTx(ctx, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM financial_records WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrRecordNotFound
		}
		return saveAccount(ctx, tx, account)
	})
}

func (r *RecordRepository) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
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

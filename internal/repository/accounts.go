package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finrecord/api/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrLicenseNotFound = errors.New("license not found")
	ErrRecordNotFound  = errors.New("record not found")
)

// IsUniqueViolation reports whether err is a postgres unique-index violation,
// the losing side of a duplicate registration or rotation race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so account writes can
// join a surrounding transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `
	id, email, username, name, avatar, role, provider,
	password_hash, session_token, refresh_token, with_social, ip,
	options, licenses, records, created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		account  models.Account
		username *string
		cred     models.Credential
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&username,
		&account.Name,
		&account.Avatar,
		&account.Role,
		&account.Provider,
		&cred.Password,
		&cred.SessionToken,
		&cred.RefreshToken,
		&cred.WithSocial,
		&cred.IP,
		&account.Options,
		&account.Licenses,
		&account.Records,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	if username != nil {
		account.Username = *username
	}
	account.Credential = &cred
	return account, nil
}

func (r *AccountRepository) findBy(ctx context.Context, where string, arg any) (models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE ` + where
	return scanAccount(r.pool.QueryRow(ctx, query, arg))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findBy(ctx, `id = $1`, id)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findBy(ctx, `email = $1`, email)
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.findBy(ctx, `username = $1`, username)
}

// FindBySessionToken resolves the live session: the session token column is
// unique, so at most one account matches.
func (r *AccountRepository) FindBySessionToken(ctx context.Context, token string) (models.Account, error) {
	return r.findBy(ctx, `session_token = $1 AND session_token <> ''`, token)
}

func (r *AccountRepository) FindByRefreshToken(ctx context.Context, token string) (models.Account, error) {
	return r.findBy(ctx, `refresh_token = $1 AND refresh_token <> ''`, token)
}

func (r *AccountRepository) CountByRegistrationIP(ctx context.Context, ip string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE ip = $1 AND ip <> ''`, ip).Scan(&count)
	return count, err
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

func (r *AccountRepository) List(ctx context.Context, offset, limit int) ([]models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts ORDER BY created_at LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) error {
	return insertAccount(ctx, r.pool, account)
}

// Save persists every mutable field of the account in one statement.
func (r *AccountRepository) Save(ctx context.Context, account models.Account) error {
	return saveAccount(ctx, r.pool, account)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func insertAccount(ctx context.Context, q querier, account models.Account) error {
	const query = `
		INSERT INTO accounts (
			id, email, username, name, avatar, role, provider,
			password_hash, session_token, refresh_token, with_social, ip,
			options, licenses, records, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, NOW(), NOW()
		)`

	cred := account.Credential
	if cred == nil {
		cred = &models.Credential{}
	}
	_, err := q.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.Name,
		account.Avatar,
		account.Role,
		account.Provider,
		cred.Password,
		cred.SessionToken,
		cred.RefreshToken,
		cred.WithSocial,
		cred.IP,
		optionsOrEmpty(account.Options),
		sliceOrEmpty(account.Licenses),
		sliceOrEmpty(account.Records),
	)
	return err
}

func saveAccount(ctx context.Context, q querier, account models.Account) error {
	const query = `
		UPDATE accounts SET
			email = $2, username = NULLIF($3, ''), name = $4, avatar = $5,
			role = $6, provider = $7,
			password_hash = $8, session_token = $9, refresh_token = $10,
			with_social = $11, ip = $12,
			options = $13, licenses = $14, records = $15,
			updated_at = NOW()
		WHERE id = $1`

	cred := account.Credential
	if cred == nil {
		cred = &models.Credential{}
	}
	cmd, err := q.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Username,
		account.Name,
		account.Avatar,
		account.Role,
		account.Provider,
		cred.Password,
		cred.SessionToken,
		cred.RefreshToken,
		cred.WithSocial,
		cred.IP,
		optionsOrEmpty(account.Options),
		sliceOrEmpty(account.Licenses),
		sliceOrEmpty(account.Records),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func optionsOrEmpty(options map[string]any) map[string]any {
	if options == nil {
		return map[string]any{}
	}
	return options
}

func sliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

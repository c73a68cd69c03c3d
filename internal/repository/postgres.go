package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectory/lectory-auth/internal/domain"
)

// PostgresAccountRepo implements AccountRepository over pgx.
type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

var _ AccountRepository = (*PostgresAccountRepo)(nil)

// NewPostgresAccountRepo wraps the connection pool.
func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const uniqueViolation = "23505"

const accountColumns = `account_id, email, display_name, roles, permissions, refresh_token, created_at, updated_at`

func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *PostgresAccountRepo) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepo) Insert(ctx context.Context, account domain.Account) (domain.Account, error) {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (account_id, email, display_name, roles, permissions, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Email, account.DisplayName, account.Roles, account.Permissions,
		account.RefreshToken, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Account{}, domain.ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

// UpdateRefreshToken is the single conditioned write backing rotation: the
// UPDATE only lands when the stored token still equals expectedOld.
func (r *PostgresAccountRepo) UpdateRefreshToken(ctx context.Context, accountID int64, expectedOld, next string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET refresh_token = $3, updated_at = now()
		 WHERE account_id = $1 AND refresh_token = $2`,
		accountID, expectedOld, next)
	if err != nil {
		return false, fmt.Errorf("update refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.Roles, &a.Permissions,
		&a.RefreshToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VisitorTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewVisitorTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *VisitorTokensRepo {
	return &VisitorTokensRepo{pool: pool, prom: prom}
}

const tokenColumns = `token_id, visitor_name, visitor_phone, resident_id, expires_at, is_active, purpose, created_at`

const insertToken = `INSERT INTO visitor_tokens (` + tokenColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func tokenArgs(t gatepass.VisitorToken) []any {
	return []any{t.ID, t.VisitorName, t.VisitorPhone, t.ResidentID, t.ExpiresAt, t.IsActive, t.Purpose, t.CreatedAt}
}

func scanToken(row pgx.Row) (gatepass.VisitorToken, error) {
	var t gatepass.VisitorToken

	err := row.Scan(
		&t.ID,
		&t.VisitorName,
		&t.VisitorPhone,
		&t.ResidentID,
		&t.ExpiresAt,
		&t.IsActive,
		&t.Purpose,
		&t.CreatedAt,
	)
	return t, err
}

func (r *VisitorTokensRepo) Create(ctx context.Context, t gatepass.VisitorToken) error {
	err := r.prom.ObserveDB("visitor_tokens.create", func() error {
		_, err := r.pool.Exec(ctx, insertToken, tokenArgs(t)...)
		return err
	})

	if IsUniqueViolation(err) {
		return gatepass.ErrDuplicateID
	}
	return err
}

func (r *VisitorTokensRepo) FindActiveByID(ctx context.Context, id string) (gatepass.VisitorToken, error) {
	var t gatepass.VisitorToken

	err := r.prom.ObserveDB("visitor_tokens.find_active_by_id", func() error {
		var err error
		t, err = scanToken(r.pool.QueryRow(ctx,
			`SELECT `+tokenColumns+`
			 FROM visitor_tokens
			 WHERE token_id = $1 AND is_active`,
			id,
		))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return gatepass.VisitorToken{}, gatepass.ErrNotFound
	}
	return t, err
}

func (r *VisitorTokensRepo) FindActiveByResident(ctx context.Context, residentID string) ([]gatepass.VisitorToken, error) {
	out := make([]gatepass.VisitorToken, 0, 1)

	err := r.prom.ObserveDB("visitor_tokens.find_active_by_resident", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+tokenColumns+`
			 FROM visitor_tokens
			 WHERE resident_id = $1 AND is_active
			 ORDER BY created_at DESC`,
			residentID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanToken(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

func (r *VisitorTokensRepo) BulkDeactivateByResident(ctx context.Context, residentID string) (int64, error) {
	var n int64

	err := r.prom.ObserveDB("visitor_tokens.bulk_deactivate", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE visitor_tokens
			 SET is_active = FALSE
			 WHERE resident_id = $1 AND is_active`,
			residentID,
		)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}

// ReplaceWithExit runs the conditional deactivate and the insert in one transaction.
func (r *VisitorTokensRepo) ReplaceWithExit(ctx context.Context, sourceID, residentID string, exit gatepass.VisitorToken) error {
	err := r.prom.ObserveDB("visitor_tokens.replace_with_exit", func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

		tag, err := tx.Exec(ctx,
			`UPDATE visitor_tokens
			 SET is_active = FALSE
			 WHERE token_id = $1 AND resident_id = $2 AND is_active`,
			sourceID, residentID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return gatepass.ErrNotFound
		}

		if _, err := tx.Exec(ctx, insertToken, tokenArgs(exit)...); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	if IsUniqueViolation(err) {
		return gatepass.ErrDuplicateID
	}
	return err
}

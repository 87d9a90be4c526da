package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spendtrack/spendtrack/internal/domain/expense"
	"github.com/spendtrack/spendtrack/internal/observability"
)

type ExpensesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExpensesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExpensesRepo {
	return &ExpensesRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *ExpensesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ListByUser returns the user's expenses newest date first. The id tiebreak
// keeps the ordering stable for same-day rows.
func (r *ExpensesRepo) ListByUser(ctx context.Context, userID int64) ([]expense.Expense, error) {
	var out []expense.Expense

	err := r.observe("expenses.list_by_user", func() error {
		rows, err := r.pool.Query(
			ctx,
			`SELECT id,
							user_id,
							description,
							amount::float8,
							to_char(date, 'YYYY-MM-DD'),
							category,
							location,
							payment_type,
							created_at
			 FROM expenses
			 WHERE user_id = $1
			 ORDER BY date DESC, id DESC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]expense.Expense, 0)

		for rows.Next() {
			var e expense.Expense

			err = rows.Scan(
				&e.ID,
				&e.UserID,
				&e.Description,
				&e.Amount,
				&e.Date,
				&e.Category,
				&e.Location,
				&e.PaymentType,
				&e.CreatedAt,
			)

			if err != nil {
				return err
			}

			out = append(out, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *ExpensesRepo) Create(ctx context.Context, userID int64, req expense.CreateExpenseRequest) (expense.Expense, error) {
	e := expense.Expense{
		UserID:      userID,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        req.Date,
		Category:    req.Category,
		Location:    req.Location,
		PaymentType: req.PaymentType,
	}

	err := r.observe("expenses.create", func() error {
		return r.pool.QueryRow(
			ctx,
			`INSERT INTO expenses (user_id, description, amount, date, category, location, payment_type, created_at)
			 VALUES ($1, $2, $3, $4::date, $5, $6, $7, NOW())
			 RETURNING id, created_at`,
			userID, req.Description, req.Amount, req.Date, req.Category, req.Location, req.PaymentType,
		).Scan(&e.ID, &e.CreatedAt)
	})

	if err != nil {
		return expense.Expense{}, err
	}

	return e, nil
}

// Delete removes the row only when it belongs to userID. A missing row and
// a row owned by someone else come back as distinct errors so the handler
// can answer 404 vs 403.
func (r *ExpensesRepo) Delete(ctx context.Context, id, userID int64) error {
	return r.observe("expenses.delete", func() error {
		var ownerID int64

		err := r.pool.QueryRow(
			ctx,
			`SELECT user_id FROM expenses WHERE id = $1`,
			id,
		).Scan(&ownerID)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return expense.ErrNotFound
			}

			return err
		}

		if ownerID != userID {
			return expense.ErrNotOwner
		}

		tag, err := r.pool.Exec(
			ctx,
			`DELETE FROM expenses WHERE id = $1 AND user_id = $2`,
			id, userID,
		)

		if err != nil {
			return err
		}

		// the row can vanish between the ownership read and the delete
		if tag.RowsAffected() == 0 {
			return expense.ErrNotFound
		}

		return nil
	})
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

const investmentColumns = `id, account_id, plan_id, amount, currency, start_date, end_date,
	last_payout, accrued_return, status, created_at`

func scanInvestment(row rowScanner) (*model.Investment, error) {
	var i model.Investment
	var currency, status string
	err := row.Scan(
		&i.ID, &i.AccountID, &i.PlanID, &i.Amount, &currency, &i.StartDate, &i.EndDate,
		&i.LastPayout, &i.AccruedReturn, &status, &i.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("scan investment: %w", err)
	}
	i.Currency = model.Currency(currency)
	i.Status = model.InvestmentStatus(status)
	return &i, nil
}

// creditCommission зачисляет комиссию бенефициару и добавляет запись
// о начислении вместе с операцией по счёту. Зачисление — одиночный
// UPDATE без предварительной проверки, блокировка строки не нужна.
func creditCommission(ctx context.Context, tx pgx.Tx, c model.Commission) error {
	column := balanceColumn(string(c.Currency))

	_, err := tx.Exec(ctx,
		`UPDATE accounts SET `+column+` = `+column+` + $2, total_earned = total_earned + $2 WHERE id = $1`,
		c.AccountID, c.Amount,
	)
	if err != nil {
		return fmt.Errorf("credit commission: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO commissions (account_id, source_id, kind, level, percentage, amount, currency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.AccountID, c.SourceID, string(c.Kind), c.Level, c.Percentage, c.Amount, string(c.Currency),
	)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		c.AccountID, string(model.TransactionKindCommission), string(c.Currency), c.Amount,
		string(model.TransactionStatusCompleted), uuid.NewString(),
	)
	if err != nil {
		return fmt.Errorf("insert commission transaction: %w", err)
	}

	return nil
}

// CreateInvestment атомарно списывает принципал, создаёт инвестицию,
// помечает счёт инвесторским и зачисляет рассчитанные комиссии.
// Либо фиксируется весь набор записей, либо ничего: частичной выплаты
// комиссий при сбое не бывает.
func (r *PostgresRepository) CreateInvestment(ctx context.Context, inv *model.Investment, commissions []model.Commission) (int64, error) {
	column := balanceColumn(string(inv.Currency))
	var id int64

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var balance decimal.Decimal
			err := tx.QueryRow(ctx,
				`SELECT `+column+` FROM accounts WHERE id = $1 FOR UPDATE`, inv.AccountID).Scan(&balance)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("lock account: %w", err)
			}

			if balance.LessThan(inv.Amount) {
				return ErrInsufficientBalance
			}

			_, err = tx.Exec(ctx,
				`UPDATE accounts SET `+column+` = `+column+` - $2,
					is_investor = true,
					total_invested = total_invested + $2
				 WHERE id = $1`,
				inv.AccountID, inv.Amount,
			)
			if err != nil {
				return fmt.Errorf("debit principal: %w", err)
			}

			err = tx.QueryRow(ctx,
				`INSERT INTO investments (account_id, plan_id, amount, currency, start_date, end_date, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id`,
				inv.AccountID, inv.PlanID, inv.Amount, string(inv.Currency),
				inv.StartDate, inv.EndDate, string(model.InvestmentStatusActive),
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert investment: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, now())`,
				inv.AccountID, string(model.TransactionKindInvestment), string(inv.Currency), inv.Amount,
				string(model.TransactionStatusCompleted), uuid.NewString(),
			)
			if err != nil {
				return fmt.Errorf("insert investment transaction: %w", err)
			}

			for _, c := range commissions {
				if err := creditCommission(ctx, tx, c); err != nil {
					return err
				}
			}

			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// TopUpInvestment атомарно списывает сумму пополнения и увеличивает
// принципал действующей инвестиции.
func (r *PostgresRepository) TopUpInvestment(ctx context.Context, investmentID, accountID int64, addition decimal.Decimal, currency model.Currency) error {
	column := balanceColumn(string(currency))

	return r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var balance decimal.Decimal
			err := tx.QueryRow(ctx,
				`SELECT `+column+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("lock account: %w", err)
			}

			if balance.LessThan(addition) {
				return ErrInsufficientBalance
			}

			cmdTag, err := tx.Exec(ctx,
				`UPDATE investments SET amount = amount + $3
				 WHERE id = $1 AND account_id = $2 AND status = $4`,
				investmentID, accountID, addition, string(model.InvestmentStatusActive),
			)
			if err != nil {
				return fmt.Errorf("top up investment: %w", err)
			}
			if cmdTag.RowsAffected() == 0 {
				return ErrInvestmentNotFound
			}

			_, err = tx.Exec(ctx,
				`UPDATE accounts SET `+column+` = `+column+` - $2, total_invested = total_invested + $2 WHERE id = $1`,
				accountID, addition,
			)
			if err != nil {
				return fmt.Errorf("debit top-up: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, now())`,
				accountID, string(model.TransactionKindInvestment), string(currency), addition,
				string(model.TransactionStatusCompleted), uuid.NewString(),
			)
			if err != nil {
				return fmt.Errorf("insert top-up transaction: %w", err)
			}

			return nil
		})
	})
}

// GetInvestment возвращает инвестицию по идентификатору.
func (r *PostgresRepository) GetInvestment(ctx context.Context, id int64) (*model.Investment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id)
	return scanInvestment(row)
}

// ListInvestmentsByAccount возвращает инвестиции счёта.
func (r *PostgresRepository) ListInvestmentsByAccount(ctx context.Context, accountID int64) ([]model.Investment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select investments: %w", err)
	}
	defer rows.Close()

	var investments []model.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		investments = append(investments, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return investments, nil
}

// AccrualItem описывает активную инвестицию, ожидающую дневного начисления.
type AccrualItem struct {
	Investment      model.Investment
	DailyReturn     decimal.Decimal
	ReturnPrincipal bool
}

// GetInvestmentsForAccrual возвращает активные инвестиции, последняя
// выплата по которым была строго раньше указанной даты.
func (r *PostgresRepository) GetInvestmentsForAccrual(ctx context.Context, asOf time.Time) ([]AccrualItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.account_id, i.plan_id, i.amount, i.currency, i.start_date, i.end_date,
			i.last_payout, i.accrued_return, i.status, i.created_at,
			p.daily_return, p.return_principal
		 FROM investments i
		 JOIN plans p ON p.id = i.plan_id
		 WHERE i.status = $1 AND (i.last_payout IS NULL OR i.last_payout < $2)
		 ORDER BY i.id`,
		string(model.InvestmentStatusActive), asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("select investments for accrual: %w", err)
	}
	defer rows.Close()

	var items []AccrualItem
	for rows.Next() {
		var item AccrualItem
		var currency, status string
		err := rows.Scan(
			&item.Investment.ID, &item.Investment.AccountID, &item.Investment.PlanID,
			&item.Investment.Amount, &currency, &item.Investment.StartDate, &item.Investment.EndDate,
			&item.Investment.LastPayout, &item.Investment.AccruedReturn, &status, &item.Investment.CreatedAt,
			&item.DailyReturn, &item.ReturnPrincipal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan accrual item: %w", err)
		}
		item.Investment.Currency = model.Currency(currency)
		item.Investment.Status = model.InvestmentStatus(status)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ApplyDailyAccrual зачисляет дневную доходность по инвестиции за дату asOf.
// Идемпотентна в пределах календарного дня: сторожевое условие по
// last_payout не даёт зачислить выплату дважды. Возвращает false, если
// выплата за эту дату уже применена.
func (r *PostgresRepository) ApplyDailyAccrual(ctx context.Context, investmentID int64, asOf time.Time, pct, amount decimal.Decimal) (bool, error) {
	applied := false

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var accountID int64
			var currency string

			err := tx.QueryRow(ctx,
				`UPDATE investments SET last_payout = $2, accrued_return = accrued_return + $3
				 WHERE id = $1 AND status = $4 AND (last_payout IS NULL OR last_payout < $2)
				 RETURNING account_id, currency`,
				investmentID, asOf, amount, string(model.InvestmentStatusActive),
			).Scan(&accountID, &currency)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					// Выплата за эту дату уже применена или инвестиция не активна.
					return nil
				}
				return fmt.Errorf("guard accrual: %w", err)
			}
			applied = true

			column := balanceColumn(currency)
			_, err = tx.Exec(ctx,
				`UPDATE accounts SET `+column+` = `+column+` + $2, total_earned = total_earned + $2 WHERE id = $1`,
				accountID, amount,
			)
			if err != nil {
				return fmt.Errorf("credit daily return: %w", err)
			}

			// Дневное начисление порождает сам счёт-владелец: source_id = account_id.
			_, err = tx.Exec(ctx,
				`INSERT INTO commissions (account_id, source_id, kind, level, percentage, amount, currency)
				 VALUES ($1, $1, $2, 0, $3, $4, $5)`,
				accountID, string(model.CommissionKindDaily), pct, amount, currency,
			)
			if err != nil {
				return fmt.Errorf("insert daily commission: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

// CompleteInvestment закрывает инвестицию по истечении срока. Выплата за
// день закрытия не начисляется: последний оплачиваемый день строго раньше
// end_date. При return_principal принципал возвращается на счёт в той же
// транзакции. Возвращает false, если инвестиция уже не активна.
func (r *PostgresRepository) CompleteInvestment(ctx context.Context, investmentID int64, returnPrincipal bool) (bool, error) {
	completed := false

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var accountID int64
			var currency string
			var principal decimal.Decimal

			err := tx.QueryRow(ctx,
				`UPDATE investments SET status = $2 WHERE id = $1 AND status = $3
				 RETURNING account_id, currency, amount`,
				investmentID, string(model.InvestmentStatusCompleted), string(model.InvestmentStatusActive),
			).Scan(&accountID, &currency, &principal)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					// Инвестиция уже закрыта.
					return nil
				}
				return fmt.Errorf("complete investment: %w", err)
			}
			completed = true

			if !returnPrincipal {
				return nil
			}

			column := balanceColumn(currency)
			_, err = tx.Exec(ctx,
				`UPDATE accounts SET `+column+` = `+column+` + $2 WHERE id = $1`,
				accountID, principal,
			)
			if err != nil {
				return fmt.Errorf("return principal: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return false, err
	}

	return completed, nil
}

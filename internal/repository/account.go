package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

const accountColumns = `id, login, password_hash, withdrawal_password, referral_code, referrer_id,
	balance_ar, balance_usdt, points, is_investor, is_admin,
	total_invested, total_earned, total_withdrawn, total_deposited, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.Login, &a.PasswordHash, &a.WithdrawalPassword, &a.ReferralCode, &a.ReferrerID,
		&a.BalanceAr, &a.BalanceUsdt, &a.Points, &a.IsInvestor, &a.IsAdmin,
		&a.TotalInvested, &a.TotalEarned, &a.TotalWithdrawn, &a.TotalDeposited, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount создаёт счёт и атомарно зачисляет приветственный бонус:
// либо счёт создан вместе с бонусом и записью об операции, либо ничего.
func (r *PostgresRepository) CreateAccount(ctx context.Context, acc *model.Account, signupBonus decimal.Decimal) (int64, error) {
	var id int64

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO accounts (login, password_hash, withdrawal_password, referral_code, referrer_id, is_admin)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			acc.Login, acc.PasswordHash, acc.WithdrawalPassword, acc.ReferralCode, acc.ReferrerID, acc.IsAdmin,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrAccountExists, acc.Login)
			}
			return fmt.Errorf("create account: %w", err)
		}

		if !signupBonus.IsPositive() {
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET balance_ar = balance_ar + $2 WHERE id = $1`,
			id, signupBonus,
		)
		if err != nil {
			return fmt.Errorf("credit signup bonus: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())`,
			id, string(model.TransactionKindBonus), string(model.CurrencyAR), signupBonus,
			string(model.TransactionStatusCompleted), uuid.NewString(),
		)
		if err != nil {
			return fmt.Errorf("insert bonus transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetAccountByID возвращает счёт по идентификатору.
func (r *PostgresRepository) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetAccountByLogin возвращает счёт по логину.
func (r *PostgresRepository) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE login = $1`, login)
	return scanAccount(row)
}

// GetAccountByReferralCode возвращает счёт по реферальному коду.
func (r *PostgresRepository) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, code)
	return scanAccount(row)
}

// GetReferralChain возвращает цепочку рефереров счёта, начиная
// с непосредственного, не глубже maxLevels.
func (r *PostgresRepository) GetReferralChain(ctx context.Context, accountID int64, maxLevels int) ([]int64, error) {
	chain := make([]int64, 0, maxLevels)
	current := accountID

	for len(chain) < maxLevels {
		var referrerID *int64
		err := r.pool.QueryRow(ctx,
			`SELECT referrer_id FROM accounts WHERE id = $1`, current).Scan(&referrerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("select referrer: %w", err)
		}
		if referrerID == nil {
			break
		}
		chain = append(chain, *referrerID)
		current = *referrerID
	}

	return chain, nil
}

// ListReferrals возвращает счета, приглашённые напрямую данным счётом.
func (r *PostgresRepository) ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referrer_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	var referrals []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		referrals = append(referrals, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return referrals, nil
}

// GetTeamMembers возвращает участников командной иерархии,
// получающих командные комиссии с вложений счёта.
func (r *PostgresRepository) GetTeamMembers(ctx context.Context, accountID int64) ([]model.TeamMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT member_id, level FROM account_team WHERE account_id = $1 ORDER BY level`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select team members: %w", err)
	}
	defer rows.Close()

	var members []model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.AccountID, &m.Level); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return members, nil
}

// ExchangePoints атомарно списывает баллы и зачисляет валютный эквивалент.
func (r *PostgresRepository) ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, credit decimal.Decimal) error {
	return r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var balance decimal.Decimal
			err := tx.QueryRow(ctx,
				`SELECT points FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("lock account: %w", err)
			}

			if balance.LessThan(points) {
				return ErrInsufficientBalance
			}

			_, err = tx.Exec(ctx,
				`UPDATE accounts SET points = points - $2, `+balanceColumn(string(currency))+` = `+balanceColumn(string(currency))+` + $3 WHERE id = $1`,
				accountID, points, credit,
			)
			if err != nil {
				return fmt.Errorf("exchange points: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, now())`,
				accountID, string(model.TransactionKindPointsExchange), string(currency), credit,
				string(model.TransactionStatusCompleted), uuid.NewString(),
			)
			if err != nil {
				return fmt.Errorf("insert exchange transaction: %w", err)
			}

			return nil
		})
	})
}

// PurchasePoints атомарно списывает валюту и зачисляет баллы.
func (r *PostgresRepository) PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, cost decimal.Decimal) error {
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

			if balance.LessThan(cost) {
				return ErrInsufficientBalance
			}

			_, err = tx.Exec(ctx,
				`UPDATE accounts SET `+column+` = `+column+` - $2, points = points + $3 WHERE id = $1`,
				accountID, cost, points,
			)
			if err != nil {
				return fmt.Errorf("purchase points: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (account_id, kind, currency, amount, status, reference, processed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, now())`,
				accountID, string(model.TransactionKindPointsPurchase), string(currency), cost,
				string(model.TransactionStatusCompleted), uuid.NewString(),
			)
			if err != nil {
				return fmt.Errorf("insert purchase transaction: %w", err)
			}

			return nil
		})
	})
}

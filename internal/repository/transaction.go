package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

const transactionColumns = `id, account_id, kind, currency, amount, fee, status, reference,
	processed_by, reject_reason, created_at, processed_at`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var kind, currency, status string
	err := row.Scan(
		&t.ID, &t.AccountID, &kind, &currency, &t.Amount, &t.Fee, &status, &t.Reference,
		&t.ProcessedBy, &t.RejectReason, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = model.TransactionKind(kind)
	t.Currency = model.Currency(currency)
	t.Status = model.TransactionStatus(status)
	return &t, nil
}

// CreateTransaction создаёт операцию по счёту. Депозиты и выводы
// создаются в pending и ждут решения администратора, баланс на этом
// этапе не меняется.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *model.Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (account_id, kind, currency, amount, status, reference)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		t.AccountID, string(t.Kind), string(t.Currency), t.Amount, string(t.Status), t.Reference,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// GetTransaction возвращает операцию по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// ListTransactionsByAccount возвращает историю операций счёта.
func (r *PostgresRepository) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListPendingTransactions возвращает операции, ожидающие решения администратора.
func (r *PostgresRepository) ListPendingTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE status = $1 ORDER BY created_at`,
		string(model.TransactionStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveTransaction подтверждает операцию: депозит зачисляет сумму,
// вывод списывает чистую сумму за вычетом комиссии. Строка операции
// блокируется на время решения, повторное подтверждение невозможно.
func (r *PostgresRepository) ApproveTransaction(ctx context.Context, txID, adminID int64, feeRate decimal.Decimal) (*model.Transaction, error) {
	var approved *model.Transaction

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx,
				`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID)
			t, err := scanTransaction(row)
			if err != nil {
				return err
			}

			if !t.Status.CanTransition(model.TransactionStatusCompleted) {
				return ErrAlreadyProcessed
			}

			column := balanceColumn(string(t.Currency))

			switch t.Kind {
			case model.TransactionKindDeposit:
				_, err = tx.Exec(ctx,
					`UPDATE accounts SET `+column+` = `+column+` + $2, total_deposited = total_deposited + $2 WHERE id = $1`,
					t.AccountID, t.Amount,
				)
				if err != nil {
					return fmt.Errorf("credit deposit: %w", err)
				}

			case model.TransactionKindWithdrawal:
				var balance decimal.Decimal
				err = tx.QueryRow(ctx,
					`SELECT `+column+` FROM accounts WHERE id = $1 FOR UPDATE`, t.AccountID).Scan(&balance)
				if err != nil {
					return fmt.Errorf("lock account: %w", err)
				}

				fee, net := exchange.WithdrawalFee(t.Amount, feeRate, t.Currency)

				// Баланс не резервировался на этапе заявки, поэтому
				// перед списанием проверяется повторно под блокировкой.
				if balance.LessThan(net) {
					return ErrInsufficientBalance
				}

				_, err = tx.Exec(ctx,
					`UPDATE accounts SET `+column+` = `+column+` - $2, total_withdrawn = total_withdrawn + $2 WHERE id = $1`,
					t.AccountID, net,
				)
				if err != nil {
					return fmt.Errorf("debit withdrawal: %w", err)
				}

				t.Fee = fee

			default:
				return fmt.Errorf("transaction %d of kind %s is not approvable", t.ID, t.Kind)
			}

			err = tx.QueryRow(ctx,
				`UPDATE transactions SET status = $2, fee = $3, processed_by = $4, processed_at = now()
				 WHERE id = $1
				 RETURNING processed_at`,
				t.ID, string(model.TransactionStatusCompleted), t.Fee, adminID,
			).Scan(&t.ProcessedAt)
			if err != nil {
				return fmt.Errorf("complete transaction: %w", err)
			}

			t.Status = model.TransactionStatusCompleted
			t.ProcessedBy = &adminID
			approved = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return approved, nil
}

// RejectTransaction отклоняет операцию с указанием причины. Баланс не
// меняется: средства по заявке на вывод не списывались.
func (r *PostgresRepository) RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error) {
	var rejected *model.Transaction

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx,
				`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID)
			t, err := scanTransaction(row)
			if err != nil {
				return err
			}

			if !t.Status.CanTransition(model.TransactionStatusFailed) {
				return ErrAlreadyProcessed
			}

			err = tx.QueryRow(ctx,
				`UPDATE transactions SET status = $2, processed_by = $3, reject_reason = $4, processed_at = now()
				 WHERE id = $1
				 RETURNING processed_at`,
				t.ID, string(model.TransactionStatusFailed), adminID, reason,
			).Scan(&t.ProcessedAt)
			if err != nil {
				return fmt.Errorf("reject transaction: %w", err)
			}

			t.Status = model.TransactionStatusFailed
			t.ProcessedBy = &adminID
			t.RejectReason = &reason
			rejected = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return rejected, nil
}

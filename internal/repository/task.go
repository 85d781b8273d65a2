package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

const taskColumns = `id, creator_id, title, description, reward_points, max_executions,
	executions, validation, active, created_at`

const executionColumns = `id, task_id, executor_id, proof, status, processed_by,
	reject_reason, created_at, processed_at`

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	var validation string
	err := row.Scan(
		&t.ID, &t.CreatorID, &t.Title, &t.Description, &t.RewardPoints, &t.MaxExecutions,
		&t.Executions, &validation, &t.Active, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Validation = model.TaskValidation(validation)
	return &t, nil
}

func scanExecution(row rowScanner) (*model.TaskExecution, error) {
	var e model.TaskExecution
	var status string
	err := row.Scan(
		&e.ID, &e.TaskID, &e.ExecutorID, &e.Proof, &status, &e.ProcessedBy,
		&e.RejectReason, &e.CreatedAt, &e.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	e.Status = model.ExecutionStatus(status)
	return &e, nil
}

// CreateTask создаёт микрозадание.
func (r *PostgresRepository) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (creator_id, title, description, reward_points, max_executions, validation, active)
		 VALUES ($1, $2, $3, $4, $5, $6, true)
		 RETURNING id`,
		t.CreatorID, t.Title, t.Description, t.RewardPoints, t.MaxExecutions, string(t.Validation),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// GetTask возвращает задание по идентификатору.
func (r *PostgresRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// ListTasks возвращает список заданий.
func (r *PostgresRepository) ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE active ORDER BY created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

// CreateExecution регистрирует выполнение задания. Счётчик выполнений
// увеличивается под блокировкой строки задания, лимит не превышается.
// При автоматической валидации баллы зачисляются исполнителю в той же
// транзакции, выполнение сразу переходит в approved.
func (r *PostgresRepository) CreateExecution(ctx context.Context, e *model.TaskExecution, rewardPoints decimal.Decimal, autoApprove bool) (int64, error) {
	var id int64

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var executions, maxExecutions int
			var active bool
			err := tx.QueryRow(ctx,
				`SELECT executions, max_executions, active FROM tasks WHERE id = $1 FOR UPDATE`,
				e.TaskID,
			).Scan(&executions, &maxExecutions, &active)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrTaskNotFound
				}
				return fmt.Errorf("lock task: %w", err)
			}

			if !active || executions >= maxExecutions {
				return ErrTaskLimitReached
			}

			_, err = tx.Exec(ctx,
				`UPDATE tasks SET executions = executions + 1, active = (executions + 1 < max_executions)
				 WHERE id = $1`,
				e.TaskID,
			)
			if err != nil {
				return fmt.Errorf("bump executions: %w", err)
			}

			status := model.ExecutionStatusPending
			if autoApprove {
				status = model.ExecutionStatusApproved
			}

			query := `INSERT INTO task_executions (task_id, executor_id, proof, status) VALUES ($1, $2, $3, $4) RETURNING id`
			if autoApprove {
				query = `INSERT INTO task_executions (task_id, executor_id, proof, status, processed_at)
					 VALUES ($1, $2, $3, $4, now()) RETURNING id`
			}

			err = tx.QueryRow(ctx, query, e.TaskID, e.ExecutorID, e.Proof, string(status)).Scan(&id)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
					return ErrAlreadyProcessed
				}
				return fmt.Errorf("insert execution: %w", err)
			}

			if autoApprove {
				_, err = tx.Exec(ctx,
					`UPDATE accounts SET points = points + $2 WHERE id = $1`,
					e.ExecutorID, rewardPoints,
				)
				if err != nil {
					return fmt.Errorf("credit reward points: %w", err)
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

// GetExecution возвращает выполнение задания по идентификатору.
func (r *PostgresRepository) GetExecution(ctx context.Context, id int64) (*model.TaskExecution, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+executionColumns+` FROM task_executions WHERE id = $1`, id)
	return scanExecution(row)
}

// ListPendingExecutions возвращает выполнения, ожидающие ручной проверки.
func (r *PostgresRepository) ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+executionColumns+` FROM task_executions WHERE status = $1 ORDER BY created_at`,
		string(model.ExecutionStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending executions: %w", err)
	}
	defer rows.Close()

	var res []model.TaskExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveExecution подтверждает выполнение и зачисляет баллы исполнителю
// ровно один раз: строка выполнения блокируется, повторное подтверждение
// отклоняется до зачисления.
func (r *PostgresRepository) ApproveExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error) {
	var approved *model.TaskExecution

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx,
				`SELECT `+executionColumns+` FROM task_executions WHERE id = $1 FOR UPDATE`, executionID)
			e, err := scanExecution(row)
			if err != nil {
				return err
			}

			if !e.Status.CanTransition(model.ExecutionStatusApproved) {
				return ErrAlreadyProcessed
			}

			var reward decimal.Decimal
			err = tx.QueryRow(ctx,
				`SELECT reward_points FROM tasks WHERE id = $1`, e.TaskID).Scan(&reward)
			if err != nil {
				return fmt.Errorf("select reward: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE accounts SET points = points + $2 WHERE id = $1`,
				e.ExecutorID, reward,
			)
			if err != nil {
				return fmt.Errorf("credit reward points: %w", err)
			}

			err = tx.QueryRow(ctx,
				`UPDATE task_executions SET status = $2, processed_by = $3, processed_at = now()
				 WHERE id = $1
				 RETURNING processed_at`,
				e.ID, string(model.ExecutionStatusApproved), adminID,
			).Scan(&e.ProcessedAt)
			if err != nil {
				return fmt.Errorf("approve execution: %w", err)
			}

			e.Status = model.ExecutionStatusApproved
			e.ProcessedBy = &adminID
			approved = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return approved, nil
}

// RejectExecution отклоняет выполнение с указанием причины, баллы не зачисляются.
func (r *PostgresRepository) RejectExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error) {
	var rejected *model.TaskExecution

	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx,
				`SELECT `+executionColumns+` FROM task_executions WHERE id = $1 FOR UPDATE`, executionID)
			e, err := scanExecution(row)
			if err != nil {
				return err
			}

			if !e.Status.CanTransition(model.ExecutionStatusRejected) {
				return ErrAlreadyProcessed
			}

			err = tx.QueryRow(ctx,
				`UPDATE task_executions SET status = $2, processed_by = $3, reject_reason = $4, processed_at = now()
				 WHERE id = $1
				 RETURNING processed_at`,
				e.ID, string(model.ExecutionStatusRejected), adminID, reason,
			).Scan(&e.ProcessedAt)
			if err != nil {
				return fmt.Errorf("reject execution: %w", err)
			}

			e.Status = model.ExecutionStatusRejected
			e.ProcessedBy = &adminID
			e.RejectReason = &reason
			rejected = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return rejected, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

const planColumns = `id, name, min_ar, max_ar, min_usdt, max_usdt, min_addition, daily_return,
	ref_commission_l1, ref_commission_l2, ref_commission_l3,
	team_commission_l1, team_commission_l2, team_commission_l3,
	duration_days, return_principal, active, created_at`

func scanPlan(row rowScanner) (*model.InvestmentPlan, error) {
	var p model.InvestmentPlan
	err := row.Scan(
		&p.ID, &p.Name, &p.MinAr, &p.MaxAr, &p.MinUsdt, &p.MaxUsdt, &p.MinAddition, &p.DailyReturn,
		&p.ReferralCommission[0], &p.ReferralCommission[1], &p.ReferralCommission[2],
		&p.TeamCommission[0], &p.TeamCommission[1], &p.TeamCommission[2],
		&p.DurationDays, &p.ReturnPrincipal, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &p, nil
}

// GetPlan возвращает тарифный план по идентификатору.
func (r *PostgresRepository) GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	return scanPlan(row)
}

// ListPlans возвращает список тарифных планов.
func (r *PostgresRepository) ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id`
	if activeOnly {
		query = `SELECT ` + planColumns + ` FROM plans WHERE active ORDER BY id`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var plans []model.InvestmentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return plans, nil
}

// CreatePlan создаёт новый тарифный план.
func (r *PostgresRepository) CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO plans (name, min_ar, max_ar, min_usdt, max_usdt, min_addition, daily_return,
			ref_commission_l1, ref_commission_l2, ref_commission_l3,
			team_commission_l1, team_commission_l2, team_commission_l3,
			duration_days, return_principal, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		p.Name, p.MinAr, p.MaxAr, p.MinUsdt, p.MaxUsdt, p.MinAddition, p.DailyReturn,
		p.ReferralCommission[0], p.ReferralCommission[1], p.ReferralCommission[2],
		p.TeamCommission[0], p.TeamCommission[1], p.TeamCommission[2],
		p.DurationDays, p.ReturnPrincipal, p.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create plan: %w", err)
	}
	return id, nil
}

// UpdatePlan обновляет тарифный план. Изменения касаются только будущих
// вложений: уже созданные инвестиции хранят собственные условия.
func (r *PostgresRepository) UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE plans SET name = $2, min_ar = $3, max_ar = $4, min_usdt = $5, max_usdt = $6,
			min_addition = $7, daily_return = $8,
			ref_commission_l1 = $9, ref_commission_l2 = $10, ref_commission_l3 = $11,
			team_commission_l1 = $12, team_commission_l2 = $13, team_commission_l3 = $14,
			duration_days = $15, return_principal = $16, active = $17
		 WHERE id = $1`,
		p.ID, p.Name, p.MinAr, p.MaxAr, p.MinUsdt, p.MaxUsdt,
		p.MinAddition, p.DailyReturn,
		p.ReferralCommission[0], p.ReferralCommission[1], p.ReferralCommission[2],
		p.TeamCommission[0], p.TeamCommission[1], p.TeamCommission[2],
		p.DurationDays, p.ReturnPrincipal, p.Active,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// DeactivatePlan выводит план из продажи, не затрагивая действующие инвестиции.
func (r *PostgresRepository) DeactivatePlan(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE plans SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate plan: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

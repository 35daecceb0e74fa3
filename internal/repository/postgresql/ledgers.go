package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type penaltyLedgerRepository struct {
	db *database.DB
}

func NewPenaltyLedgerRepository(db *database.DB) payroll.PenaltyLedger {
	return &penaltyLedgerRepository{db: db}
}

func (r *penaltyLedgerRepository) ApprovedForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]payroll.MisconductPenalty, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, amount, reason, issued_at
		FROM misconduct_penalties
		WHERE employee_id = $1
		  AND status = 'approved'
		  AND issued_at BETWEEN $2 AND $3
		ORDER BY issued_at
	`

	rows, err := q.Query(ctx, query, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list misconduct penalties: %w", err)
	}
	defer rows.Close()

	var penalties []payroll.MisconductPenalty
	for rows.Next() {
		var p payroll.MisconductPenalty
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.Amount, &p.Reason, &p.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan misconduct penalty: %w", err)
		}
		penalties = append(penalties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate misconduct penalties: %w", err)
	}
	return penalties, nil
}

type refundLedgerRepository struct {
	db *database.DB
}

func NewRefundLedgerRepository(db *database.DB) payroll.RefundLedger {
	return &refundLedgerRepository{db: db}
}

func (r *refundLedgerRepository) UnsettledForEmployee(ctx context.Context, employeeID string, asOf time.Time) ([]payroll.Refund, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, amount, reason, approved_at
		FROM refunds
		WHERE employee_id = $1
		  AND status = 'approved'
		  AND settled_run_id IS NULL
		  AND approved_at <= $2
		ORDER BY approved_at
	`

	rows, err := q.Query(ctx, query, employeeID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []payroll.Refund
	for rows.Next() {
		var refund payroll.Refund
		if err := rows.Scan(&refund.ID, &refund.EmployeeID, &refund.Amount, &refund.Reason, &refund.ApprovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, refund)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}
	return refunds, nil
}

func (r *refundLedgerRepository) MarkSettled(ctx context.Context, refundIDs []string, runID string) error {
	if len(refundIDs) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE refunds
		SET settled_run_id = $2, updated_at = NOW()
		WHERE id = ANY($1) AND settled_run_id IS NULL
	`

	if _, err := q.Exec(ctx, query, refundIDs, runID); err != nil {
		return fmt.Errorf("failed to settle refunds: %w", err)
	}
	return nil
}

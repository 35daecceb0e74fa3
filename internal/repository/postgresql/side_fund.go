package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
)

type sideFundRepository struct {
	db *database.DB
}

func NewSideFundRepository(db *database.DB) sidefund.Repository {
	return &sideFundRepository{db: db}
}

const sideFundColumns = `
	id, employee_id, kind, amount, status, trigger_key, payment_date,
	approver_id, rejection_reason, paid_in_run_id, created_at, updated_at
`

func (r *sideFundRepository) Create(ctx context.Context, record *sidefund.Record) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO side_fund_records (
			id, employee_id, kind, amount, status, trigger_key,
			payment_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.Exec(ctx, query,
		record.ID, record.EmployeeID, record.Kind, record.Amount, record.Status,
		record.TriggerKey, record.PaymentDate, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create side fund record: %w", err)
	}
	return nil
}

func (r *sideFundRepository) GetByID(ctx context.Context, id string) (*sidefund.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + sideFundColumns + ` FROM side_fund_records WHERE id = $1`

	record, err := scanSideFund(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, sidefund.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get side fund record: %w", err)
	}
	return record, nil
}

func (r *sideFundRepository) ListPending(ctx context.Context, limit, offset int) ([]sidefund.Record, int, error) {
	q := GetQuerier(ctx, r.db)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM side_fund_records WHERE status = 'pending'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pending side fund records: %w", err)
	}

	query := `SELECT ` + sideFundColumns + ` FROM side_fund_records WHERE status = 'pending' ORDER BY created_at LIMIT $1 OFFSET $2`

	rows, err := q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending side fund records: %w", err)
	}
	defer rows.Close()

	var records []sidefund.Record
	for rows.Next() {
		record, err := scanSideFund(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan side fund record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate side fund records: %w", err)
	}
	return records, total, nil
}

func (r *sideFundRepository) ApprovedForEmployee(ctx context.Context, employeeID string) ([]sidefund.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + sideFundColumns + ` FROM side_fund_records WHERE employee_id = $1 AND status = 'approved' ORDER BY created_at`

	rows, err := q.Query(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved side fund records: %w", err)
	}
	defer rows.Close()

	var records []sidefund.Record
	for rows.Next() {
		record, err := scanSideFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan side fund record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate side fund records: %w", err)
	}
	return records, nil
}

func (r *sideFundRepository) ExistsForTrigger(ctx context.Context, employeeID, triggerKey string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM side_fund_records WHERE employee_id = $1 AND trigger_key = $2)`
	if err := q.QueryRow(ctx, query, employeeID, triggerKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check side fund trigger: %w", err)
	}
	return exists, nil
}

func (r *sideFundRepository) UpdateStatus(ctx context.Context, id string, from, to sidefund.Status, approverID *string, rejectionReason *string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE side_fund_records
		SET status = $3, approver_id = $4, rejection_reason = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := q.Exec(ctx, query, id, from, to, approverID, rejectionReason)
	if err != nil {
		return fmt.Errorf("failed to update side fund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected status '%s'", sidefund.ErrRecordNotPending, from)
	}
	return nil
}

// Claim is the at-most-once payment flip: the status predicate in the UPDATE
// makes concurrent claims race safely, and a zero-row result means this run
// lost. Callers run it inside the transaction that writes the payslip.
func (r *sideFundRepository) Claim(ctx context.Context, id, runID string, paidAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE side_fund_records
		SET status = 'paid', paid_in_run_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'approved'
	`

	tag, err := q.Exec(ctx, query, id, runID, paidAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim side fund record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *sideFundRepository) UpdatePaymentDate(ctx context.Context, id string, paymentDate time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `UPDATE side_fund_records SET payment_date = $2, updated_at = NOW() WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, paymentDate)
	if err != nil {
		return fmt.Errorf("failed to update side fund payment date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sidefund.ErrRecordNotFound
	}
	return nil
}

func scanSideFund(row pgx.Row) (*sidefund.Record, error) {
	var record sidefund.Record
	err := row.Scan(
		&record.ID, &record.EmployeeID, &record.Kind, &record.Amount, &record.Status,
		&record.TriggerKey, &record.PaymentDate, &record.ApproverID, &record.RejectionReason,
		&record.PaidInRunID, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

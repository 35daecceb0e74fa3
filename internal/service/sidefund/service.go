package sidefund

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
)

// Service governs signing bonus and separation benefit records up to the
// point where a payroll run claims them for payment.
type Service struct {
	records sidefund.Repository
	users   user.Repository
	logger  *slog.Logger
}

func NewService(recordRepo sidefund.Repository, userRepo user.Repository, logger *slog.Logger) *Service {
	return &Service{records: recordRepo, users: userRepo, logger: logger}
}

func (s *Service) ListPending(ctx context.Context, actor user.Role, page, pageSize int) ([]sidefund.Record, int, error) {
	if !actor.IsPayrollManager() && !actor.IsFinanceStaff() {
		return nil, 0, user.ErrManagerAccessRequired
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.records.ListPending(ctx, pageSize, (page-1)*pageSize)
}

func (s *Service) GetByID(ctx context.Context, id string) (*sidefund.Record, error) {
	return s.records.GetByID(ctx, id)
}

// Approve moves a PENDING record to APPROVED. The approver must be an active
// manager and must not be the grantee.
func (s *Service) Approve(ctx context.Context, approverID string, role user.Role, recordID string) (*sidefund.Record, error) {
	if !role.IsPayrollManager() {
		return nil, user.ErrManagerAccessRequired
	}

	approver, err := s.users.GetByID(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if !approver.IsActive {
		return nil, user.ErrUserNotFound
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != sidefund.StatusPending {
		return nil, fmt.Errorf("%w: record %s is '%s'", sidefund.ErrRecordNotPending, recordID, record.Status)
	}
	if approver.EmployeeID != nil && *approver.EmployeeID == record.EmployeeID {
		return nil, user.ErrSelfApproval
	}

	if err := s.records.UpdateStatus(ctx, recordID, sidefund.StatusPending, sidefund.StatusApproved, &approverID, nil); err != nil {
		return nil, err
	}
	record.Status = sidefund.StatusApproved
	record.ApproverID = &approverID

	s.logger.Info("side fund record approved",
		slog.String("record_id", recordID),
		slog.String("kind", string(record.Kind)),
		slog.String("amount", record.Amount.StringFixed(2)))
	return record, nil
}

// Reject moves a PENDING record to REJECTED with a mandatory reason.
func (s *Service) Reject(ctx context.Context, approverID string, role user.Role, recordID string, req sidefund.RejectRequest) (*sidefund.Record, error) {
	if !role.IsPayrollManager() {
		return nil, user.ErrManagerAccessRequired
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != sidefund.StatusPending {
		return nil, fmt.Errorf("%w: record %s is '%s'", sidefund.ErrRecordNotPending, recordID, record.Status)
	}

	if err := s.records.UpdateStatus(ctx, recordID, sidefund.StatusPending, sidefund.StatusRejected, &approverID, &req.Reason); err != nil {
		return nil, err
	}
	record.Status = sidefund.StatusRejected
	record.ApproverID = &approverID
	record.RejectionReason = &req.Reason

	s.logger.Info("side fund record rejected",
		slog.String("record_id", recordID), slog.String("reason", req.Reason))
	return record, nil
}

// UpdatePaymentDate schedules an APPROVED record for a specific payout date
// so a run whose period contains that date picks it up.
func (s *Service) UpdatePaymentDate(ctx context.Context, role user.Role, recordID string, req sidefund.UpdatePaymentDateRequest) (*sidefund.Record, error) {
	if !role.IsPayrollManager() && !role.IsFinanceStaff() {
		return nil, user.ErrManagerAccessRequired
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != sidefund.StatusApproved {
		return nil, fmt.Errorf("%w: record %s is '%s'", sidefund.ErrRecordNotApproved, recordID, record.Status)
	}

	paymentDate, _ := time.Parse("2006-01-02", req.PaymentDate)
	if err := s.records.UpdatePaymentDate(ctx, recordID, paymentDate); err != nil {
		return nil, err
	}
	record.PaymentDate = &paymentDate
	return record, nil
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/payroll"
	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
	"github.com/meridianhr/payroll-backend-go/internal/handler/http/response"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/validator"
	payrollsvc "github.com/meridianhr/payroll-backend-go/internal/service/payroll"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	SubmitForReview(w http.ResponseWriter, r *http.Request)
	ApproveByManager(w http.ResponseWriter, r *http.Request)
	ApproveByFinance(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	Reopen(w http.ResponseWriter, r *http.Request)
	Freeze(w http.ResponseWriter, r *http.Request)
	Unfreeze(w http.ResponseWriter, r *http.Request)

	// Details and payslips
	ListDetails(w http.ResponseWriter, r *http.Request)
	GeneratePayslips(w http.ResponseWriter, r *http.Request)
	ListPayslips(w http.ResponseWriter, r *http.Request)
	ExportPayslipsCSV(w http.ResponseWriter, r *http.Request)
	GetPayslip(w http.ResponseWriter, r *http.Request)
	MyPayslips(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService *payrollsvc.Service
}

func NewPayrollHandler(payrollService *payrollsvc.Service) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// actorFromContext builds the service-level actor from JWT claims.
func actorFromContext(r *http.Request) (payrollsvc.Actor, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return payrollsvc.Actor{}, false
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return payrollsvc.Actor{}, false
	}
	roleStr, ok := claims["role"].(string)
	if !ok || roleStr == "" {
		return payrollsvc.Actor{}, false
	}

	actor := payrollsvc.Actor{UserID: userID, Role: user.Role(roleStr)}
	if employeeID, ok := claims["employee_id"].(string); ok && employeeID != "" {
		actor.EmployeeID = &employeeID
	}
	return actor, true
}

func runIDFromURL(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	return id, validator.IsValidUUID(id)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req payroll.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	run, err := h.payrollService.CreateRun(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run created", payroll.NewRunSummaryResponse(run))
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := payroll.ListRunsQuery{
		Entity: r.URL.Query().Get("entity"),
	}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		for _, s := range strings.Split(statusParam, ",") {
			query.Statuses = append(query.Statuses, payroll.RunStatus(strings.TrimSpace(s)))
		}
	}
	query.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	query.PageSize, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	query.Normalize()

	runs, total, err := h.payrollService.ListRuns(r.Context(), query)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	summaries := make([]payroll.RunSummaryResponse, 0, len(runs))
	for i := range runs {
		summaries = append(summaries, payroll.NewRunSummaryResponse(&runs[i]))
	}

	totalPages := (total + query.PageSize - 1) / query.PageSize
	response.SuccessWithMeta(w, summaries, &response.Meta{
		Page:       query.Page,
		Limit:      query.PageSize,
		TotalItems: int64(total),
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	run, err := h.payrollService.GetRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewRunSummaryResponse(run))
}

func (h *payrollHandlerImpl) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run submitted and processed", h.payrollService.SubmitForReview)
}

func (h *payrollHandlerImpl) ApproveByManager(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run approved by manager", h.payrollService.ApproveByManager)
}

func (h *payrollHandlerImpl) ApproveByFinance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run approved, payslips marked paid", h.payrollService.ApproveByFinance)
}

func (h *payrollHandlerImpl) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run reopened", h.payrollService.Reopen)
}

func (h *payrollHandlerImpl) Freeze(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Payroll run locked", h.payrollService.Freeze)
}

// transition handles the body-less lifecycle operations that differ only in
// the service call and success message.
func (h *payrollHandlerImpl) transition(
	w http.ResponseWriter, r *http.Request, message string,
	op func(ctx context.Context, actor payrollsvc.Actor, runID string) (*payroll.PayrollRun, error),
) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	run, err := op(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, message, payroll.NewRunSummaryResponse(run))
}

func (h *payrollHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	var req payroll.RejectRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	run, err := h.payrollService.Reject(r.Context(), actor, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run rejected", payroll.NewRunSummaryResponse(run))
}

func (h *payrollHandlerImpl) Unfreeze(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	var req payroll.UnlockRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	run, err := h.payrollService.Unfreeze(r.Context(), actor, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run unlocked", payroll.NewRunSummaryResponse(run))
}

// ========== DETAILS AND PAYSLIPS ==========

func (h *payrollHandlerImpl) ListDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	details, err := h.payrollService.ListDetails(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, details)
}

func (h *payrollHandlerImpl) GeneratePayslips(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	slips, err := h.payrollService.GeneratePayslips(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payslips generated", slips)
}

func (h *payrollHandlerImpl) ListPayslips(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	slips, err := h.payrollService.ListPayslips(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, slips)
}

func (h *payrollHandlerImpl) ExportPayslipsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := runIDFromURL(r)
	if !ok {
		response.BadRequest(w, "Invalid run id", nil)
		return
	}

	data, err := h.payrollService.ExportPayslipsCSV(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%s.csv"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *payrollHandlerImpl) GetPayslip(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid payslip id", nil)
		return
	}

	slip, err := h.payrollService.GetPayslip(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, slip)
}

func (h *payrollHandlerImpl) MyPayslips(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	slips, total, err := h.payrollService.ListEmployeePayslips(r.Context(), actor, limit, (page-1)*limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := (total + limit - 1) / limit
	response.SuccessWithMeta(w, slips, &response.Meta{
		Page:       page,
		Limit:      limit,
		TotalItems: int64(total),
		TotalPages: totalPages,
	})
}

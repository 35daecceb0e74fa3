package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/sidefund"
	"github.com/meridianhr/payroll-backend-go/internal/handler/http/response"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/validator"
	sidefundsvc "github.com/meridianhr/payroll-backend-go/internal/service/sidefund"
)

type SideFundHandler interface {
	ListPending(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	UpdatePaymentDate(w http.ResponseWriter, r *http.Request)
}

type sideFundHandlerImpl struct {
	sideFundService *sidefundsvc.Service
}

func NewSideFundHandler(sideFundService *sidefundsvc.Service) SideFundHandler {
	return &sideFundHandlerImpl{sideFundService: sideFundService}
}

func (h *sideFundHandlerImpl) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, total, err := h.sideFundService.ListPending(r.Context(), actor.Role, page, limit)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	totalPages := (total + limit - 1) / limit
	response.SuccessWithMeta(w, records, &response.Meta{
		Page:       page,
		Limit:      limit,
		TotalItems: int64(total),
		TotalPages: totalPages,
	})
}

func (h *sideFundHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid record id", nil)
		return
	}

	record, err := h.sideFundService.GetByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, record)
}

func (h *sideFundHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid record id", nil)
		return
	}

	record, err := h.sideFundService.Approve(r.Context(), actor.UserID, actor.Role, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Side fund record approved", record)
}

func (h *sideFundHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid record id", nil)
		return
	}

	var req sidefund.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	record, err := h.sideFundService.Reject(r.Context(), actor.UserID, actor.Role, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Side fund record rejected", record)
}

func (h *sideFundHandlerImpl) UpdatePaymentDate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid record id", nil)
		return
	}

	var req sidefund.UpdatePaymentDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	record, err := h.sideFundService.UpdatePaymentDate(r.Context(), actor.Role, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Side fund payment date updated", record)
}

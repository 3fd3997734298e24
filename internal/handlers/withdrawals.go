package handlers

import (
	"net/http"

	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
	"github.com/go-chi/chi/v5"
)

type WithdrawalsHandler struct {
	withdrawals WithdrawalService
}

func NewWithdrawalsHandler(withdrawals WithdrawalService) *WithdrawalsHandler {
	return &WithdrawalsHandler{withdrawals: withdrawals}
}

func (h *WithdrawalsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	withdrawals, err := h.withdrawals.ListWithdrawals(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := make([]WithdrawalResponse, len(withdrawals))
	for i, wd := range withdrawals {
		response[i] = newWithdrawalResponse(wd)
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

type WithdrawalGetHandler struct {
	withdrawals WithdrawalService
}

func NewWithdrawalGetHandler(withdrawals WithdrawalService) *WithdrawalGetHandler {
	return &WithdrawalGetHandler{withdrawals: withdrawals}
}

func (h *WithdrawalGetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	wd, err := h.withdrawals.GetWithdrawal(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, newWithdrawalResponse(wd))
}

type WithdrawalStatsHandler struct {
	withdrawals WithdrawalService
}

func NewWithdrawalStatsHandler(withdrawals WithdrawalService) *WithdrawalStatsHandler {
	return &WithdrawalStatsHandler{withdrawals: withdrawals}
}

func (h *WithdrawalStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	stats, err := h.withdrawals.GetWithdrawalStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, WithdrawalStatsResponse{
		TotalWithdrawn: Money(stats.TotalWithdrawn),
		PendingAmount:  Money(stats.PendingAmount),
		TotalCount:     stats.TotalCount,
	})
}

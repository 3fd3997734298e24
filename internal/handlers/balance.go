package handlers

import (
	"net/http"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

type BalanceHandler struct {
	balances BalanceService
}

func NewBalanceHandler(balances BalanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	bal, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, BalanceResponse{
		Available:        Money(bal.Available),
		Pending:          Money(bal.Pending),
		LifetimeEarnings: Money(bal.LifetimeEarnings),
	})
	log := logger.FromContext(r.Context())
	log.Debug().
		Str("available", bal.Available.StringFixed(2)).
		Str("pending", bal.Pending.StringFixed(2)).
		Msg("returned balance")
}

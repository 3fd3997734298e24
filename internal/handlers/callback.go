package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

// PayoutCallbackHandler receives payout results pushed by the executor.
type PayoutCallbackHandler struct {
	payouts PayoutResultService
}

func NewPayoutCallbackHandler(payouts PayoutResultService) *PayoutCallbackHandler {
	return &PayoutCallbackHandler{payouts: payouts}
}

type payoutCallbackRequest struct {
	WithdrawalID  string `json:"withdrawal_id"`
	Outcome       string `json:"outcome"`
	FailureReason string `json:"failure_reason"`
}

func (h *PayoutCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req payoutCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info().Err(err).Msg("failed to decode payout callback")
		utils.WriteJSONError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	req.WithdrawalID = strings.TrimSpace(req.WithdrawalID)
	if req.WithdrawalID == "" {
		utils.WriteJSONError(w, http.StatusBadRequest, "withdrawal_id is required")
		return
	}
	outcome, ok := models.ParsePayoutOutcome(req.Outcome)
	if !ok {
		log.Info().Str("outcome", req.Outcome).Msg("unknown payout outcome")
		utils.WriteJSONError(w, http.StatusBadRequest, "unknown payout outcome")
		return
	}

	wd, err := h.payouts.HandlePayoutResult(r.Context(), req.WithdrawalID, outcome, req.FailureReason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("withdrawal_id", wd.ID).Str("state", wd.State).Msg("payout callback acknowledged")
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ack"})
}

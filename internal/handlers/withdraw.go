package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
	"github.com/shopspring/decimal"
)

type WithdrawHandler struct {
	withdrawals WithdrawalService
}

func NewWithdrawHandler(withdrawals WithdrawalService) *WithdrawHandler {
	return &WithdrawHandler{withdrawals: withdrawals}
}

type withdrawRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	PaymentMethod      string          `json:"paymentMethod"`
	PaymentEmail       string          `json:"paymentEmail"`
	PaymentDestination string          `json:"paymentDestination"`
}

func (req withdrawRequest) destination() string {
	if req.PaymentDestination != "" {
		return req.PaymentDestination
	}
	return req.PaymentEmail
}

type withdrawResponse struct {
	Withdrawal WithdrawalResponse `json:"withdrawal"`
}

func (h *WithdrawHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	log := logger.FromContext(r.Context())

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info().Err(err).Msg("failed to decode withdraw request")
		utils.WriteJSONError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	wd, err := h.withdrawals.RequestWithdrawal(r.Context(), usecase.WithdrawalRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Method:      req.PaymentMethod,
		Destination: req.destination(),
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			log.Info().Str("amount", req.Amount.StringFixed(2)).Str("withdrawal_id", wd.ID).Msg("insufficient balance for withdrawal")
		}
		writeError(w, r, err)
		return
	}

	log.Info().Str("withdrawal_id", wd.ID).Str("state", wd.State).Msg("withdrawal accepted")
	utils.WriteJSON(w, http.StatusCreated, withdrawResponse{Withdrawal: newWithdrawalResponse(wd)})
}

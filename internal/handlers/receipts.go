package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
	"github.com/shopspring/decimal"
)

type ReceiptSubmitHandler struct {
	receipts ReceiptService
	now      func() time.Time
}

func NewReceiptSubmitHandler(receipts ReceiptService) *ReceiptSubmitHandler {
	return &ReceiptSubmitHandler{receipts: receipts, now: time.Now}
}

type submitReceiptRequest struct {
	Merchant  string           `json:"merchant"`
	Category  string           `json:"category"`
	Subtotal  *decimal.Decimal `json:"subtotal"`
	DedupeKey string           `json:"dedupe_key"`
}

type submitReceiptResponse struct {
	Receipt          ReceiptResponse `json:"receipt"`
	Earned           Money           `json:"earned"`
	Multiplier       int             `json:"multiplier"`
	AvailableBalance Money           `json:"available_balance"`
}

func (h *ReceiptSubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}
	log := logger.FromContext(r.Context())

	var req submitReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info().Err(err).Msg("failed to decode receipt request")
		utils.WriteJSONError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.Subtotal == nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "subtotal is required")
		return
	}

	result, err := h.receipts.SubmitReceipt(r.Context(), usecase.ReceiptSubmission{
		UserID:    userID,
		Merchant:  req.Merchant,
		Category:  req.Category,
		Subtotal:  *req.Subtotal,
		DedupeKey: req.DedupeKey,
	}, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, submitReceiptResponse{
		Receipt:          newReceiptResponse(result.Entry),
		Earned:           Money(result.Earned),
		Multiplier:       result.Multiplier,
		AvailableBalance: Money(result.NewAvailable),
	})
}

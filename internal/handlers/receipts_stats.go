package handlers

import (
	"net/http"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

type ReceiptStatsHandler struct {
	receipts ReceiptService
	now      func() time.Time
}

func NewReceiptStatsHandler(receipts ReceiptService) *ReceiptStatsHandler {
	return &ReceiptStatsHandler{receipts: receipts, now: time.Now}
}

func (h *ReceiptStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	stats, err := h.receipts.GetStats(r.Context(), userID, r.URL.Query().Get("period"), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, newStatsResponse(stats))
}

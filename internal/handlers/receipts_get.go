package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

type ReceiptsListHandler struct {
	receipts ReceiptService
}

func NewReceiptsListHandler(receipts ReceiptService) *ReceiptsListHandler {
	return &ReceiptsListHandler{receipts: receipts}
}

func (h *ReceiptsListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	filter, msg := parseEntryFilter(r)
	if msg != "" {
		log := logger.FromContext(r.Context())
		log.Info().Str("reason", msg).Msg("invalid receipts query")
		utils.WriteJSONError(w, http.StatusBadRequest, msg)
		return
	}

	entries, err := h.receipts.ListReceipts(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := make([]ReceiptResponse, len(entries))
	for i, e := range entries {
		response[i] = newReceiptResponse(e)
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

func parseEntryFilter(r *http.Request) (models.EntryFilter, string) {
	q := r.URL.Query()
	filter := models.EntryFilter{Category: q.Get("category"), Limit: constants.DefaultListLimit}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return filter, "limit must be a positive integer"
		}
		filter.Limit = min(limit, constants.DefaultListLimit)
	}
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, "from must be an RFC 3339 timestamp"
		}
		filter.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, "to must be an RFC 3339 timestamp"
		}
		filter.To = t
	}
	return filter, ""
}

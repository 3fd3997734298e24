package handlers

import (
	"errors"
	"net/http"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

// writeError maps a usecase error to a status code and a client message.
// Validation and policy messages are passed through so clients can tell
// them apart; everything else is reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	switch models.KindOf(err) {
	case models.KindValidation:
		log.Info().Err(err).Msg("request rejected: validation")
		utils.WriteJSONError(w, http.StatusBadRequest, err.Error())
	case models.KindPolicy:
		log.Info().Err(err).Msg("request rejected: policy")
		switch {
		case errors.Is(err, models.ErrDuplicateReceipt):
			utils.WriteJSONError(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrDailyLimitExceeded):
			utils.WriteJSONError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, models.ErrInsufficientBalance):
			utils.WriteJSONError(w, http.StatusBadRequest, "Insufficient balance")
		default:
			utils.WriteJSONError(w, http.StatusBadRequest, err.Error())
		}
	case models.KindNotFound:
		log.Info().Err(err).Msg("resource not found")
		utils.WriteJSONError(w, http.StatusNotFound, "Not found")
	case models.KindConflict:
		log.Warn().Err(err).Msg("request conflicts with current state")
		utils.WriteJSONError(w, http.StatusConflict, err.Error())
	case models.KindExternal:
		log.Warn().Err(err).Msg("payout provider failure")
		utils.WriteJSONError(w, http.StatusBadGateway, "Payout provider rejected the withdrawal")
	case models.KindConsistency:
		log.Error().Err(err).Msg("ledger consistency fault")
		utils.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	default:
		log.Error().Err(err).Msg("internal error")
		utils.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	log.Warn().Msg("missing user_id in context")
	utils.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
}

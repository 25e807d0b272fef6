package http

import (
	"net/http"
	"strconv"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
)

const defaultHistoryLimit = 20

func (h *Handler) recentHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []models.HistoryEntry{})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.FromRequest(r).Error().Err(err).Msg("history read failed")
		writeError(w, statusFromError(err), "history unavailable")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

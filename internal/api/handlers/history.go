package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/aidoctor/internal/audit"
)

type HistoryLister interface {
	ListAnalyses(ctx context.Context, q audit.HistoryQuery) ([]audit.Analysis, error)
}

type HistoryHandler struct {
	history HistoryLister
}

func NewHistoryHandler(history HistoryLister) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := audit.HistoryQuery{}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be RFC3339")
			return
		}
		q.StartDate = &t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be RFC3339")
			return
		}
		q.EndDate = &t
	}

	analyses, err := h.history.ListAnalyses(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": analyses, "count": len(analyses)})
}

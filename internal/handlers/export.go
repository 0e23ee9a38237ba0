package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"certverify/internal/models"
	"certverify/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportCSV: GET /api/v1/verifications/export.csv?limit=N (operator)
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv", "verification_report.csv", report.WriteCSV)
}

// ExportXLSX: GET /api/v1/verifications/export.xlsx?limit=N (operator)
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, xlsxContentType, "verification_report.xlsx", report.WriteXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, contentType, filename string,
	write func(io.Writer, []models.VerificationRecord) error) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Bad_Request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := h.store.List(r.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("list verifications")
		writeError(w, http.StatusInternalServerError, "Internal_Error", "failed to list verifications")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := write(w, recs); err != nil {
		logrus.WithError(err).WithField("format", filename).Warn("write export")
	}
}

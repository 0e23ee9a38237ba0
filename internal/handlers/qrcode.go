package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"certverify/internal/qr"
)

const qrSize = 256

// GetVerificationQRCode: GET /api/v1/verifications/{id}/qrcode
// PNG of the frontend link for the verification.
func (h *Handler) GetVerificationQRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}

	png, err := qr.Encode(fmt.Sprintf("%s/verify/%s", h.cfg.FrontendBaseURL, url.PathEscape(id)), qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal_Error", "failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

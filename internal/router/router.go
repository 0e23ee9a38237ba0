package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"certverify/internal/handlers"
	"certverify/internal/middleware"
)

// RegisterRouter builds the API. Share link creation and report exports
// require an operator bearer token signed with adminSecret.
func RegisterRouter(h *handlers.Handler, allowedOrigins []string, adminSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.LoggingMiddleware)

	r.Get("/api/v1/health", h.Health)
	r.Post("/api/v1/verify", h.VerifyDocument)

	r.Route("/api/v1/verifications", func(r chi.Router) {
		// Public verify data (token required via query param)
		r.Get("/{id}", h.GetVerification)
		r.Get("/{id}/qrcode", h.GetVerificationQRCode)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(adminSecret))
			r.Get("/export.csv", h.ExportCSV)
			r.Get("/export.xlsx", h.ExportXLSX)
			r.Post("/{id}/share-link", h.GenerateShareLink)
		})
	})
	return r
}

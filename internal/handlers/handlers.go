package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"certverify/internal/models"
)

// Verifier is the verification engine as seen by the HTTP layer.
type Verifier interface {
	Verify(ctx context.Context, userPath, officialPath string) (models.VerificationResult, error)
	ResolveOfficial(ctx context.Context, qrPayload string) (string, error)
}

// Store persists and loads verification records.
type Store interface {
	Save(ctx context.Context, res models.VerificationResult) (models.VerificationRecord, bool, error)
	Get(ctx context.Context, id string) (models.VerificationRecord, error)
	List(ctx context.Context, limit int) ([]models.VerificationRecord, error)
}

// QRDecoder reads the payload of a QR code in an image file.
type QRDecoder func(path string) (string, error)

// Config tunes a Handler. Uploaded and fetched documents are deleted once a
// request finishes unless RetainFiles is set.
type Config struct {
	UploadDir       string
	MaxUploadBytes  int64
	ShareSecret     []byte
	FrontendBaseURL string
	RetainFiles     bool
}

// Handler serves the verification API.
type Handler struct {
	cfg      Config
	verifier Verifier
	store    Store
	decodeQR QRDecoder
	now      func() time.Time
}

func New(cfg Config, v Verifier, s Store, decodeQR QRDecoder) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.FrontendBaseURL == "" {
		cfg.FrontendBaseURL = "http://localhost:3000"
	}
	return &Handler{cfg: cfg, verifier: v, store: s, decodeQR: decodeQR, now: time.Now}
}

func writeJSONResp(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSONResp(w, status, map[string]any{"status": code, "message": message})
}

// Health: GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResp(w, http.StatusOK, map[string]any{"status": "ok"})
}

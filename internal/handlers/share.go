package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"certverify/internal/report"
)

const (
	minShareHours = 1
	maxShareHours = 168
)

const invalidLinkMsg = "This verification link is invalid or has expired."

type shareClaims struct {
	VerificationID string `json:"verification_id"`
	jwt.RegisteredClaims
}

type shareLinkResp struct {
	ShareableURL string    `json:"shareable_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GenerateShareLink: POST /api/v1/verifications/{id}/share-link
// body {"expires_in_hours": 1..168}
func (h *Handler) GenerateShareLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(h.cfg.ShareSecret) == 0 {
		writeError(w, http.StatusInternalServerError, "Server_Misconfigured", "share links are not configured")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Bad_Request", "invalid json")
		return
	}
	hours, ok := 0, false
	for _, key := range []string{"expires_in_hours", "expiresInHours", "duration"} {
		if v, present := payload[key]; present {
			hours, ok = parseHours(v)
			break
		}
	}
	if !ok || hours < minShareHours || hours > maxShareHours {
		writeError(w, http.StatusBadRequest, "Bad_Request", fmt.Sprintf("expires_in_hours must be between %d and %d", minShareHours, maxShareHours))
		return
	}

	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}

	now := h.now()
	exp := now.Add(time.Duration(hours) * time.Hour)
	claims := shareClaims{
		VerificationID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.cfg.ShareSecret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal_Error", "failed to sign share token")
		return
	}
	link := fmt.Sprintf("%s/verify/%s?token=%s", h.cfg.FrontendBaseURL, url.PathEscape(id), url.QueryEscape(signed))
	writeJSONResp(w, http.StatusOK, shareLinkResp{ShareableURL: link, ExpiresAt: exp.UTC()})
}

// GetVerification: GET /api/v1/verifications/{id}?token=...
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" || len(h.cfg.ShareSecret) == 0 {
		writeError(w, http.StatusUnauthorized, "Unauthorized", invalidLinkMsg)
		return
	}

	claims := &shareClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return h.cfg.ShareSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(h.now))
	if err != nil {
		logrus.WithError(err).WithField("verification_id", id).Debug("share token rejected")
		writeError(w, http.StatusUnauthorized, "Unauthorized", invalidLinkMsg)
		return
	}
	if claims.VerificationID != id {
		writeError(w, http.StatusForbidden, "Forbidden", "forbidden: id mismatch")
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSONResp(w, http.StatusOK, map[string]any{
		"verification": rec,
		"valid_until":  claims.ExpiresAt.Time.UTC(),
	})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not_Found", "verification not found")
		return
	}
	logrus.WithError(err).Error("load verification")
	writeError(w, http.StatusInternalServerError, "Internal_Error", "failed to load verification")
}

// parseHours accepts a JSON number or a numeric string.
func parseHours(x any) (int, bool) {
	switch t := x.(type) {
	case float64:
		return int(t), t == float64(int(t))
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

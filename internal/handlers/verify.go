package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"certverify/internal/documents"
	"certverify/internal/models"
	"certverify/internal/verify"
)

type verifyResp struct {
	Status string                    `json:"status"`
	Saved  bool                      `json:"saved"`
	Result models.VerificationResult `json:"result"`
}

// VerifyDocument: POST /api/v1/verify
// multipart/form-data with file field "certificate", and optionally an
// "official" file or a "qr_url" value. Without either, the QR code on the
// certificate image, or on the first page of a PDF certificate, is scanned.
func (h *Handler) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Bad_Request", "failed to parse form or file too large")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var files []string
	defer func() { h.discard(files) }()

	userPath, userName, err := h.saveUpload(r, "certificate")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad_Request", err.Error())
		return
	}
	if userPath == "" {
		writeError(w, http.StatusBadRequest, "Bad_Request", "missing file field 'certificate' (send multipart/form-data with field name 'certificate')")
		return
	}
	files = append(files, userPath)
	log := logrus.WithField("upload", userName)

	officialPath, officialName, err := h.saveUpload(r, "official")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad_Request", err.Error())
		return
	}
	if officialPath != "" {
		files = append(files, officialPath)
	} else {
		officialPath, err = h.resolveOfficial(r, userPath)
		if err != nil {
			log.WithError(err).Warn("official document unavailable")
			writeJSONResp(w, http.StatusOK, map[string]any{
				"status":  "Official_Unavailable",
				"message": verify.ErrOfficialUnavailable.Error(),
				"reason":  err.Error(),
			})
			return
		}
		files = append(files, officialPath)
		officialName = filepath.Base(officialPath)
	}

	res, err := h.verifier.Verify(r.Context(), userPath, officialPath)
	switch {
	case errors.Is(err, verify.ErrOfficialUnavailable):
		writeError(w, http.StatusOK, "Official_Unavailable", err.Error())
		return
	case errors.Is(err, verify.ErrExtraction):
		log.WithError(err).Warn("text extraction failed")
		writeError(w, http.StatusUnprocessableEntity, "Extraction_Failed", err.Error())
		return
	case err != nil:
		log.WithError(err).Error("verification failed")
		writeError(w, http.StatusInternalServerError, "Internal_Error", "verification failed")
		return
	}
	res.UserFile = userName
	res.OfficialFile = officialName

	_, saved, err := h.store.Save(r.Context(), res)
	if err != nil {
		log.WithError(err).Warn("report not saved")
		res.Warnings = append(res.Warnings, "report not saved")
	}
	writeJSONResp(w, http.StatusOK, verifyResp{Status: "OK", Saved: saved, Result: res})
}

// discard removes the request's uploaded and fetched documents unless the
// handler is configured to retain them.
func (h *Handler) discard(paths []string) {
	if h.cfg.RetainFiles {
		return
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", p).Warn("remove document")
		}
	}
}

// resolveOfficial finds the QR payload from the qr_url field or the uploaded
// image and fetches the document it points to.
func (h *Handler) resolveOfficial(r *http.Request, userPath string) (string, error) {
	payload := strings.TrimSpace(r.FormValue("qr_url"))
	if payload == "" {
		if h.decodeQR == nil {
			return "", errors.New("QR scanning is not configured")
		}
		var err error
		if payload, err = h.decodeQR(userPath); err != nil {
			return "", fmt.Errorf("scan QR code: %w", err)
		}
	}
	return h.verifier.ResolveOfficial(r.Context(), payload)
}

// saveUpload stores the named multipart file under the upload dir. It
// returns an empty path when the field is absent.
func (h *Handler) saveUpload(r *http.Request, field string) (string, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("read file field %q: %w", field, err)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !documents.SupportedExtension(name) {
		return "", "", fmt.Errorf("unsupported file type %q for field %q", filepath.Ext(name), field)
	}
	path, err := h.writeUpload(file, strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", "", err
	}
	return path, name, nil
}

func (h *Handler) writeUpload(src multipart.File, ext string) (string, error) {
	dir := h.cfg.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return dst.Name(), nil
}

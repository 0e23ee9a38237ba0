package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

// minNativeText is the shortest PDF text layer trusted without OCR.
const minNativeText = 20

var ErrNoOCR = errors.New("no OCR engine configured")

// OCR recognizes text in rendered documents.
type OCR interface {
	ImageText(ctx context.Context, data []byte) (string, error)
	PDFText(ctx context.Context, data []byte) (string, error)
}

// Router picks a text source by file extension: plain text is read as is,
// PDFs use their text layer and fall back to OCR, images always go to OCR.
type Router struct {
	ocr OCR
}

// NewRouter returns a Router. ocr may be nil, in which case only text files
// and PDFs with a usable text layer can be read.
func NewRouter(ocr OCR) *Router {
	return &Router{ocr: ocr}
}

// SupportedExtension reports whether path has a type ExtractText handles.
func SupportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf", ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func (r *Router) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	case ".pdf":
		return r.pdfText(ctx, path)
	case ".png", ".jpg", ".jpeg":
		if r.ocr == nil {
			return "", ErrNoOCR
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return r.ocr.ImageText(ctx, data)
	}
	return "", fmt.Errorf("unsupported document type %q", ext)
}

func (r *Router) pdfText(ctx context.Context, path string) (string, error) {
	text, err := nativePDFText(path)
	if err == nil && len(strings.TrimSpace(text)) > minNativeText {
		return strings.TrimSpace(text), nil
	}
	if err != nil {
		logrus.WithError(err).WithField("path", path).Debug("pdf text layer unreadable, trying OCR")
	}
	if r.ocr == nil {
		if err != nil {
			return "", fmt.Errorf("pdf text layer: %w", err)
		}
		return "", fmt.Errorf("pdf %s has no text layer: %w", filepath.Base(path), ErrNoOCR)
	}
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return "", fmt.Errorf("read %s: %w", path, rerr)
	}
	return r.ocr.PDFText(ctx, data)
}

func nativePDFText(path string) (text string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

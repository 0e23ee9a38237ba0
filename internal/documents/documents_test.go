package documents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileHash(t *testing.T) {
	a := writeFile(t, "a.pdf", []byte("same bytes"))
	b := writeFile(t, "b.pdf", []byte("same bytes"))
	c := writeFile(t, "c.pdf", []byte("other bytes"))

	var h SHA256Hasher
	ha, err := h.FileHash(a)
	require.NoError(t, err)
	hb, err := h.FileHash(b)
	require.NoError(t, err)
	hc, err := h.FileHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.Len(t, ha, 64)

	_, err = h.FileHash(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

type fakeOCR struct {
	text       string
	err        error
	imageCalls int
	pdfCalls   int
}

func (f *fakeOCR) ImageText(context.Context, []byte) (string, error) {
	f.imageCalls++
	return f.text, f.err
}

func (f *fakeOCR) PDFText(context.Context, []byte) (string, error) {
	f.pdfCalls++
	return f.text, f.err
}

func TestRouterPlainText(t *testing.T) {
	path := writeFile(t, "cert.txt", []byte("RAHUL KUMAR\nProgramming In Java"))
	text, err := NewRouter(nil).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "RAHUL KUMAR\nProgramming In Java", text)
}

func TestRouterImageUsesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "ocr text"}
	path := writeFile(t, "cert.PNG", []byte{0x89, 'P', 'N', 'G'})

	text, err := NewRouter(ocr).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ocr text", text)
	assert.Equal(t, 1, ocr.imageCalls)

	_, err = NewRouter(nil).ExtractText(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoOCR)
}

func TestRouterUnreadablePDFFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "scanned certificate text"}
	path := writeFile(t, "scan.pdf", []byte("not really a pdf"))

	text, err := NewRouter(ocr).ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "scanned certificate text", text)
	assert.Equal(t, 1, ocr.pdfCalls)

	_, err = NewRouter(nil).ExtractText(context.Background(), path)
	assert.Error(t, err)
}

func TestRouterOCRError(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("quota exceeded")}
	path := writeFile(t, "cert.jpg", []byte("jpeg"))

	_, err := NewRouter(ocr).ExtractText(context.Background(), path)
	assert.EqualError(t, err, "quota exceeded")
}

func TestRouterUnsupportedType(t *testing.T) {
	path := writeFile(t, "cert.docx", []byte("word"))
	_, err := NewRouter(&fakeOCR{}).ExtractText(context.Background(), path)
	assert.Error(t, err)
	assert.False(t, SupportedExtension(path))
	assert.True(t, SupportedExtension("x.JPEG"))
}

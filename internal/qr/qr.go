package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// pdfDPI is the resolution the first PDF page is rendered at for scanning.
const pdfDPI = 200

var (
	// ErrNotFound means the document was readable but held no QR code.
	ErrNotFound = errors.New("no QR code found")
	// ErrUnsupported means the file type cannot be scanned.
	ErrUnsupported = errors.New("QR scan supports PDF, PNG and JPEG files only")
)

// DecodeFile reads the first QR code in the image at path, or on the first
// page of the PDF at path.
func DecodeFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
	case ".pdf":
		return DecodePDF(path)
	default:
		return "", ErrUnsupported
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// DecodePDF renders the first page of the PDF at path with MuPDF and reads
// the QR code on it.
func DecodePDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return "", ErrNotFound
	}
	img, err := doc.ImageDPI(0, pdfDPI)
	if err != nil {
		return "", fmt.Errorf("render first page of %s: %w", path, err)
	}
	return decodeImage(img)
}

// Decode reads the first QR code in an encoded PNG or JPEG image.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("image not readable: %w", err)
	}
	return decodeImage(img)
}

func decodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", ErrNotFound
	}
	text := strings.TrimSpace(result.GetText())
	if text == "" {
		return "", ErrNotFound
	}
	return text, nil
}

// Encode renders content as a PNG QR code of size x size pixels.
func Encode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
}

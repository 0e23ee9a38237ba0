package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeThenDecode(t *testing.T) {
	const url = "https://archive.nptel.ac.in/noc/Ecertificate/?q=NPTEL23CS68S123456789"

	data, err := Encode(url, 256)
	require.NoError(t, err)
	assert.True(t, IsPNG(data))

	got, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, url, got)

	path := filepath.Join(t.TempDir(), "cert.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	got, err = DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, url, got)
}

func TestDecodeBlankImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	_, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrNotFound)
}

// singleImagePDF builds a one page PDF whose only content is img drawn as a
// 256pt square.
func singleImagePDF(t *testing.T, img image.Image) []byte {
	t.Helper()
	b := img.Bounds()
	pix := make([]byte, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pix = append(pix, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	content := "q 256 0 0 256 22 22 cm /Im0 Do Q"

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string, stream []byte) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", len(offsets), body)
		if stream != nil {
			buf.WriteString("stream\n")
			buf.Write(stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}
	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>", nil)
	obj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>", nil)
	obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 300] /Resources << /XObject << /Im0 4 0 R >> >> /Contents 5 0 R >>", nil)
	obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>",
		b.Dx(), b.Dy(), len(pix)), pix)
	obj(fmt.Sprintf("<< /Length %d >>", len(content)), []byte(content))

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestDecodePDFFirstPage(t *testing.T) {
	const url = "https://archive.nptel.ac.in/noc/Ecertificate/?q=NPTEL23CS68S123456789"
	code, err := qrcode.New(url, qrcode.Medium)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "certificate.pdf")
	require.NoError(t, os.WriteFile(path, singleImagePDF(t, code.Image(256)), 0o600))

	got, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, url, got)
}

func TestDecodePDFWithoutQR(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	dir := t.TempDir()

	path := filepath.Join(dir, "blank.pdf")
	require.NoError(t, os.WriteFile(path, singleImagePDF(t, blank), 0o600))
	_, err := DecodePDF(path)
	assert.ErrorIs(t, err, ErrNotFound)

	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("not a pdf at all"), 0o600))
	_, err = DecodeFile(broken)
	assert.Error(t, err)
}

func TestDecodeRejectsNonImages(t *testing.T) {
	_, err := DecodeFile("certificate.docx")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode(bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)
}

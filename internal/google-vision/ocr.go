package googlevision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// maxPDFPages is the most pages Vision annotates inline per file request.
const maxPDFPages = 5

// Client is a Cloud Vision OCR engine. Create one per process with New and
// Close it at shutdown.
type Client struct {
	vc *vision.ImageAnnotatorClient
}

// New connects to Cloud Vision. An empty credPath uses application default
// credentials.
func New(ctx context.Context, credPath string) (*Client, error) {
	var opts []option.ClientOption
	if credPath != "" {
		opts = append(opts, option.WithCredentialsFile(credPath))
	}
	vc, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init OCR client: %w", err)
	}
	logrus.WithField("credentials_file", credPath != "").Info("vision OCR client ready")
	return &Client{vc: vc}, nil
}

func (c *Client) Close() error {
	if c == nil || c.vc == nil {
		return nil
	}
	return c.vc.Close()
}

// ImageText returns the document text detected in an encoded image.
func (c *Client) ImageText(ctx context.Context, data []byte) (string, error) {
	resp, err := c.vc.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: documentTextFeature(),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate image: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", errors.New("vision returned no annotation")
	}
	r := resp.GetResponses()[0]
	if e := r.GetError(); e != nil && e.GetMessage() != "" {
		return "", fmt.Errorf("vision annotate image: %s", e.GetMessage())
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

// PDFText OCRs up to the first five pages of an inline PDF and joins their text.
func (c *Client) PDFText(ctx context.Context, data []byte) (string, error) {
	pages := make([]int32, maxPDFPages)
	for i := range pages {
		pages[i] = int32(i + 1)
	}
	resp, err := c.vc.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: data, MimeType: "application/pdf"},
			Features:    documentTextFeature(),
			Pages:       pages,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision annotate pdf: %w", err)
	}

	var parts []string
	for _, fr := range resp.GetResponses() {
		if e := fr.GetError(); e != nil && e.GetMessage() != "" {
			return "", fmt.Errorf("vision annotate pdf: %s", e.GetMessage())
		}
		for _, ir := range fr.GetResponses() {
			if t := strings.TrimSpace(ir.GetFullTextAnnotation().GetText()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

func documentTextFeature() []*visionpb.Feature {
	return []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}
}

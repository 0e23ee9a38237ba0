package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultMaxBytes = 20 << 20
	maxPageBytes    = 5 << 20
)

var pdfMagic = []byte("%PDF")

// Link texts tried in order before falling back to any PDF link.
var linkKeywords = []string{"Course Certificate", "Download Certificate", "View Certificate", "Certificate"}

const maxRedirects = 10

var (
	ErrNoPDFLink      = errors.New("no PDF link found on QR landing page")
	ErrHostNotAllowed = errors.New("host is not in the allowed list")
)

// Config tunes a Resolver. An empty DownloadDir means os.TempDir(); CacheTTL
// bounds how long a landing page to PDF link mapping is reused.
//
// AllowedHosts restricts every request, redirects included, to the listed
// hosts and their subdomains. An empty list allows any host.
type Config struct {
	DownloadDir  string
	Timeout      time.Duration
	CacheTTL     time.Duration
	MaxBytes     int64
	AllowedHosts []string
}

// Resolver fetches the official certificate behind a QR payload URL over
// plain HTTP. The QR URL may serve the PDF directly or an HTML landing page
// that links to it.
type Resolver struct {
	client   *http.Client
	dir      string
	cache    LinkCache
	ttl      time.Duration
	maxBytes int64
	allowed  []string
}

// NewResolver returns a Resolver. cache may be nil.
func NewResolver(cfg Config, cache LinkCache) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	r := &Resolver{
		dir:      cfg.DownloadDir,
		cache:    cache,
		ttl:      cfg.CacheTTL,
		maxBytes: cfg.MaxBytes,
	}
	for _, h := range cfg.AllowedHosts {
		if h = strings.ToLower(strings.Trim(strings.TrimSpace(h), ".")); h != "" {
			r.allowed = append(r.allowed, h)
		}
	}
	r.client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return r.checkHost(req.URL)
		},
	}
	return r
}

// HostAllowed reports whether u may be fetched.
func (r *Resolver) HostAllowed(u *url.URL) bool {
	if len(r.allowed) == 0 {
		return true
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	for _, h := range r.allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (r *Resolver) checkHost(u *url.URL) error {
	if !r.HostAllowed(u) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}
	return nil
}

// Resolve downloads the official PDF for qrURL and returns its local path.
func (r *Resolver) Resolve(ctx context.Context, qrURL string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(qrURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", fmt.Errorf("QR payload is not an http(s) URL: %q", qrURL)
	}
	log := logrus.WithField("qr_url", base.String())
	key := cacheKey(base.String())

	if r.cache != nil {
		if pdfURL, ok, err := r.cache.Get(ctx, key); err != nil {
			log.WithError(err).Warn("pdf link cache read")
		} else if ok {
			path, err := r.download(ctx, pdfURL)
			if err == nil {
				log.WithField("pdf_url", pdfURL).Debug("pdf link cache hit")
				return path, nil
			}
			log.WithError(err).Warn("cached pdf link failed, rescanning landing page")
		}
	}

	body, contentType, err := r.get(ctx, base.String(), maxPageBytes)
	if err != nil {
		return "", err
	}
	if isPDF(body, contentType) {
		return r.save(body)
	}

	pdfURL, err := FindPDFLink(base, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, pdfURL, r.ttl); err != nil {
			log.WithError(err).Warn("pdf link cache write")
		}
	}
	log.WithField("pdf_url", pdfURL).Info("found official pdf link")
	return r.download(ctx, pdfURL)
}

func (r *Resolver) download(ctx context.Context, pdfURL string) (string, error) {
	body, contentType, err := r.get(ctx, pdfURL, r.maxBytes)
	if err != nil {
		return "", err
	}
	if !isPDF(body, contentType) {
		return "", fmt.Errorf("document at %s is not a PDF", pdfURL)
	}
	return r.save(body)
}

// get reads at most limit bytes of a 200 response.
func (r *Resolver) get(ctx context.Context, target string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if err := r.checkHost(req.URL); err != nil {
		return nil, "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download %s, status %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("%s exceeds %d bytes", target, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (r *Resolver) save(data []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.CreateTemp(r.dir, "official-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write download file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close download file: %w", err)
	}
	return f.Name(), nil
}

// FindPDFLink scans an HTML page for the certificate PDF link. Anchors whose
// text contains a certificate keyword win, in keyword order; otherwise the
// first anchor, iframe or embed pointing at a .pdf is used. Relative links
// are resolved against base.
func FindPDFLink(base *url.URL, page io.Reader) (string, error) {
	doc, err := html.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse landing page: %w", err)
	}

	type link struct {
		href string
		text string
	}
	var links []link
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				links = append(links, link{href: attr(n, "href"), text: nodeText(n)})
			case "iframe", "embed":
				links = append(links, link{href: attr(n, "src")})
			case "object":
				links = append(links, link{href: attr(n, "data")})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	isPDFLink := func(l link) bool {
		return strings.Contains(strings.ToLower(l.href), ".pdf")
	}
	for _, kw := range linkKeywords {
		kw = strings.ToLower(kw)
		for _, l := range links {
			if isPDFLink(l) && strings.Contains(strings.ToLower(l.text), kw) {
				return absolute(base, l.href)
			}
		}
	}
	for _, l := range links {
		if isPDFLink(l) {
			return absolute(base, l.href)
		}
	}
	return "", ErrNoPDFLink
}

func absolute(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("bad pdf link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isPDF(body []byte, contentType string) bool {
	if bytes.HasPrefix(body, pdfMagic) {
		return true
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	return mt == "application/pdf" && len(body) > 0
}

func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

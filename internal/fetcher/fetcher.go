package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

const (
	defaultReadChunkSize = 128
	maxRedirects         = 10
	userAgent            = "document-qa/1.0"
)

// Fetcher turns a public URL into a document. Responses typed "application/*" are
// downloaded and handed to the file parser; anything else is read as a web page.
type Fetcher struct {
	client        *http.Client
	parser        parser.Parser
	downloadDir   string
	readChunkSize int
	validate      func(string) error
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithDownloadDir(dir string) Option {
	return func(f *Fetcher) { f.downloadDir = dir }
}

// WithReadChunkSize sets how many bytes are read per iteration while downloading.
func WithReadChunkSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.readChunkSize = n
		}
	}
}

// WithValidator replaces ValidatePublicURL.
func WithValidator(fn func(string) error) Option {
	return func(f *Fetcher) { f.validate = fn }
}

func New(p parser.Parser, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:        &http.Client{},
		parser:        p,
		downloadDir:   ".",
		readChunkSize: defaultReadChunkSize,
		validate:      ValidatePublicURL,
	}
	for _, opt := range opts {
		opt(f)
	}

	// every redirect hop must pass the same validation as the first request
	client := *f.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return f.validate(req.URL.String())
	}
	f.client = &client
	return f
}

// Fetch validates rawURL and extracts its text. A URL that fails validation returns a
// *ValidationError without any request being sent.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Document, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := f.validate(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType := mediaTypeOf(contentType)
	log.Debug().Str("url", rawURL).Str("content_type", mediaType).Msg("Fetched url")

	if isFile(mediaType) {
		return f.download(rawURL, mediaType, resp.Body)
	}

	body, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	text, err := parser.StripMarkup(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return &models.Document{
		Source:  rawURL,
		Content: parser.ToASCII(text),
	}, nil
}

func (f *Fetcher) download(rawURL, mediaType string, body io.Reader) (*models.Document, error) {
	if err := helper.CreateFolder(f.downloadDir); err != nil {
		return nil, err
	}
	filePath := filepath.Join(f.downloadDir, DownloadName(rawURL, mediaType))

	out, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filePath, err)
	}
	written, err := copyInChunks(out, body, f.readChunkSize)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	log.Info().Str("url", rawURL).Str("file", filePath).Int64("bytes", written).Msg("Downloaded file")

	text, err := f.parser.ExtractFile(filePath)
	if err != nil {
		return nil, err
	}
	return &models.Document{
		Source:  rawURL,
		Path:    filePath,
		Content: text,
	}, nil
}

func copyInChunks(dst io.Writer, src io.Reader, size int) (int64, error) {
	buf := make([]byte, size)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}

// isFile reports whether the response is a downloadable file rather than a web page.
func isFile(mediaType string) bool {
	primary, _, _ := strings.Cut(mediaType, "/")
	return primary == "application" && mediaType != "application/xhtml+xml"
}

var subtypeExtensions = map[string]string{
	"pdf":  "pdf",
	"json": "json",
	"vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"vnd.ms-excel.sheet.macroenabled.12":                            "xlsm",
}

// subtypes that say nothing about the format; the URL's own extension is kept
var genericSubtypes = map[string]bool{
	"octet-stream":   true,
	"zip":            true,
	"x-download":     true,
	"force-download": true,
	"binary":         true,
}

// DownloadName derives a flat, filesystem-safe file name from the URL host and path.
// The path's extension is replaced by one matching the response media type.
func DownloadName(rawURL, mediaType string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return sanitize(rawURL)
	}
	urlPath := strings.TrimSuffix(u.Path, "/")
	urlExt := strings.TrimPrefix(path.Ext(urlPath), ".")
	stem := strings.Trim(path.Join(u.Host, strings.TrimSuffix(urlPath, path.Ext(urlPath))), "/")

	_, subtype, _ := strings.Cut(mediaType, "/")
	ext, ok := subtypeExtensions[subtype]
	switch {
	case ok:
	case genericSubtypes[subtype] && urlExt != "":
		ext = strings.ToLower(urlExt)
	case subtype != "" && !genericSubtypes[subtype]:
		ext = subtype
	default:
		ext = "bin"
	}
	return sanitize(stem) + "." + sanitize(ext)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
}

// Package pdf turns a PDF document, addressed by local path or URL, into
// per-page plain text. Only the embedded text layer is read; scanned
// image-only PDFs come back as blank pages.
package pdf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode"

	ledongthuc "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// PageSeparator delimits page boundaries when a page array is flattened into
// a single string. Form feed never survives Scrub, so it cannot collide with
// page content.
const PageSeparator = "\f"

// PagePlaceholder is stored for a page whose content stream could not be
// decoded. The page keeps its slot so page numbers stay aligned with the
// physical document.
const PagePlaceholder = "[unavailable]"

const defaultFetchTimeout = 60 * time.Second

// ExtractionError is a whole-document failure: the source could not be
// fetched, opened, or parsed at all. Per-page decode failures are not errors.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor decodes PDF documents into page text. Safe for concurrent use;
// each Extract call opens its own reader.
type Extractor struct {
	logger       *zap.Logger
	client       *http.Client
	fetchTimeout time.Duration
}

type Option func(*Extractor)

// WithFetchTimeout bounds the download of a remote source.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.fetchTimeout = d }
}

// WithHTTPClient replaces the client used for remote sources.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

func New(logger *zap.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: e.fetchTimeout}
	}
	return e
}

// Extract decodes every page of the document at source, in ascending page
// order. Pages that fail to decode are replaced with PagePlaceholder; blank
// pages stay as empty strings, so the index of each entry plus one is always
// the physical page number.
func (e *Extractor) Extract(ctx context.Context, source string) ([]string, error) {
	path := source
	if isRemote(source) {
		local, cleanup, err := e.fetch(ctx, source)
		if err != nil {
			return nil, &ExtractionError{Source: source, Err: err}
		}
		defer cleanup()
		path = local
	}

	f, reader, err := ledongthuc.Open(path)
	if err != nil {
		return nil, &ExtractionError{Source: source, Err: err}
	}
	defer f.Close()

	numPages := reader.NumPage()
	fonts := make(map[string]*ledongthuc.Font)
	pages := make([]string, 0, numPages)

	for num := 1; num <= numPages; num++ {
		text, err := pageText(reader, num, fonts)
		if err != nil {
			e.logger.Warn("page decode failed",
				zap.String("source", source),
				zap.Int("page", num),
				zap.Error(err))
			text = PagePlaceholder
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pageText decodes a single page. The ledongthuc parser panics on some
// malformed content streams, so the recover turns those into per-page errors.
func pageText(reader *ledongthuc.Reader, num int, fonts map[string]*ledongthuc.Font) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: null page object", num)
	}

	for _, name := range page.Fonts() {
		if _, ok := fonts[name]; !ok {
			font := page.Font(name)
			fonts[name] = &font
		}
	}

	raw, err := page.GetPlainText(fonts)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", num, err)
	}
	return Scrub(raw), nil
}

// Scrub normalizes decoded page text to NFC and drops control and private-use
// runes the text layer tends to leak, including the page separator itself.
func Scrub(text string) string {
	text = norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '�':
			return -1
		case unicode.IsControl(r):
			return -1
		case unicode.In(r, unicode.Co):
			return -1
		}
		return r
	}, text)
}

// Flatten joins a page array into one string with the page separator.
func Flatten(pages []string) string {
	return strings.Join(pages, PageSeparator)
}

// SplitPages recovers a page array from its flattened form. The round trip
// with Flatten is exact: empty pages survive.
func SplitPages(flat string) []string {
	return strings.Split(flat, PageSeparator)
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// fetch downloads a remote source to a temp file and returns its path with a
// cleanup func. The ledongthuc reader needs a seekable file, so the body
// cannot stream straight into the parser.
func (e *Extractor) fetch(ctx context.Context, source string) (string, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "ramayti-*.pdf")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

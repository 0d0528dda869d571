package fetch

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/Sriram-PR/site-mapper/pkg/process"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// Result is the outcome of one fetch. Err is nil on success; Links may be empty either way.
// A non-2xx HTML page carries both its Links and a KindStatus Err.
type Result struct {
	Links []string
	Err   error
}

// Extractor fetches a page and returns its same-domain links
type Extractor interface {
	FetchLinks(ctx context.Context, rawURL, domain string) Result
}

// maxDrainBytes bounds how much of an unread body is discarded to keep the connection reusable
const maxDrainBytes = 64 << 10

// ExtractorOptions configures an HTTPExtractor
type ExtractorOptions struct {
	UserAgent         string
	Timeout           time.Duration // Per-fetch deadline, including any rate-limit wait
	MaxLinksPerPage   int
	MaxPageSizeBytes  int64   // 0 = unlimited
	RequestsPerSecond float64 // 0 = unlimited
	RequestsBurst     int
}

// HTTPExtractor implements Extractor over HTTP with goquery link extraction
type HTTPExtractor struct {
	client  *http.Client
	opts    ExtractorOptions
	limiter *rate.Limiter // nil when unlimited
	log     *logrus.Entry
}

// NewHTTPExtractor creates an HTTPExtractor using client for all requests
func NewHTTPExtractor(client *http.Client, opts ExtractorOptions, log *logrus.Entry) *HTTPExtractor {
	e := &HTTPExtractor{client: client, opts: opts, log: log}
	if opts.RequestsPerSecond > 0 {
		burst := opts.RequestsBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return e
}

// FetchLinks implements Extractor. It never retries.
func (e *HTTPExtractor) FetchLinks(ctx context.Context, rawURL, domain string) Result {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	fetchLog := e.log.WithField("url", rawURL)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return Result{Err: &FetchError{URL: rawURL, Kind: KindTimeout, Err: fmt.Errorf("%w: waiting for rate limiter: %w", utils.ErrFetchTimeout, err)}}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Err: &FetchError{URL: rawURL, Kind: KindNetwork, Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}}
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Err: transportError(rawURL, err)}
	}
	defer func() {
		io.CopyN(io.Discard, resp.Body, maxDrainBytes)
		resp.Body.Close()
	}()

	// Error pages still get their links extracted; the status travels alongside them
	statusErr := checkStatus(rawURL, resp)

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		if statusErr != nil {
			return Result{Err: statusErr}
		}
		return Result{Err: &FetchError{URL: rawURL, Kind: KindNotHTML, Err: fmt.Errorf("%w: content type '%s'", utils.ErrNotHTML, contentType)}}
	}

	body, err := e.readBody(resp)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Err: &FetchError{URL: rawURL, Kind: KindTimeout, Err: fmt.Errorf("%w: reading body: %w", utils.ErrFetchTimeout, err)}}
		}
		return Result{Err: &FetchError{URL: rawURL, Kind: KindBodyRead, Err: err}}
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		fetchLog.Debugf("Charset detection failed, parsing raw bytes: %v", err)
		utf8Reader = bytes.NewReader(body)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return Result{Err: &FetchError{URL: rawURL, Kind: KindParse, Err: fmt.Errorf("%w: HTML from '%s': %w", utils.ErrParsing, rawURL, err)}}
	}

	// Resolve against the post-redirect URL
	links := process.ExtractLinks(doc, resp.Request.URL, domain, e.opts.MaxLinksPerPage, fetchLog)
	fetchLog.WithField("links", len(links)).Debug("Extracted links")
	if statusErr != nil {
		return Result{Links: links, Err: statusErr}
	}
	return Result{Links: links}
}

// checkStatus maps non-2xx responses to a FetchError, following the crawler's status classes
func checkStatus(rawURL string, resp *http.Response) *FetchError {
	code := resp.StatusCode
	var sentinel error
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		sentinel = utils.ErrServerHTTPError
	case code >= 400:
		sentinel = utils.ErrClientHTTPError
	default:
		sentinel = utils.ErrOtherHTTPError
	}
	return &FetchError{
		URL:        rawURL,
		Kind:       KindStatus,
		StatusCode: code,
		Err:        fmt.Errorf("%w: status %s", sentinel, resp.Status),
	}
}

// readBody decodes the Content-Encoding and enforces the page size cap on the decoded bytes
func (e *HTTPExtractor) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", utils.ErrResponseBodyRead, err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl, err := newDeflateReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %w", utils.ErrResponseBodyRead, err)
		}
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding '%s'", utils.ErrResponseBodyRead, enc)
	}

	if limit := e.opts.MaxPageSizeBytes; limit > 0 {
		reader = io.LimitReader(reader, limit+1)
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		if int64(len(body)) > limit {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrResponseBodyRead, limit)
		}
		return body, nil
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return body, nil
}

// newDeflateReader reads zlib-wrapped deflate and falls back to raw DEFLATE streams some servers send
func newDeflateReader(body io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(body)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: method 8 and a header checksum divisible by 31
func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

func transportError(rawURL string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
		return &FetchError{URL: rawURL, Kind: KindTimeout, Err: fmt.Errorf("%w: %w", utils.ErrFetchTimeout, err)}
	}
	return &FetchError{URL: rawURL, Kind: KindNetwork, Err: fmt.Errorf("%w: %w", utils.ErrNetwork, err)}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err)
}

// isHTML accepts an absent Content-Type; parsing decides for those
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

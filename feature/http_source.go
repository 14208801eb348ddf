package feature

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/resource"
)

// DataTypeHeader carries the element type of a binary feature response.
const DataTypeHeader = "X-Data-Type"

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feature server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("feature server returned %d: %s", e.StatusCode, e.Body)
}

// HTTPSource fetches features from GET <base>/api/feature.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	rc     *resource.Controller
	header http.Header
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithHTTPRateLimit throttles response bodies with rc's IO limit.
func WithHTTPRateLimit(rc *resource.Controller) HTTPSourceOption {
	return func(s *HTTPSource) { s.rc = rc }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPSourceOption {
	return func(s *HTTPSource) { s.header.Add(key, value) }
}

// NewHTTPSource creates a source for the feature server at baseURL.
func NewHTTPSource(baseURL string, optFns ...HTTPSourceOption) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	s := &HTTPSource{
		base:   u,
		client: http.DefaultClient,
		header: make(http.Header),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s, nil
}

func (s *HTTPSource) endpoint(req Request) string {
	u := s.base.JoinPath("api", "feature")

	q := u.Query()
	q.Set("name", req.Name)
	if req.Downsample > 0 {
		q.Set("downsample", strconv.Itoa(req.Downsample))
	}
	if req.Session != "" {
		q.Set("session", req.Session)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Fetch requests a feature column.
//
// A JSON response is decoded as a native sequence. Any other response must
// carry the element type in the X-Data-Type header.
func (s *HTTPSource) Fetch(ctx context.Context, req Request) (*Payload, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(req), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range s.header {
		httpReq.Header[k] = v
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.Reader(resp.Body)
	if s.rc != nil {
		body = resource.NewRateLimitedReader(ctx, body, s.rc)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, req.Name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		var seq []float64
		if err := gojson.NewDecoder(body).Decode(&seq); err != nil {
			return nil, fmt.Errorf("decode native feature %s: %w", req.Name, err)
		}
		if seq == nil {
			seq = []float64{}
		}
		return &Payload{Type: arraycache.Native, Native: seq}, nil
	}

	dtype := resp.Header.Get(DataTypeHeader)
	if dtype == "" {
		return nil, fmt.Errorf("feature %s: missing %s header", req.Name, DataTypeHeader)
	}
	t, err := arraycache.ParseElementType(dtype)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", req.Name, err)
	}

	data, err := readBody(body, resp.ContentLength)
	if err != nil {
		return nil, fmt.Errorf("read feature %s: %w", req.Name, err)
	}

	if t == arraycache.Native {
		return nil, fmt.Errorf("feature %s: native type requires a JSON body", req.Name)
	}
	return &Payload{Data: data, Type: t}, nil
}

func readBody(r io.Reader, contentLength int64) ([]byte, error) {
	if contentLength < 0 {
		return io.ReadAll(r)
	}
	// A single allocation keeps the payload aligned for typed views.
	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/time/rate"
)

// Page is a downloaded document together with the URL it was finally
// served from after redirects.
type Page struct {
	Body   string
	URL    *url.URL
	Header http.Header
	Status int
}

// Request describes one round trip. Query is merged into any query already
// present on URL; Header values override the session defaults.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
	Note   string
}

// Browser performs requests while keeping cookies between them.
type Browser interface {
	Do(ctx context.Context, req *Request) (*Page, error)
	HTTPClient() *http.Client
}

// Session is a cookie-keeping HTTP client that behaves like a single browser tab.
type Session struct {
	client  *http.Client
	header  http.Header
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Session)

// WithHTTPClient replaces the underlying client. A cookie jar is attached if
// the client has none.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		cp := *c
		if cp.Jar == nil {
			cp.Jar = s.client.Jar
		}
		s.client = &cp
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(s *Session) { s.header.Set(key, value) }
}

// WithRateLimit throttles outgoing requests. A non-positive limit disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Session) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func NewSession(opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := NewClientWithTimeout(IntegrationTimeout)
	client.Jar = jar
	s := &Session{
		client:  client,
		header:  http.Header{"User-Agent": {UserAgent}},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Session) HTTPClient() *http.Client {
	return s.client
}

func (s *Session) Do(ctx context.Context, r *Request) (*Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", r.URL, err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
		if r.Body != nil {
			method = http.MethodPost
		}
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range s.header {
		req.Header[k] = vs
	}
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	s.logger.Debug("http request", "note", r.Note, "method", method, "url", u.Redacted())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", noteOr(r.Note, "request failed"), err)
	}
	defer DrainBody(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	final := resp.Request.URL
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, URL: final.Redacted(), Body: Truncate(data, 200)}
	}

	return &Page{
		Body:   string(data),
		URL:    final,
		Header: resp.Header,
		Status: resp.StatusCode,
	}, nil
}

func noteOr(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}

// GetPage downloads rawURL with the given query parameters.
func GetPage(ctx context.Context, b Browser, rawURL string, query url.Values, header http.Header, note string) (*Page, error) {
	return b.Do(ctx, &Request{Method: http.MethodGet, URL: rawURL, Query: query, Header: header, Note: note})
}

// PostForm submits form as application/x-www-form-urlencoded.
func PostForm(ctx context.Context, b Browser, rawURL string, form url.Values, header http.Header, note string) (*Page, error) {
	h := cloneHeader(header)
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return b.Do(ctx, &Request{Method: http.MethodPost, URL: rawURL, Body: []byte(form.Encode()), Header: h, Note: note})
}

// PostJSON submits payload encoded as JSON.
func PostJSON(ctx context.Context, b Browser, rawURL string, query url.Values, payload any, header http.Header, note string) (*Page, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", noteOr(note, "request"), err)
	}
	h := cloneHeader(header)
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	return b.Do(ctx, &Request{Method: http.MethodPost, URL: rawURL, Query: query, Body: data, Header: h, Note: note})
}

// DecodeJSON unmarshals the page body into out.
func DecodeJSON(p *Page, out any) error {
	if err := json.Unmarshal([]byte(p.Body), out); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", p.URL.Redacted(), err)
	}
	return nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

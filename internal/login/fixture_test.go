package login

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

// site is a fake provider: every request is recorded so tests can assert
// which pages were visited and what was submitted.
type site struct {
	t   *testing.T
	srv *httptest.Server
	mux *http.ServeMux

	mu    sync.Mutex
	hits  []string
	forms map[string]url.Values
	json  map[string]map[string]any
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{t: t, mux: http.NewServeMux(), forms: map[string]url.Values{}, json: map[string]map[string]any{}}
	s.srv = httptest.NewTLSServer(s.mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) URL(path string) string { return s.srv.URL + path }

// page serves body for path and records the request.
func (s *site) page(path string, body func(r *http.Request) string) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body(r))
	})
}

func (s *site) static(path, body string) {
	s.page(path, func(*http.Request) string { return body })
}

func (s *site) jsonReply(path string, reply any) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	})
}

func (s *site) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, r.Method+" "+r.URL.Path)
	switch r.Header.Get("Content-Type") {
	case "application/x-www-form-urlencoded":
		r.ParseForm()
		s.forms[r.URL.Path] = r.PostForm
	case "application/json":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.json[r.URL.Path] = body
	}
}

func (s *site) visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

func (s *site) form(path string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forms[path]
}

func (s *site) posted(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.json[path]
}

func (s *site) env(profile models.ProviderProfile) *Env {
	s.t.Helper()
	sess, err := httputil.NewSession(httputil.WithHTTPClient(s.srv.Client()))
	require.NoError(s.t, err)
	return &Env{
		Browser:  sess,
		Profile:  profile,
		Username: "alice",
		Password: "s3cret",
		Hosts: Hosts{
			Broker:              s.srv.URL,
			PhiloIDP:            s.srv.URL,
			SpectrumAuthn:       s.srv.URL,
			SuddenlinkAuthorize: s.srv.URL,
			FuboAPI:             s.srv.URL,
		},
	}
}

// open downloads the broker's provider redirect page the flow starts from.
func (s *site) open(env *Env, path string) *httputil.Page {
	s.t.Helper()
	p, err := httputil.GetPage(context.Background(), env.Browser, s.URL(path), nil, nil, "Downloading Provider Redirect Page")
	require.NoError(s.t, err)
	return p
}

type fakePrompter struct {
	answer string
	asked  []string
}

func (p *fakePrompter) PromptSecret(label string) (string, error) {
	p.asked = append(p.asked, label)
	return p.answer, nil
}

// recordingBrowser answers every request with an empty page, for flows that
// jump to hosts a test server cannot stand in for.
type recordingBrowser struct {
	requests []*httputil.Request
}

func (b *recordingBrowser) Do(ctx context.Context, req *httputil.Request) (*httputil.Page, error) {
	b.requests = append(b.requests, req)
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	return &httputil.Page{Body: "ok", URL: u, Header: http.Header{}, Status: http.StatusOK}, nil
}

func (b *recordingBrowser) HTTPClient() *http.Client { return http.DefaultClient }

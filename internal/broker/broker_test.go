package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/login"
	"mvpdauth/internal/models"
	"mvpdauth/internal/persist"
	"mvpdauth/internal/tokencache"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const authnToken = `<simpleAuthenticationToken>` +
	`<simpleTokenAuthenticationGuid>sess-guid-1</simpleTokenAuthenticationGuid>` +
	`<simpleTokenMsoID>DTV</simpleTokenMsoID>` +
	`<simpleTokenExpires>2030/01/01 00:00:00 GMT</simpleTokenExpires>` +
	`<simpleSamlNameID>name-id-1</simpleSamlNameID>` +
	`<simpleSamlSessionIndex>idx-1</simpleSamlSessionIndex>` +
	`</simpleAuthenticationToken>`

const authzToken = `<simpleAuthorizationToken><simpleTokenTTL>2030/01/01 00:00:00 GMT</simpleTokenTTL></simpleAuthorizationToken>`

// fakeBroker serves the broker endpoints and a standard provider login.
type fakeBroker struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	hits           map[string]int
	sessionReply   func(n int) string
	authorizeReply func(n int) string
	shortReply     func(n int) string
	seen           map[string]*http.Request
	forms          map[string]map[string]string
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	b := &fakeBroker{
		t:     t,
		hits:  map[string]int{},
		seen:  map[string]*http.Request{},
		forms: map[string]map[string]string{},
		sessionReply: func(int) string {
			return `<session><authnToken>` + html.EscapeString(authnToken) + `</authnToken></session>`
		},
		authorizeReply: func(int) string {
			return `<authorize><authzToken>` + html.EscapeString(authzToken) + `</authzToken></authorize>`
		},
		shortReply: func(int) string { return "media-token-1" },
	}

	mux := http.NewServeMux()
	reply := func(path string, fn func(w http.ResponseWriter, r *http.Request, n int)) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			b.mu.Lock()
			b.hits[path]++
			n := b.hits[path]
			b.seen[path] = r
			form := map[string]string{}
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			b.forms[path] = form
			b.mu.Unlock()
			fn(w, r, n)
		})
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	reply("/indiv/devices", func(w http.ResponseWriter, r *http.Request, n int) {
		w.Header().Set("pass_sfp", "sfp-1")
		writeJSON(w, map[string]string{"deviceId": "dev-1"})
	})
	reply("/o/client/register", func(w http.ResponseWriter, r *http.Request, n int) {
		writeJSON(w, map[string]string{"client_id": "cid", "client_secret": "csec"})
	})
	reply("/o/client/token", func(w http.ResponseWriter, r *http.Request, n int) {
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "csec" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"access_token": "at-1", "token_type": "bearer", "expires_in": 3600})
	})
	reply("/reggie/v1/nbcentertainment/regcode", func(w http.ResponseWriter, r *http.Request, n int) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"code": "RC1"})
	})
	reply("/adobe-services/authenticate/saml", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `<form action="/provider/login-page" method="post"><input type="hidden" name="SAMLRequest" value="sr"></form>`)
	})
	reply("/provider/login-page", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `<form action="/provider/login" method="post"></form>`)
	})
	reply("/provider/login", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, `<form action="/provider/confirm" method="post"><input type="hidden" name="SAMLResponse" value="ok"></form>`)
	})
	reply("/provider/confirm", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, "done")
	})
	reply("/adobe-services/session", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, b.sessionReply(n))
	})
	reply("/adobe-services/authorize", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, b.authorizeReply(n))
	})
	reply("/adobe-services/shortAuthorize", func(w http.ResponseWriter, r *http.Request, n int) {
		fmt.Fprint(w, b.shortReply(n))
	})

	b.srv = httptest.NewTLSServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBroker) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *fakeBroker) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.hits {
		n += c
	}
	return n
}

func (b *fakeBroker) form(path string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forms[path]
}

func (b *fakeBroker) request(path string) *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seen[path]
}

func (b *fakeBroker) exchange(cache *tokencache.Cache, opts ...Option) *Exchange {
	b.t.Helper()
	sess, err := httputil.NewSession(httputil.WithHTTPClient(b.srv.Client()))
	require.NoError(b.t, err)
	hosts := login.DefaultHosts()
	base := []Option{
		WithLoginHosts(hosts),
		WithEndpoints(NewEndpoints(b.srv.URL)),
		WithClock(func() time.Time { return testNow }),
	}
	return NewExchange(sess, cache, append(base, opts...)...)
}

func newCache() *tokencache.Cache {
	return tokencache.New(persist.NewMemory(), nil)
}

var loggedIn = []Option{
	WithProvider("DTV"),
	WithCredentials(credentials.Static{Default: credentials.Credentials{Username: "alice", Password: "s3cret"}}),
}

func TestAuthorize_StandardFlowEndToEnd(t *testing.T) {
	b := newFakeBroker(t)
	cache := newCache()
	x := b.exchange(cache, loggedIn...)

	tok, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	require.NoError(t, err)
	assert.Equal(t, "media-token-1", tok)

	rec, err := cache.Load(context.Background(), "nbcentertainment")
	require.NoError(t, err)
	assert.Equal(t, authnToken, rec.AuthnToken)
	assert.Equal(t, map[string]string{"guid-1": authzToken}, rec.Authz)

	assert.Equal(t, "alice", b.form("/provider/login")["username"])
	assert.Equal(t, "s3cret", b.form("/provider/login")["password"])
	assert.Equal(t, 1, b.count("/provider/confirm"))

	redirect := b.request("/adobe-services/authenticate/saml").URL.Query()
	assert.Equal(t, "DTV", redirect.Get("mso_id"))
	assert.Equal(t, "RC1", redirect.Get("reg_code"))
	assert.Equal(t, "https://www.nbc.com/video/1", redirect.Get("redirect_url"))
	assert.Equal(t, "true", redirect.Get("noflash"))

	session := b.request("/adobe-services/session")
	assert.Equal(t, "sfp-1", session.Header.Get("pass_sfp"))
	assert.Equal(t, "dev-1", session.Header.Get("Ap_21"))
	assert.Equal(t, "Bearer at-1", session.Header.Get("Authorization"))
	assert.Equal(t, "anonymous", session.Header.Get("ap_42"))
	assert.Equal(t, "GET", b.form("/adobe-services/session")["_method"])
	assert.Equal(t, "RC1", b.form("/adobe-services/session")["reg_code"])

	authz := b.form("/adobe-services/authorize")
	assert.Equal(t, "guid-1", authz["resource_id"])
	assert.Equal(t, "DTV", authz["mso_id"])
	assert.Equal(t, authnToken, authz["authentication_token"])
	assert.Equal(t, "1", authz["userMeta"])

	short := b.request("/adobe-services/shortAuthorize")
	assert.Equal(t, "name-id-1", short.Header.Get("ap_19"))
	assert.Equal(t, "idx-1", short.Header.Get("ap_23"))
	assert.Equal(t, "sess-guid-1", b.form("/adobe-services/shortAuthorize")["session_guid"])
	assert.Equal(t, "false", b.form("/adobe-services/shortAuthorize")["hashed_guid"])
}

func TestAuthorize_CachedTokensGoStraightToMediaToken(t *testing.T) {
	b := newFakeBroker(t)
	cache := newCache()
	rec := tokencache.Record{AuthnToken: authnToken}
	rec.SetAuthz("guid-1", authzToken)
	require.NoError(t, cache.Store(context.Background(), "nbcentertainment", rec))

	x := b.exchange(cache)
	tok, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	require.NoError(t, err)
	assert.Equal(t, "media-token-1", tok)

	assert.Equal(t, 1, b.count("/adobe-services/shortAuthorize"))
	assert.Equal(t, 1, b.total(), "no login, session or authorize calls")
}

func TestAuthorize_MRSSResourceKeyedByGUID(t *testing.T) {
	b := newFakeBroker(t)
	cache := newCache()
	resource, err := models.NewResource("nbcentertainment", "Episode", "guid-9", "TV-14")
	require.NoError(t, err)

	x := b.exchange(cache, loggedIn...)
	_, err = x.Authorize(context.Background(), "https://www.nbc.com/video/9", resource, "nbcentertainment", "statement")
	require.NoError(t, err)

	assert.Equal(t, resource, b.form("/adobe-services/authorize")["resource_id"])
	rec, _ := cache.Load(context.Background(), "nbcentertainment")
	assert.Contains(t, rec.Authz, "guid-9")
}

func TestAuthorize_NoProviderIsConfigurationError(t *testing.T) {
	b := newFakeBroker(t)
	x := b.exchange(newCache())

	_, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	var cfgErr *models.ConfigurationRequiredError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.True(t, models.IsExpected(err))
	assert.Zero(t, b.total())
}

func TestAuthorize_MissingCredentialsIsConfigurationError(t *testing.T) {
	b := newFakeBroker(t)
	x := b.exchange(newCache(), WithProvider("DTV"))

	_, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	var cfgErr *models.ConfigurationRequiredError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Zero(t, b.total())
}

func TestAuthorize_ExpiredSoftwareStatement(t *testing.T) {
	b := newFakeBroker(t)
	stmt, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(testNow.Add(-time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	x := b.exchange(newCache(), loggedIn...)
	_, err = x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", stmt)
	var cfgErr *models.ConfigurationRequiredError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Zero(t, b.total())
}

func TestAuthorize_PendingLogoutTwiceFails(t *testing.T) {
	b := newFakeBroker(t)
	b.sessionReply = func(int) string { return `<pendingLogout/>` }
	cache := newCache()
	stale := tokencache.Record{}
	stale.SetAuthz("other", authzToken)
	require.NoError(t, cache.Store(context.Background(), "nbcentertainment", stale))

	x := b.exchange(cache, loggedIn...)
	_, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	require.ErrorIs(t, err, models.ErrPendingLogoutExhausted)

	assert.Equal(t, 2, b.count("/adobe-services/session"), "exactly two passes")
	assert.Equal(t, 2, b.count("/indiv/devices"))
	assert.Zero(t, b.count("/adobe-services/authorize"))
	rec, err := cache.Load(context.Background(), "nbcentertainment")
	require.NoError(t, err)
	assert.Equal(t, tokencache.Record{}, rec, "cache cleared on pending logout")
}

func TestAuthorize_PendingLogoutRecoversOnRetry(t *testing.T) {
	b := newFakeBroker(t)
	b.shortReply = func(n int) string {
		if n == 1 {
			return `<pendingLogout/>`
		}
		return "media-token-2"
	}
	cache := newCache()
	rec := tokencache.Record{AuthnToken: authnToken}
	rec.SetAuthz("guid-1", authzToken)
	require.NoError(t, cache.Store(context.Background(), "nbcentertainment", rec))

	x := b.exchange(cache, loggedIn...)
	tok, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	require.NoError(t, err)
	assert.Equal(t, "media-token-2", tok)
	assert.Equal(t, 2, b.count("/adobe-services/shortAuthorize"))
	assert.Equal(t, 1, b.count("/adobe-services/session"), "second pass logs in again")
	assert.Equal(t, 1, b.count("/adobe-services/authorize"))
}

func TestAuthorize_BrokerErrorDetails(t *testing.T) {
	b := newFakeBroker(t)
	b.authorizeReply = func(int) string {
		return `<error><status>403</status><details>User not Authorized</details></error>`
	}
	cache := newCache()
	x := b.exchange(cache, loggedIn...)

	_, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	var authErr *models.AuthenticationError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "User not Authorized", authErr.Message)
	assert.Zero(t, b.count("/adobe-services/shortAuthorize"))

	rec, _ := cache.Load(context.Background(), "nbcentertainment")
	assert.Equal(t, authnToken, rec.AuthnToken, "authn token kept after authorize failure")
	assert.Empty(t, rec.Authz)
}

func TestAuthorize_ExpiredAuthnLogsInAgain(t *testing.T) {
	b := newFakeBroker(t)
	cache := newCache()
	expired := `<simpleTokenExpires>2020/01/01 00:00:00 GMT</simpleTokenExpires>`
	rec := tokencache.Record{AuthnToken: expired}
	rec.SetAuthz("guid-1", authzToken)
	require.NoError(t, cache.Store(context.Background(), "nbcentertainment", rec))

	x := b.exchange(cache, loggedIn...)
	_, err := x.Authorize(context.Background(), "https://www.nbc.com/video/1", "guid-1", "nbcentertainment", "statement")
	require.NoError(t, err)
	assert.Equal(t, 1, b.count("/adobe-services/session"))
	assert.Zero(t, b.count("/adobe-services/authorize"), "cached authz still valid")
}

func TestResourceGUID(t *testing.T) {
	g, err := ResourceGUID("plain-id")
	require.NoError(t, err)
	assert.Equal(t, "plain-id", g)

	g, err = ResourceGUID(`<rss><channel><item><guid>abc</guid></item></channel></rss>`)
	require.NoError(t, err)
	assert.Equal(t, "abc", g)

	_, err = ResourceGUID(`<rss></rss>`)
	var pe *models.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestEndpoints(t *testing.T) {
	e := NewEndpoints("")
	assert.Equal(t, "https://sp.auth.adobe.com/indiv/devices", e.Devices())
	assert.Equal(t, "https://sp.auth.adobe.com/reggie/v1/fbc-fox/regcode", e.RegCode("fbc-fox"))
	assert.Equal(t, "https://sp.auth.adobe.com/adobe-services/shortAuthorize", e.Service("shortAuthorize"))
	assert.Equal(t, "https://broker.test/o/client/token", NewEndpoints("https://broker.test/").ClientToken())
}

// Package broker exchanges provider sessions for media tokens with the
// authorization broker.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/login"
	"mvpdauth/internal/metrics"
	"mvpdauth/internal/models"
	"mvpdauth/internal/mso"
	"mvpdauth/internal/token"
	"mvpdauth/internal/tokencache"
)

// Exchange turns a resource and requestor into a media token, reusing
// cached authn and authz tokens while they are valid.
type Exchange struct {
	browser  httputil.Browser
	client   *Client
	cache    *tokencache.Cache
	provider string
	creds    credentials.Source
	prompter credentials.Prompter
	hosts    login.Hosts
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Exchange)

// WithProvider selects the TV provider used when a new login is needed.
func WithProvider(id string) Option {
	return func(x *Exchange) { x.provider = id }
}

func WithCredentials(s credentials.Source) Option {
	return func(x *Exchange) { x.creds = s }
}

func WithPrompter(p credentials.Prompter) Option {
	return func(x *Exchange) { x.prompter = p }
}

// WithEndpoints points broker calls, and the broker host used by provider
// flows, at base.
func WithEndpoints(e Endpoints) Option {
	return func(x *Exchange) {
		x.client = NewClient(x.browser, e)
		x.hosts.Broker = e.Base
	}
}

func WithLoginHosts(h login.Hosts) Option {
	return func(x *Exchange) { x.hosts = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Exchange) { x.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(x *Exchange) { x.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(x *Exchange) { x.now = now }
}

func NewExchange(b httputil.Browser, cache *tokencache.Cache, opts ...Option) *Exchange {
	x := &Exchange{
		browser: b,
		client:  NewClient(b, NewEndpoints("")),
		cache:   cache,
		creds:   credentials.Static{},
		hosts:   login.DefaultHosts(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Provider returns the configured provider id, empty when none is selected.
func (x *Exchange) Provider() string {
	return x.provider
}

// ResourceGUID returns the guid a resource is cached under: the <guid> of an
// MRSS fragment, or the resource id itself.
func ResourceGUID(resource string) (string, error) {
	if !strings.Contains(resource, "<") {
		return resource, nil
	}
	return token.Field(resource, "guid")
}

// Authorize returns a fresh media token for resource. The full resource is
// sent to the broker; its guid keys the cached authz token.
func (x *Exchange) Authorize(ctx context.Context, targetURL, resource, requestorID, softwareStatement string) (tok string, err error) {
	started := x.now()
	defer func() { x.metrics.ObserveExchange(resultLabel(err), started) }()

	guid, err := ResourceGUID(resource)
	if err != nil {
		return "", err
	}

	unlock, err := x.cache.Lock(ctx, requestorID)
	if err != nil {
		return "", err
	}
	defer unlock()

	st := &exchangeState{
		targetURL:         targetURL,
		resource:          resource,
		guid:              guid,
		requestorID:       requestorID,
		softwareStatement: softwareStatement,
		header: http.Header{
			"ap_42":      {"anonymous"},
			"ap_11":      {"Linux i686"},
			"ap_z":       {httputil.UserAgent},
			"User-Agent": {httputil.UserAgent},
		},
	}
	clearCache := func(ctx context.Context) error {
		x.metrics.PendingLogout()
		return x.cache.Clear(ctx, requestorID)
	}
	return withLogoutRetry(ctx, maxPasses, clearCache, func(ctx context.Context) (string, error) {
		return x.pass(ctx, st)
	})
}

// exchangeState is carried across passes of one Authorize call. Headers
// gained from device registration stay set for the retry.
type exchangeState struct {
	targetURL         string
	resource          string
	guid              string
	requestorID       string
	softwareStatement string
	header            http.Header
}

func (x *Exchange) pass(ctx context.Context, st *exchangeState) (string, error) {
	rec, err := x.cache.Load(ctx, st.requestorID)
	if err != nil {
		return "", err
	}

	authn := x.cached("authn", rec.AuthnToken, token.AuthnExpiry)
	if authn == "" {
		if authn, err = x.authenticate(ctx, st); err != nil {
			return "", err
		}
		rec.AuthnToken = authn
		if err := x.cache.Store(ctx, st.requestorID, rec); err != nil {
			return "", err
		}
	}

	authz := x.cached("authz", rec.Authz[st.guid], token.AuthzExpiry)
	if authz == "" {
		if authz, err = x.authorize(ctx, st, authn); err != nil {
			return "", err
		}
		rec.SetAuthz(st.guid, authz)
		if err := x.cache.Store(ctx, st.requestorID, rec); err != nil {
			return "", err
		}
	}

	nameID, err := token.Field(authn, token.SAMLNameID)
	if err != nil {
		return "", err
	}
	sessionIndex, err := token.Field(authn, token.SAMLSessionIndex)
	if err != nil {
		return "", err
	}
	sessionGUID, err := token.Field(authn, token.AuthenticationGUID)
	if err != nil {
		return "", err
	}
	st.header.Set("ap_19", nameID)
	st.header.Set("ap_23", sessionIndex)

	media, err := x.client.ShortAuthorize(ctx, authz, st.requestorID, sessionGUID, st.header)
	x.metrics.BrokerCall("shortAuthorize", err)
	if err != nil {
		return "", err
	}
	if isPendingLogout(media) {
		return "", errPendingLogout
	}
	return media, nil
}

// cached returns tok unless it is empty or expired.
func (x *Exchange) cached(kind, tok, expiryTag string) string {
	switch {
	case tok == "":
		x.metrics.CacheLookup(kind, "miss")
		return ""
	case token.Expired(tok, expiryTag, x.now()):
		x.logger.Debug("cached token expired", "token", kind)
		x.metrics.CacheLookup(kind, "expired")
		return ""
	}
	x.metrics.CacheLookup(kind, "hit")
	return tok
}

func isPendingLogout(doc string) bool {
	return strings.Contains(doc, "<pendingLogout")
}

// authenticate logs in with the configured provider and returns the
// session's authn token.
func (x *Exchange) authenticate(ctx context.Context, st *exchangeState) (string, error) {
	if x.provider == "" {
		return "", &models.ConfigurationRequiredError{Reason: "no TV provider selected"}
	}
	creds, ok := x.creds.Credentials(x.provider)
	if !ok {
		return "", &models.ConfigurationRequiredError{Reason: "no credentials for " + x.provider}
	}
	profile, err := mso.Lookup(x.provider)
	if err != nil {
		return "", err
	}
	if err := checkSoftwareStatement(st.softwareStatement, x.now()); err != nil {
		return "", err
	}

	device, err := x.client.RegisterDevice(ctx)
	x.metrics.BrokerCall("device", err)
	if err != nil {
		return "", err
	}
	st.header.Set("pass_sfp", device.PassSFP)
	st.header.Set("Ap_21", device.ID)

	reg, err := x.client.RegisterClient(ctx, st.softwareStatement)
	x.metrics.BrokerCall("register", err)
	if err != nil {
		return "", err
	}
	accessToken, err := x.client.AccessToken(ctx, reg)
	x.metrics.BrokerCall("token", err)
	if err != nil {
		return "", err
	}
	st.header.Set("Authorization", "Bearer "+accessToken)

	regCode, err := x.client.RegCode(ctx, st.requestorID, device.ID, accessToken)
	x.metrics.BrokerCall("regcode", err)
	if err != nil {
		return "", err
	}

	redirect, err := x.client.ProviderRedirect(ctx, x.provider, st.requestorID, st.targetURL, regCode, login.ProfileHeaders(profile))
	x.metrics.BrokerCall("redirect", err)
	if err != nil {
		return "", err
	}

	flow := login.FlowFor(x.provider)
	loginStarted := x.now()
	err = login.Run(ctx, &login.Env{
		Browser:  x.browser,
		Profile:  profile,
		Username: creds.Username,
		Password: creds.Password,
		Prompter: x.prompter,
		Hosts:    x.hosts,
		Logger:   x.logger,
	}, flow, redirect)
	x.metrics.ObserveLogin(x.provider, flow.String(), err, loginStarted)
	if err != nil {
		return "", fmt.Errorf("%s login: %w", profile.DisplayName, err)
	}

	session, err := x.client.Session(ctx, st.requestorID, regCode, st.header)
	x.metrics.BrokerCall("session", err)
	if err != nil {
		return "", sessionError(err, x.provider)
	}
	if isPendingLogout(session) {
		return "", errPendingLogout
	}
	return token.UnescapedField(session, "authnToken")
}

// sessionError turns a 401 from the session endpoint into a configuration
// error when no provider was selected to log in with.
func sessionError(err error, provider string) error {
	var statusErr *httputil.StatusError
	if provider == "" && errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		return &models.ConfigurationRequiredError{Reason: "broker session requires a provider login"}
	}
	return err
}

// authorize fetches the authz token for the exchange's resource.
func (x *Exchange) authorize(ctx context.Context, st *exchangeState, authn string) (string, error) {
	msoID, err := token.Field(authn, token.MsoID)
	if err != nil {
		return "", err
	}
	doc, err := x.client.Authorize(ctx, st.resource, st.requestorID, authn, msoID, st.header)
	x.metrics.BrokerCall("authorize", err)
	if err != nil {
		return "", err
	}
	if isPendingLogout(doc) {
		return "", errPendingLogout
	}
	if strings.Contains(doc, "<error") {
		details, err := token.Field(doc, "details")
		if err != nil {
			return "", err
		}
		return "", &models.AuthenticationError{Message: details}
	}
	return token.UnescapedField(doc, "authzToken")
}

func resultLabel(err error) string {
	var authErr *models.AuthenticationError
	var parseErr *models.ParseError
	switch {
	case err == nil:
		return "ok"
	case isConfigError(err):
		return "config"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &parseErr):
		return "parse"
	}
	return "error"
}

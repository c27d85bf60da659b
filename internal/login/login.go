// Package login drives each TV provider's sign-in pages until the broker's
// provider session is authenticated.
package login

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/form"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

// Flow is the shape of a provider's login sequence.
type Flow int

const (
	FlowStandard Flow = iota
	FlowComcast
	FlowVerizon
	FlowOTP
	FlowClientSAML
	FlowBookend
	FlowExternalJSON
)

func (f Flow) String() string {
	switch f {
	case FlowStandard:
		return "standard"
	case FlowComcast:
		return "comcast"
	case FlowVerizon:
		return "verizon"
	case FlowOTP:
		return "otp"
	case FlowClientSAML:
		return "client-saml"
	case FlowBookend:
		return "bookend"
	case FlowExternalJSON:
		return "external-json"
	}
	return fmt.Sprintf("flow(%d)", int(f))
}

// FlowFor returns the flow a provider id logs in with.
func FlowFor(providerID string) Flow {
	switch providerID {
	case "Comcast_SSO":
		return FlowComcast
	case "Verizon":
		return FlowVerizon
	case "Philo":
		return FlowOTP
	case "Spectrum", "Charter_Direct":
		return FlowClientSAML
	case "slingtv", "Suddenlink":
		return FlowBookend
	case "Fubo":
		return FlowExternalJSON
	}
	return FlowStandard
}

// Hosts are the fixed third-party origins some flows talk to directly.
type Hosts struct {
	Broker              string
	PhiloIDP            string
	SpectrumAuthn       string
	SuddenlinkAuthorize string
	FuboAPI             string
}

func DefaultHosts() Hosts {
	return Hosts{
		Broker:              "https://sp.auth.adobe.com",
		PhiloIDP:            "https://idp.philo.com",
		SpectrumAuthn:       "https://tveauthn.spectrum.net",
		SuddenlinkAuthorize: "https://authorize.suddenlink.net",
		FuboAPI:             "https://api.fubo.tv",
	}
}

// ProfileHeaders returns extra headers a provider's pages require. No
// provider currently needs any.
func ProfileHeaders(models.ProviderProfile) http.Header {
	return http.Header{}
}

// Env is everything a flow needs for one login attempt.
type Env struct {
	Browser  httputil.Browser
	Profile  models.ProviderProfile
	Username string
	Password string
	Prompter credentials.Prompter
	Hosts    Hosts
	Logger   *slog.Logger
}

const downloadingLoginPage = "Downloading Provider Login Page"

// Run executes flow starting from the broker's provider redirect page.
func Run(ctx context.Context, env *Env, flow Flow, redirect *httputil.Page) error {
	if env.Hosts == (Hosts{}) {
		env.Hosts = DefaultHosts()
	}
	env.logger().Debug("running provider login", "provider", env.Profile.ID, "flow", flow.String())

	switch flow {
	case FlowStandard:
		return standard(ctx, env, redirect)
	case FlowComcast:
		return comcast(ctx, env, redirect)
	case FlowVerizon:
		return verizon(ctx, env, redirect)
	case FlowOTP:
		return philo(ctx, env)
	case FlowClientSAML:
		return spectrum(ctx, env, redirect)
	case FlowBookend:
		return bookend(ctx, env, bookendFor(env.Profile.ID), redirect)
	case FlowExternalJSON:
		return fubo(ctx, env, redirect)
	}
	return fmt.Errorf("unsupported login flow %s", flow)
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) header() http.Header {
	return ProfileHeaders(e.Profile)
}

func (e *Env) submitter() *form.Submitter {
	return &form.Submitter{Browser: e.Browser, Profile: e.Profile, Header: e.header(), Logger: e.Logger}
}

// post submits the first form on page without credentials.
func (e *Env) post(ctx context.Context, page *httputil.Page, note string) (*httputil.Page, error) {
	return e.submitter().Submit(ctx, page, nil, false, note)
}

// login submits the account credentials (plus extra fields) through the
// first form on page and rejects pages that report a bad password.
func (e *Env) login(ctx context.Context, page *httputil.Page, extra form.Fields, invalidMessage string) (*httputil.Page, error) {
	fields := form.Fields{
		e.Profile.UsernameKey(): e.Username,
		e.Profile.PasswordKey(): e.Password,
	}
	for k, v := range extra {
		fields[k] = v
	}
	res, err := e.submitter().Submit(ctx, page, fields, true, "Logging in")
	if err != nil {
		return nil, err
	}
	if err := checkRejected(res, invalidMessage); err != nil {
		return nil, err
	}
	return res, nil
}

const tryAgainMarker = "Please try again."

const defaultInvalidMessage = "Failed to login, incorrect User ID or Password."

func checkRejected(page *httputil.Page, message string) error {
	if !strings.Contains(page.Body, tryAgainMarker) {
		return nil
	}
	if message == "" {
		message = defaultInvalidMessage
	}
	return &models.AuthenticationError{Message: message}
}

func (e *Env) get(ctx context.Context, rawURL string, query url.Values, note string) (*httputil.Page, error) {
	return httputil.GetPage(ctx, e.Browser, rawURL, query, e.header(), note)
}

// followMeta downloads the meta-refresh target of page when one is present.
func (e *Env) followMeta(ctx context.Context, page *httputil.Page, required bool, note string) (*httputil.Page, error) {
	target, err := form.ExtractMetaRedirect(page.Body, page.URL, required)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return page, nil
	}
	return e.get(ctx, target, nil, note)
}

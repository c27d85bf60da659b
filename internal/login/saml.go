package login

import (
	"context"
	"net/url"
	"regexp"

	"mvpdauth/internal/form"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

var (
	spectrumRelayState  = regexp.MustCompile(`RelayState\s*=\s*"(.+?)";`)
	spectrumSAMLRequest = regexp.MustCompile(`SAMLRequest\s*=\s*"(.+?)";`)
)

// spectrum builds its login form in script, so the SAML exchange is
// replayed against the provider's authentication API directly.
func spectrum(ctx context.Context, env *Env, redirect *httputil.Page) error {
	loginPage, err := env.post(ctx, redirect, downloadingLoginPage)
	if err != nil {
		return err
	}
	relayState, err := form.Search(spectrumRelayState, loginPage.Body, "RelayState")
	if err != nil {
		return err
	}
	samlRequest, err := form.Search(spectrumSAMLRequest, loginPage.Body, "SAMLRequest")
	if err != nil {
		return err
	}

	res, err := postJSON(ctx, env, env.Hosts.SpectrumAuthn+"/tveauthentication/api/v1/manualAuth", map[string]string{
		env.Profile.UsernameKey(): env.Username,
		env.Profile.PasswordKey(): env.Password,
		"RelayState":              relayState,
		"SAMLRequest":             samlRequest,
	}, "Downloading SAML Response")
	if err != nil {
		return err
	}
	var saml struct {
		SAMLRedirectURI string `json:"SAMLRedirectUri"`
		SAMLResponse    string `json:"SAMLResponse"`
	}
	if err := httputil.DecodeJSON(res, &saml); err != nil {
		return err
	}
	if saml.SAMLRedirectURI == "" || saml.SAMLResponse == "" {
		return &models.ParseError{Element: "SAML response", URL: res.URL.Redacted()}
	}

	_, err = httputil.PostForm(ctx, env.Browser, saml.SAMLRedirectURI, url.Values{
		"SAMLResponse": {saml.SAMLResponse},
		"RelayState":   {relayState},
	}, env.header(), "Confirming Login")
	return err
}

func postJSON(ctx context.Context, env *Env, rawURL string, payload any, note string) (*httputil.Page, error) {
	return httputil.PostJSON(ctx, env.Browser, rawURL, nil, payload, jsonHeader(env.header()), note)
}

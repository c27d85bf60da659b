package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

// Client performs single broker round trips. It holds no per-exchange state.
type Client struct {
	browser   httputil.Browser
	endpoints Endpoints
}

func NewClient(b httputil.Browser, e Endpoints) *Client {
	return &Client{browser: b, endpoints: e}
}

// Device is the broker's record of a registered device.
type Device struct {
	ID string
	// PassSFP is the security header echoed on later session calls.
	PassSFP string
}

// Registration holds the client credentials issued for a software statement.
type Registration struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

var jsonUTF8 = http.Header{"Content-Type": {"application/json; charset=UTF-8"}}

func (c *Client) RegisterDevice(ctx context.Context) (Device, error) {
	fingerprint := uuid.New()
	page, err := httputil.PostJSON(ctx, c.browser, c.endpoints.Devices(), nil,
		map[string]string{"fingerprint": fmt.Sprintf("%x", fingerprint[:])},
		jsonUTF8, "Registering device with Adobe")
	if err != nil {
		return Device{}, err
	}
	var res struct {
		DeviceID string `json:"deviceId"`
	}
	if err := httputil.DecodeJSON(page, &res); err != nil {
		return Device{}, err
	}
	if res.DeviceID == "" {
		return Device{}, &models.ParseError{Element: "deviceId", URL: page.URL.Redacted()}
	}
	return Device{ID: res.DeviceID, PassSFP: page.Header.Get("pass_sfp")}, nil
}

func (c *Client) RegisterClient(ctx context.Context, softwareStatement string) (Registration, error) {
	page, err := httputil.PostJSON(ctx, c.browser, c.endpoints.ClientRegister(), nil,
		map[string]string{"software_statement": softwareStatement},
		jsonUTF8, "Registering client with Adobe")
	if err != nil {
		return Registration{}, err
	}
	var reg Registration
	if err := httputil.DecodeJSON(page, &reg); err != nil {
		return Registration{}, err
	}
	if reg.ClientID == "" {
		return Registration{}, &models.ParseError{Element: "client_id", URL: page.URL.Redacted()}
	}
	return reg, nil
}

// AccessToken runs the client-credentials grant for reg.
func (c *Client) AccessToken(ctx context.Context, reg Registration) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		TokenURL:     c.endpoints.ClientToken(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.browser.HTTPClient())
	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("obtaining access token: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) RegCode(ctx context.Context, requestorID, deviceID, accessToken string) (string, error) {
	page, err := httputil.PostForm(ctx, c.browser, c.endpoints.RegCode(requestorID), url.Values{
		"requestor": {requestorID},
		"deviceId":  {deviceID},
		"format":    {"json"},
	}, http.Header{
		"Content-Type":  {"application/x-www-form-urlencoded; charset=UTF-8"},
		"Authorization": {"Bearer " + accessToken},
	}, "Obtaining registration code")
	if err != nil {
		return "", err
	}
	var res struct {
		Code string `json:"code"`
	}
	if err := httputil.DecodeJSON(page, &res); err != nil {
		return "", err
	}
	if res.Code == "" {
		return "", &models.ParseError{Element: "registration code", URL: page.URL.Redacted()}
	}
	return res.Code, nil
}

// ProviderRedirect downloads the page that starts the provider login.
func (c *Client) ProviderRedirect(ctx context.Context, msoID, requestorID, targetURL, regCode string, header http.Header) (*httputil.Page, error) {
	return httputil.GetPage(ctx, c.browser, c.endpoints.Service("authenticate/saml"), url.Values{
		"noflash":      {"true"},
		"mso_id":       {msoID},
		"requestor_id": {requestorID},
		"no_iframe":    {"false"},
		"domain_name":  {"adobe.com"},
		"redirect_url": {targetURL},
		"reg_code":     {regCode},
	}, header, "Downloading Provider Redirect Page")
}

// Session returns the raw session document.
func (c *Client) Session(ctx context.Context, requestorID, regCode string, header http.Header) (string, error) {
	page, err := httputil.PostForm(ctx, c.browser, c.endpoints.Service("session"), url.Values{
		"_method":      {"GET"},
		"requestor_id": {requestorID},
		"reg_code":     {regCode},
	}, header, "Retrieving Session")
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

// Authorize returns the raw authorization document for resource.
func (c *Client) Authorize(ctx context.Context, resource, requestorID, authnToken, msoID string, header http.Header) (string, error) {
	page, err := httputil.PostForm(ctx, c.browser, c.endpoints.Service("authorize"), url.Values{
		"resource_id":          {resource},
		"requestor_id":         {requestorID},
		"authentication_token": {authnToken},
		"mso_id":               {msoID},
		"userMeta":             {"1"},
	}, header, "Retrieving Authorization Token")
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

// ShortAuthorize returns the media token document.
func (c *Client) ShortAuthorize(ctx context.Context, authzToken, requestorID, sessionGUID string, header http.Header) (string, error) {
	page, err := httputil.PostForm(ctx, c.browser, c.endpoints.Service("shortAuthorize"), url.Values{
		"authz_token":  {authzToken},
		"requestor_id": {requestorID},
		"session_guid": {sessionGUID},
		"hashed_guid":  {"false"},
	}, header, "Retrieving Media Token")
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

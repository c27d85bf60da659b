package login

import (
	"context"
	"net/url"

	"mvpdauth/internal/httputil"
	"mvpdauth/internal/models"
)

// fubo authenticates against the provider's partner API and hands the
// resulting code back to the broker's OAuth endpoint.
func fubo(ctx context.Context, env *Env, redirect *httputil.Page) error {
	res, err := httputil.PostJSON(ctx, env.Browser, env.Hosts.FuboAPI+"/partners/tve/connect",
		redirect.URL.Query(), map[string]string{
			"username": env.Username,
			"password": env.Password,
		}, jsonHeader(env.header()), "Authenticating with Fubo")
	if err != nil {
		return err
	}
	var grant struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	if err := httputil.DecodeJSON(res, &grant); err != nil {
		return err
	}
	if grant.Code == "" {
		return &models.ParseError{Element: "Fubo authorization code", URL: res.URL.Redacted()}
	}

	_, err = env.get(ctx, env.Hosts.Broker+"/adobe-services/oauth2", url.Values{
		"code":  {grant.Code},
		"state": {grant.State},
	}, "Authenticating with Adobe")
	return err
}

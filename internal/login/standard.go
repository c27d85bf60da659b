package login

import (
	"context"

	"mvpdauth/internal/form"
	"mvpdauth/internal/httputil"
)

// standard covers providers whose login is a plain HTML form, optionally
// behind one meta-refresh hop.
func standard(ctx context.Context, env *Env, redirect *httputil.Page) error {
	redirect, err := env.followMeta(ctx, redirect, false, "Downloading Provider Redirect Page (meta refresh)")
	if err != nil {
		return err
	}
	loginPage, err := env.post(ctx, redirect, downloadingLoginPage)
	if err != nil {
		return err
	}

	var extra form.Fields
	switch env.Profile.ID {
	case "Cablevision", "AlticeOne":
		extra = form.Fields{"_eventId_proceed": ""}
	}
	confirm, err := env.login(ctx, loginPage, extra, "")
	if err != nil {
		return err
	}

	if env.Profile.ID == "Rogers" {
		return nil
	}
	_, err = env.post(ctx, confirm, "Confirming Login")
	return err
}

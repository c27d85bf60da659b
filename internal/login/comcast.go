package login

import (
	"context"
	"regexp"
	"strings"

	"mvpdauth/internal/form"
	"mvpdauth/internal/httputil"
)

var (
	comcastAutoRedirect   = regexp.MustCompile(`window\.location\s*=\s*['"]([^'"]+)`)
	comcastSignedRedirect = regexp.MustCompile(`continue:\s*"(https://oauth\.xfinity\.com/oauth/authorize\?.+)"`)
)

const comcastResumeButton = `<button class="submit" value="Resume">Resume</button>`

// comcast signs in automatically from inside the provider's network and
// falls back to the sign-in form elsewhere.
func comcast(ctx context.Context, env *Env, redirect *httputil.Page) error {
	switch {
	case strings.Contains(redirect.Body, "automatically signing you in"):
		target, err := form.SearchHTML(comcastAutoRedirect, redirect.Body, "oauth redirect")
		if err != nil {
			return err
		}
		_, err = env.get(ctx, target, nil, "Confirming auto login")
		return err
	case strings.Contains(redirect.Body, "automatically signed in with"):
		target, err := form.SearchHTML(comcastSignedRedirect, redirect.Body, "oauth redirect (signed)")
		if err != nil {
			return err
		}
		_, err = env.get(ctx, target, nil, "Confirming auto login")
		return err
	}

	var loginPage *httputil.Page
	var err error
	switch {
	case strings.Contains(redirect.Body, `<form name="signin"`):
		loginPage = redirect
	case strings.Contains(redirect.Body, `http-equiv="refresh"`):
		loginPage, err = env.followMeta(ctx, redirect, true, downloadingLoginPage)
	default:
		loginPage, err = env.post(ctx, redirect, downloadingLoginPage)
	}
	if err != nil {
		return err
	}

	confirm, err := env.login(ctx, loginPage, nil, "")
	if err != nil {
		return err
	}
	if strings.Contains(confirm.Body, comcastResumeButton) {
		_, err = env.post(ctx, confirm, "Confirming Login")
	}
	return err
}

package login

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"mvpdauth/internal/form"
	"mvpdauth/internal/httputil"
)

// bookendVariant describes a provider that counts browser history depth
// between the first and last visit to its login pages.
type bookendVariant struct {
	historyKey string
	// pressContinue posts the redirect page's form before the first bookend.
	pressContinue bool
	// tryAuth enables the extra ajax lookup some partner sites need.
	tryAuth bool
}

func bookendFor(providerID string) bookendVariant {
	if providerID == "Suddenlink" {
		return bookendVariant{historyKey: "history_val", pressContinue: true, tryAuth: true}
	}
	return bookendVariant{historyKey: "history"}
}

const suddenlinkPasswordField = `id="password" type="password" name="password"`

var suddenlinkAjaxURL = regexp.MustCompile(`url:\s*['"]([^'"]+)`)

func bookend(ctx context.Context, env *Env, v bookendVariant, redirect *httputil.Page) error {
	first := redirect
	if v.pressContinue {
		var err error
		if first, err = env.post(ctx, redirect, "Pressing Continue..."); err != nil {
			return err
		}
	}

	hidden := withHistory(first, v.historyKey, 1)
	loginPage, err := env.get(ctx, first.URL.String(), hidden, "Sending first bookend")
	if err != nil {
		return err
	}

	if v.tryAuth && !strings.Contains(loginPage.Body, suddenlinkPasswordField) {
		if loginPage, err = suddenlinkTryAuth(ctx, env, loginPage, hidden); err != nil {
			return err
		}
	}

	association, err := env.login(ctx, loginPage, nil, "")
	if err != nil {
		return err
	}
	last, err := env.followMeta(ctx, association, true, "Downloading Auth Association Redirect Page")
	if err != nil {
		return err
	}

	confirm, err := env.get(ctx, last.URL.String(), withHistory(last, v.historyKey, 3), "Sending final bookend")
	if err != nil {
		return err
	}
	_, err = env.post(ctx, confirm, "Confirming Login")
	return err
}

func withHistory(page *httputil.Page, key string, depth int) url.Values {
	hidden := form.HiddenInputs(page.Body)
	hidden.Set(key, strconv.Itoa(depth))
	return hidden
}

// suddenlinkTryAuth resolves the AuthState the login page would fetch by ajax.
func suddenlinkTryAuth(ctx context.Context, env *Env, page *httputil.Page, hidden url.Values) (*httputil.Page, error) {
	tryAuthURL, err := form.SearchHTML(suddenlinkAjaxURL, page.Body, "ajaxurl")
	if err != nil {
		return nil, err
	}
	state, err := env.get(ctx, tryAuthURL, hidden, "Submitting TryAuth")
	if err != nil {
		return nil, err
	}
	loginURL := env.Hosts.SuddenlinkAuthorize + "/saml/module.php/authSynacor/login.php?AuthState=" +
		url.QueryEscape(strings.TrimSpace(state.Body))
	return env.get(ctx, loginURL, hidden, "Getting Login Page")
}

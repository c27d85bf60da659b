package login

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const philoCodePrompt = "Type auth code you have received"

// philo emails a one-time code instead of taking a password.
func philo(ctx context.Context, env *Env) error {
	idp := env.Hosts.PhiloIDP
	if env.Prompter == nil {
		return fmt.Errorf("%s login needs a terminal to enter the emailed code", env.Profile.DisplayName)
	}

	_, err := postJSON(ctx, env, idp+"/auth/init/login_code", map[string]any{
		"ident":              env.Username,
		"device":             "web",
		"send_confirm_link":  false,
		"send_token":         true,
		"device_ident":       "web-" + uuidHex(),
		"include_login_link": true,
	}, "Requesting Philo auth code")
	if err != nil {
		return err
	}

	code, err := env.Prompter.PromptSecret(philoCodePrompt)
	if err != nil {
		return fmt.Errorf("reading auth code: %w", err)
	}
	if _, err := postJSON(ctx, env, idp+"/auth/update/login_code", map[string]any{"token": code}, "Submitting token"); err != nil {
		return err
	}

	confirm, err := env.get(ctx, idp+"/idp/submit", nil, "Confirming Philo Login")
	if err != nil {
		return err
	}
	_, err = env.post(ctx, confirm, "Confirming Login")
	return err
}

func uuidHex() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

func jsonHeader(h http.Header) http.Header {
	h = h.Clone()
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

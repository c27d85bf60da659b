package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"mvpdauth/internal/broker"
	"mvpdauth/internal/config"
	"mvpdauth/internal/credentials"
	"mvpdauth/internal/httputil"
	"mvpdauth/internal/metrics"
	"mvpdauth/internal/persist"
	"mvpdauth/internal/tokencache"
)

// app is the wired set of collaborators behind a token exchange.
type app struct {
	cfg      *config.Config
	prompter credentials.Prompter
	backend  persist.Backend
	cache    *tokencache.Cache
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func openRuntime(cfg *config.Config, prompter credentials.Prompter) (*app, error) {
	backend, err := persist.Open(cfg.PersistOptions())
	if err != nil {
		return nil, fmt.Errorf("opening token cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	return &app{
		cfg:      cfg,
		prompter: prompter,
		backend:  backend,
		cache:    tokencache.New(backend, slog.Default()),
		metrics:  m,
		registry: reg,
	}, nil
}

// newSession returns a browser session with an empty cookie jar.
func (r *app) newSession() (*httputil.Session, error) {
	sess, err := httputil.NewSession(append(r.cfg.SessionOptions(), httputil.WithLogger(slog.Default()))...)
	if err != nil {
		return nil, fmt.Errorf("creating http session: %w", err)
	}
	return sess, nil
}

// newExchange builds an exchange with its own browser session, so cookies
// from one provider login never leak into another.
func (r *app) newExchange() (*broker.Exchange, error) {
	sess, err := r.newSession()
	if err != nil {
		return nil, err
	}
	return broker.NewExchange(sess, r.cache,
		broker.WithProvider(r.cfg.MSO),
		broker.WithCredentials(r.cfg.CredentialSource()),
		broker.WithPrompter(r.prompter),
		broker.WithEndpoints(broker.NewEndpoints(r.cfg.BrokerURL)),
		broker.WithMetrics(r.metrics),
		broker.WithLogger(slog.Default()),
	), nil
}

// Authorize runs one exchange on a fresh session. The token cache and its
// per-requestor locks are shared.
func (r *app) Authorize(ctx context.Context, targetURL, resource, requestorID, softwareStatement string) (string, error) {
	x, err := r.newExchange()
	if err != nil {
		return "", err
	}
	return x.Authorize(ctx, targetURL, resource, requestorID, softwareStatement)
}

func (r *app) Close() {
	if err := r.backend.Close(); err != nil {
		slog.Warn("closing token cache", "error", err)
	}
}

// terminalPrompter prompts on the terminal, or refuses when stdin is not one.
func terminalPrompter() credentials.Prompter {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return credentials.NoPrompt{}
	}
	return &credentials.PromptUI{}
}

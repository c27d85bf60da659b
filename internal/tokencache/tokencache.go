// Package tokencache keeps each requestor's authn token and per-resource
// authz tokens between runs.
package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Namespace is the persistent cache section owned by this package.
const Namespace = "ap-mvpd"

const authnKey = "authn_token"

// Record is one requestor's cached tokens. It is stored as a flat JSON object:
// "authn_token" holds the session token, every other key is a resource guid.
type Record struct {
	AuthnToken string
	Authz      map[string]string
}

func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Authz)+1)
	for guid, tok := range r.Authz {
		flat[guid] = tok
	}
	if r.AuthnToken != "" {
		flat[authnKey] = r.AuthnToken
	}
	return json.Marshal(flat)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*r = Record{AuthnToken: flat[authnKey]}
	delete(flat, authnKey)
	if len(flat) > 0 {
		r.Authz = flat
	}
	return nil
}

// SetAuthz records the authz token for guid.
func (r *Record) SetAuthz(guid, tok string) {
	if r.Authz == nil {
		r.Authz = map[string]string{}
	}
	r.Authz[guid] = tok
}

// Backend is the persistent store records are written to.
type Backend interface {
	Load(ctx context.Context, namespace, key string) (string, bool, error)
	Store(ctx context.Context, namespace, key, value string) error
}

type Cache struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func New(b Backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: b, logger: logger, locks: map[string]*semaphore.Weighted{}}
}

// Load returns the record for requestorID. A missing or unreadable record is
// an empty one; only backend failures are errors.
func (c *Cache) Load(ctx context.Context, requestorID string) (Record, error) {
	raw, ok, err := c.backend.Load(ctx, Namespace, requestorID)
	if err != nil {
		return Record{}, fmt.Errorf("loading cached tokens: %w", err)
	}
	if !ok || raw == "" {
		return Record{}, nil
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		c.logger.Warn("ignoring corrupt token cache entry", "requestor", requestorID, "error", err)
		return Record{}, nil
	}
	return r, nil
}

// Store overwrites the record for requestorID.
func (c *Cache) Store(ctx context.Context, requestorID string, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding cached tokens: %w", err)
	}
	if err := c.backend.Store(ctx, Namespace, requestorID, string(data)); err != nil {
		return fmt.Errorf("storing cached tokens: %w", err)
	}
	return nil
}

// Clear drops every token held for requestorID. The caller must hold the
// requestor's lock; use Reset otherwise.
func (c *Cache) Clear(ctx context.Context, requestorID string) error {
	return c.Store(ctx, requestorID, Record{})
}

// Reset waits for any exchange running for requestorID and then clears its
// tokens, so the exchange cannot write them back afterwards.
func (c *Cache) Reset(ctx context.Context, requestorID string) error {
	unlock, err := c.Lock(ctx, requestorID)
	if err != nil {
		return err
	}
	defer unlock()
	return c.Clear(ctx, requestorID)
}

// Lock serializes exchanges for one requestor. The returned func releases it.
func (c *Cache) Lock(ctx context.Context, requestorID string) (func(), error) {
	c.mu.Lock()
	sem, ok := c.locks[requestorID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		c.locks[requestorID] = sem
	}
	c.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for token cache lock: %w", err)
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

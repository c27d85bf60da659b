package server

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type authorizeCall struct {
	target, resource, requestor, statement string
}

type fakeAuthorizer struct {
	mu    sync.Mutex
	calls []authorizeCall
	token string
	err   error
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, targetURL, resource, requestorID, softwareStatement string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, authorizeCall{targetURL, resource, requestorID, softwareStatement})
	return f.token, f.err
}

type fakeCache struct {
	cleared []string
	err     error
}

func (f *fakeCache) Reset(ctx context.Context, requestorID string) error {
	f.cleared = append(f.cleared, requestorID)
	return f.err
}

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

var errDown = errors.New("down")

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeAuthorizer, *fakeCache) {
	t.Helper()
	x := &fakeAuthorizer{token: "signed-media-token"}
	c := &fakeCache{}
	srv := NewServer(x, c, opts...)
	t.Cleanup(srv.Close)
	return srv, x, c
}

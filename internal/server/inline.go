// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package server

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/gradyzhuo/plank/internal/observability"
	"github.com/gradyzhuo/plank/internal/service"
)

// InlineScheme is the protocol and URL scheme of in-process dispatch.
const InlineScheme = "inline"

// InlineHelper is the scheme helper of the inline protocol.
type InlineHelper struct {
	*service.Helper
}

// NewInlineHelper is the service.SchemeFactory of the inline protocol.
func NewInlineHelper(a *service.Action) service.SchemeHelper {
	return &InlineHelper{Helper: service.NewHelper(InlineScheme, a)}
}

// Copy returns an inline helper for action sharing h's attributes.
func (h *InlineHelper) Copy(action *service.Action) service.SchemeHelper {
	return &InlineHelper{Helper: h.CopyHelper(action)}
}

// URL returns the address of the action on a server bound to addr.
func (h *InlineHelper) URL(addr BindAddress) string {
	u := url.URL{
		Scheme: InlineScheme,
		Host:   addr.Description(),
		Path:   "/" + h.Action().RoutingPath(),
	}
	return u.String()
}

// Result is the outcome of an asynchronous send.
type Result struct {
	Response *service.Response
	Err      error
}

// InlineConnector dispatches requests to an action on a server registered
// with Listeners. The server and action are resolved on every send, so a
// connector may be created before its server listens.
type InlineConnector struct {
	listeners *Listeners
	address   BindAddress
	path      string
	backoff   func() retry.Backoff
	metrics   *observability.Metrics
}

// InlineOption configures inline connectors.
type InlineOption func(*InlineConnector)

// WithRetry waits for the server to listen, checking every interval up to
// attempts more times.
func WithRetry(interval time.Duration, attempts uint64) InlineOption {
	return func(c *InlineConnector) {
		c.backoff = func() retry.Backoff {
			return retry.WithMaxRetries(attempts, retry.NewConstant(interval))
		}
	}
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *observability.Metrics) InlineOption {
	return func(c *InlineConnector) { c.metrics = m }
}

// NewInlineConnector creates a connector for an "inline://host[:port]/path"
// URL.
func NewInlineConnector(listeners *Listeners, u *url.URL, opts ...InlineOption) (*InlineConnector, error) {
	if u.Scheme != InlineScheme {
		return nil, oops.In("server").
			Code("CONNECTOR_URL_INVALID").
			With("url", u.String()).
			Errorf("scheme %q is not %q", u.Scheme, InlineScheme)
	}
	addr, err := ParseBindAddress(u.Host)
	if err != nil {
		return nil, oops.In("server").With("url", u.String()).Wrap(err)
	}

	c := &InlineConnector{
		listeners: listeners,
		address:   addr,
		path:      strings.TrimPrefix(u.Path, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InlineFactory returns the ConnectorFactory of the inline scheme.
func InlineFactory(listeners *Listeners, opts ...InlineOption) ConnectorFactory {
	return func(u *url.URL) (Connector, error) {
		return NewInlineConnector(listeners, u, opts...)
	}
}

// Address returns the target server address.
func (c *InlineConnector) Address() BindAddress { return c.address }

// Path returns the target routing path.
func (c *InlineConnector) Path() string { return c.path }

// Send dispatches req and waits for the response.
func (c *InlineConnector) Send(ctx context.Context, req *service.Request) (resp *service.Response, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDispatch(InlineScheme, start, err) }()

	action, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = action.Receive(ctx, req)
	if err != nil {
		return nil, oops.In("server").
			With("address", c.address.Description()).
			With("path", c.path).
			Wrap(err)
	}
	return resp, nil
}

// SendAsync dispatches req on a new goroutine. The channel receives one
// Result and is closed.
func (c *InlineConnector) SendAsync(ctx context.Context, req *service.Request) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		resp, err := c.Send(ctx, req)
		out <- Result{Response: resp, Err: err}
	}()
	return out
}

// resolve finds the action, waiting for the server when retry is enabled.
func (c *InlineConnector) resolve(ctx context.Context) (*service.Action, error) {
	if c.backoff == nil {
		s, err := c.server()
		if err != nil {
			return nil, err
		}
		return c.action(s)
	}

	var s *Server
	err := retry.Do(ctx, c.backoff(), func(_ context.Context) error {
		found, err := c.server()
		if err != nil {
			slog.DebugContext(ctx, "waiting for inline server", "address", c.address.Description())
			return retry.RetryableError(err)
		}
		s = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.action(s)
}

func (c *InlineConnector) server() (*Server, error) {
	s, ok := c.listeners.Lookup(c.address)
	if !ok {
		return nil, oops.In("server").
			Code("SERVER_NOT_LISTENING").
			With("address", c.address.Description()).
			With("available", c.listeners.Addresses()).
			Errorf("no server listening on %q", c.address.Description())
	}
	return s, nil
}

func (c *InlineConnector) action(s *Server) (*service.Action, error) {
	a, err := s.Action(c.path)
	if err != nil {
		return nil, oops.In("server").With("address", c.address.Description()).Wrap(err)
	}
	if !a.Supports(InlineScheme) {
		return nil, oops.In("server").
			Code("PROTOCOL_NOT_BOUND").
			With("path", c.path).
			With("protocol", InlineScheme).
			With("available", a.Protocols()).
			Errorf("action %q does not support %s dispatch", a.Name(), InlineScheme)
	}
	return a, nil
}

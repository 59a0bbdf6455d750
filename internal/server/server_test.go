// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package server_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/server"
	"github.com/gradyzhuo/plank/internal/service"
	"github.com/gradyzhuo/plank/pkg/errutil"
)

func noEnv(string) (string, bool) { return "", false }

// double returns a service with an inline "double" action and a
// protocol-less "hidden" action.
func double(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New("math", opts...)
	a, err := svc.Handle("double", func(x int) int { return x * 2 }, service.Params("x"))
	require.NoError(t, err)
	require.True(t, a.BindProtocol(server.InlineScheme, server.NewInlineHelper))

	_, err = svc.Handle("hidden", func() string { return "secret" })
	require.NoError(t, err)
	return svc
}

func TestBindAddress(t *testing.T) {
	tests := []struct {
		in   string
		want server.BindAddress
		desc string
	}{
		{"local", server.BindAddress{Host: "local"}, "local"},
		{"local:9000", server.BindAddress{Host: "local", Port: 9000}, "local:9000"},
		{"[::1]:80", server.BindAddress{Host: "::1", Port: 80}, "[::1]:80"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := server.ParseBindAddress(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.desc, got.Description())
		})
	}

	for _, bad := range []string{"", "local:http", "local:70000"} {
		_, err := server.ParseBindAddress(bad)
		require.Error(t, err, bad)
		errutil.AssertErrorCode(t, err, "CONNECTOR_URL_INVALID")
	}
}

func TestServer_PathPrefixPublished(t *testing.T) {
	stores := ctxstore.NewRegistry(ctxstore.WithEnv(noEnv))
	s := server.New(server.WithPathPrefix("/api/"), server.WithStore(stores.Main()))
	assert.Equal(t, "/api/", s.PathPrefix())
	assert.Equal(t, "/api/", stores.Main().Get(server.PathPrefixKey))

	svc := double(t, service.WithServingPath("${path_prefix}/math"), service.WithResolver(stores.Main()))
	s.Mount(svc, server.InlineScheme)
	assert.Equal(t, []string{"api/math/double"}, s.Paths())
}

func TestServer_EmptyPrefixKeepsPublished(t *testing.T) {
	stores := ctxstore.NewRegistry(ctxstore.WithEnv(noEnv))
	server.New(server.WithPathPrefix("api"), server.WithStore(stores.Main()))
	s := server.New(server.WithStore(stores.Main()))

	assert.Empty(t, s.PathPrefix())
	assert.Equal(t, "api", stores.Main().Get(server.PathPrefixKey))
}

func TestServer_RoutingTable(t *testing.T) {
	s := server.New()
	svc := double(t)

	s.AddActions(svc.Actions()...)
	assert.Equal(t, []string{"double", "hidden"}, s.Paths())

	a, err := s.Action("/double/")
	require.NoError(t, err)
	assert.Equal(t, "double", a.Name())
	assert.Len(t, s.Actions(), 2)

	removed, err := s.RemoveAction("hidden")
	require.NoError(t, err)
	assert.Equal(t, "hidden", removed.Name())

	_, err = s.RemoveAction("hidden")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ACTION_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "available", []string{"double"})

	_, err = s.Action("nope")
	errutil.AssertErrorCode(t, err, "ACTION_NOT_FOUND")
}

func TestServer_MountOnlySupported(t *testing.T) {
	s := server.New()
	mounted := s.Mount(double(t), server.InlineScheme)
	require.Len(t, mounted, 1)
	assert.Equal(t, []string{"double"}, s.Paths())

	assert.Empty(t, s.Mount(double(t), "http"))
}

func TestServer_Listen(t *testing.T) {
	s := server.New()
	_, ok := s.Address()
	assert.False(t, ok)

	s.Listen(server.BindAddress{Host: "local", Port: 1})
	addr, ok := s.Address()
	assert.True(t, ok)
	assert.Equal(t, "local:1", addr.Description())
}

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) ServerDidStartup(ctx context.Context, s *server.Server) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockLifecycle) ServerDidShutdown(ctx context.Context, s *server.Server) error {
	return m.Called(ctx, s).Error(0)
}

func TestServer_LifecycleOrder(t *testing.T) {
	ctx := context.Background()
	var order []string
	app := &mockLifecycle{}
	delegate := &mockLifecycle{}
	s := server.New(server.WithLifecycle(app), server.WithDelegate(delegate))

	app.On("ServerDidStartup", ctx, s).Run(func(mock.Arguments) { order = append(order, "app") }).Return(nil)
	delegate.On("ServerDidStartup", ctx, s).Run(func(mock.Arguments) { order = append(order, "delegate") }).Return(nil)
	app.On("ServerDidShutdown", ctx, s).Return(nil)
	delegate.On("ServerDidShutdown", ctx, s).Return(nil)

	require.NoError(t, s.DidStartup(ctx))
	require.NoError(t, s.DidShutdown(ctx))
	assert.Equal(t, []string{"app", "delegate"}, order)
	app.AssertExpectations(t)
	delegate.AssertExpectations(t)
}

func TestServer_LifecycleErrors(t *testing.T) {
	ctx := context.Background()
	app := &mockLifecycle{}
	delegate := &mockLifecycle{}
	s := server.New(server.WithLifecycle(app), server.WithDelegate(delegate))

	app.On("ServerDidStartup", ctx, s).Return(errors.New("app failed"))
	app.On("ServerDidShutdown", ctx, s).Return(errors.New("app failed"))
	delegate.On("ServerDidShutdown", ctx, s).Return(nil)

	err := s.DidStartup(ctx)
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "hook", "ServerDidStartup")
	delegate.AssertNotCalled(t, "ServerDidStartup", ctx, s)

	require.Error(t, s.DidShutdown(ctx))
	delegate.AssertCalled(t, "ServerDidShutdown", ctx, s)
}

func TestServer_DefaultDelegate(t *testing.T) {
	s := server.New()
	assert.IsType(t, server.BaseDelegate{}, s.Delegate())
	require.NoError(t, s.DidStartup(context.Background()))
	require.NoError(t, s.DidShutdown(context.Background()))
}

func TestListeners(t *testing.T) {
	l := server.NewListeners()
	first := server.New()
	second := server.New()
	addr := server.BindAddress{Host: "local"}

	l.Listen(first, addr)
	got, ok := l.Lookup(addr)
	require.True(t, ok)
	assert.Same(t, first, got)

	l.Listen(second, addr)
	got, _ = l.Lookup(addr)
	assert.Same(t, second, got)
	_, listening := first.Address()
	assert.False(t, listening)

	l.Listen(first, server.BindAddress{Host: "local", Port: 2})
	assert.Equal(t, []string{"local", "local:2"}, l.Addresses())

	closed, ok := l.Close(addr)
	require.True(t, ok)
	assert.Same(t, second, closed)
	_, listening = second.Address()
	assert.False(t, listening)
	_, ok = l.Close(addr)
	assert.False(t, ok)
}

func TestListeners_MoveDropsOldAddress(t *testing.T) {
	l := server.NewListeners()
	s := server.New()
	from := server.BindAddress{Host: "local", Port: 1}
	to := server.BindAddress{Host: "local", Port: 2}

	l.Listen(s, from)
	l.Listen(s, to)

	_, ok := l.Lookup(from)
	assert.False(t, ok)
	got, ok := l.Lookup(to)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []string{"local:2"}, l.Addresses())

	addr, _ := s.Address()
	assert.Equal(t, to, addr)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradyzhuo/plank/internal/service"
	"github.com/gradyzhuo/plank/pkg/errutil"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func invoke(t *testing.T, fn any, args map[string]any, names ...string) (any, error) {
	t.Helper()
	e, err := service.NewEndpoint(fn, names...)
	require.NoError(t, err)
	return e.Invoke(context.Background(), args)
}

func TestEndpoint_NamedScalar(t *testing.T) {
	v, err := invoke(t, func(x int) int { return x * 2 }, map[string]any{"x": 5}, "x")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestEndpoint_WeakTyping(t *testing.T) {
	v, err := invoke(t, func(x int, label string) string {
		return label + ":" + time.Duration(x).String()
	}, map[string]any{"x": "3", "label": "n"}, "x", "label")
	require.NoError(t, err)
	assert.Equal(t, "n:3ns", v)
}

func TestEndpoint_ModelFromFlatArguments(t *testing.T) {
	v, err := invoke(t, func(u user) string { return u.Name }, map[string]any{"name": "ada", "age": 36}, "u")
	require.NoError(t, err)
	assert.Equal(t, "ada", v)
}

func TestEndpoint_ModelUnwrappedFromParameterName(t *testing.T) {
	v, err := invoke(t, func(u *user) int { return u.Age }, map[string]any{
		"u": map[string]any{"name": "ada", "age": 36},
	}, "u")
	require.NoError(t, err)
	assert.Equal(t, 36, v)
}

func TestEndpoint_ModelFromEmptyArguments(t *testing.T) {
	v, err := invoke(t, func(u *user) user { return *u }, nil)
	require.NoError(t, err)
	assert.Equal(t, user{}, v)
}

func TestEndpoint_ModelMismatch(t *testing.T) {
	_, err := invoke(t, func(u user) string { return u.Name }, map[string]any{"nick": "x"}, "u")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ARGUMENT_INVALID")
}

func TestEndpoint_MultipleParamsConvertMapsToModels(t *testing.T) {
	v, err := invoke(t, func(u user, greeting string) string {
		return greeting + " " + u.Name
	}, map[string]any{
		"u":        map[string]any{"name": "ada"},
		"greeting": "hi",
	}, "u", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi ada", v)
}

func TestEndpoint_MapParameterReceivesArguments(t *testing.T) {
	v, err := invoke(t, func(args map[string]any) int { return len(args) }, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestEndpoint_MissingArgument(t *testing.T) {
	_, err := invoke(t, func(x, y int) int { return x + y }, map[string]any{"x": 1}, "x", "y")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ARGUMENT_MISSING")
	errutil.AssertErrorContext(t, err, "argument", "y")
}

func TestEndpoint_ContextAndError(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "seen")

	e, err := service.NewEndpoint(func(ctx context.Context, fail bool) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return ctx.Value(key{}).(string), nil
	}, "fail")
	require.NoError(t, err)

	v, err := e.Invoke(ctx, map[string]any{"fail": false})
	require.NoError(t, err)
	assert.Equal(t, "seen", v)

	_, err = e.Invoke(ctx, map[string]any{"fail": true})
	assert.EqualError(t, err, "boom")
}

func TestEndpoint_ErrorOnly(t *testing.T) {
	v, err := invoke(t, func() error { return nil }, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEndpoint_AwaitsChannelResult(t *testing.T) {
	v, err := invoke(t, func(x int) <-chan int {
		ch := make(chan int, 1)
		go func() { ch <- x + 1 }()
		return ch
	}, map[string]any{"x": 41}, "x")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEndpoint_AwaitRespectsContext(t *testing.T) {
	e, err := service.NewEndpoint(func() <-chan int { return make(chan int) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Invoke(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEndpoint_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		fn    any
		names []string
	}{
		{"not a function", 42, nil},
		{"variadic", func(xs ...int) {}, []string{"xs"}},
		{"unnamed scalar", func(x int) {}, nil},
		{"too many names", func(x int) {}, []string{"x", "y"}},
		{"second result not error", func() (int, int) { return 0, 0 }, nil},
		{"three results", func() (int, int, error) { return 0, 0, nil }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.NewEndpoint(tt.fn, tt.names...)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "ENDPOINT_INVALID")
		})
	}
}

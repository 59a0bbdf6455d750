// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	argsType    = reflect.TypeFor[map[string]any]()
)

// Endpoint invokes a Go function with named request arguments.
//
// Accepted shapes:
//
//	func([ctx context.Context,] params...) [T] [error]
//
// Parameter names cannot be recovered by reflection, so they are supplied
// when the endpoint is created. A single struct (or map[string]any)
// parameter may be left unnamed.
type Endpoint struct {
	fn         reflect.Value
	params     []param
	withCtx    bool
	returnsVal bool
	returnsErr bool
}

type param struct {
	name string
	typ  reflect.Type
}

// NewEndpoint wraps fn. names label the non-context parameters in order.
func NewEndpoint(fn any, names ...string) (*Endpoint, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, oops.In("service").
			Code("ENDPOINT_INVALID").
			With("type", reflect.TypeOf(fn)).
			Errorf("endpoint must be a function")
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, oops.In("service").
			Code("ENDPOINT_INVALID").
			With("type", t.String()).
			Errorf("variadic endpoints are not supported")
	}

	e := &Endpoint{fn: v}
	first := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		e.withCtx = true
		first = 1
	}

	count := t.NumIn() - first
	single := count == 1 && (isModel(t.In(first)) || t.In(first) == argsType)
	if len(names) != count && !(single && len(names) == 0) {
		return nil, oops.In("service").
			Code("ENDPOINT_INVALID").
			With("type", t.String()).
			With("params", count).
			With("names", names).
			Hint("pass one name per parameter").
			Errorf("endpoint declares %d parameters but %d names", count, len(names))
	}
	for i := range count {
		p := param{typ: t.In(first + i)}
		if i < len(names) {
			p.name = names[i]
		}
		e.params = append(e.params, p)
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			e.returnsErr = true
		} else {
			e.returnsVal = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, oops.In("service").
				Code("ENDPOINT_INVALID").
				With("type", t.String()).
				Errorf("second result must be error")
		}
		e.returnsVal, e.returnsErr = true, true
	default:
		return nil, oops.In("service").
			Code("ENDPOINT_INVALID").
			With("type", t.String()).
			Errorf("endpoint returns too many values")
	}
	return e, nil
}

// Params returns the parameter names in declaration order.
func (e *Endpoint) Params() []string {
	names := make([]string, len(e.params))
	for i, p := range e.params {
		names[i] = p.name
	}
	return names
}

// Invoke calls the endpoint with args. A channel result is received before
// returning, honoring ctx.
func (e *Endpoint) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	in := make([]reflect.Value, 0, len(e.params)+1)
	if e.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}

	values, err := e.arguments(args)
	if err != nil {
		return nil, err
	}
	in = append(in, values...)

	out := e.fn.Call(in)

	if e.returnsErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error) //nolint:forcetypeassert // checked by NewEndpoint
		}
	}
	if !e.returnsVal {
		return nil, nil
	}
	return await(ctx, out[0])
}

func (e *Endpoint) arguments(args map[string]any) ([]reflect.Value, error) {
	if len(e.params) == 1 {
		p := e.params[0]
		switch {
		case p.typ == argsType:
			if args == nil {
				args = map[string]any{}
			}
			return []reflect.Value{reflect.ValueOf(args)}, nil
		case isModel(p.typ):
			v, err := decodeModel(p, args)
			if err != nil {
				return nil, err
			}
			return []reflect.Value{v}, nil
		}
	}

	values := make([]reflect.Value, 0, len(e.params))
	for _, p := range e.params {
		raw, ok := args[p.name]
		if !ok {
			return nil, oops.In("service").
				Code("ARGUMENT_MISSING").
				With("argument", p.name).
				Errorf("missing argument %q", p.name)
		}
		v, err := decode(raw, p.typ)
		if err != nil {
			return nil, oops.In("service").
				Code("ARGUMENT_INVALID").
				With("argument", p.name).
				Wrap(err)
		}
		values = append(values, v)
	}
	return values, nil
}

// decodeModel builds a struct parameter. Arguments whose keys all name model
// fields build the model directly; otherwise the model is unwrapped from the
// argument named after the parameter.
func decodeModel(p param, args map[string]any) (reflect.Value, error) {
	var input any
	switch {
	case len(args) == 0:
	case fieldsCover(p.typ, args):
		input = args
	default:
		nested, ok := args[p.name]
		if !ok || p.name == "" {
			return reflect.Value{}, oops.In("service").
				Code("ARGUMENT_INVALID").
				With("argument", p.name).
				With("fields", fieldNames(p.typ)).
				Errorf("arguments do not match model %s", p.typ)
		}
		input = nested
	}

	v, err := decode(input, p.typ)
	if err != nil {
		return reflect.Value{}, oops.In("service").
			Code("ARGUMENT_INVALID").
			With("argument", p.name).
			Wrap(err)
	}
	return v, nil
}

// decode converts input to t with weak typing. A nil input yields the zero
// value, or a pointer to one for pointer types.
func decode(input any, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t)
	if input == nil {
		if t.Kind() == reflect.Pointer {
			out.Elem().Set(reflect.New(t.Elem()))
		}
		return out.Elem(), nil
	}
	if v := reflect.ValueOf(input); v.Type().AssignableTo(t) {
		out.Elem().Set(v)
		return out.Elem(), nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out.Interface(),
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return reflect.Value{}, err //nolint:wrapcheck // wrapped by caller
	}
	if err := dec.Decode(input); err != nil {
		return reflect.Value{}, err //nolint:wrapcheck // wrapped by caller
	}
	return out.Elem(), nil
}

func isModel(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// fieldNames returns the lower-cased names a model field answers to.
func fieldNames(t reflect.Type) map[string]bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if tag != "" {
			names[strings.ToLower(tag)] = true
		}
		names[strings.ToLower(f.Name)] = true
	}
	return names
}

func fieldsCover(t reflect.Type, args map[string]any) bool {
	names := fieldNames(t)
	for key := range args {
		if !names[strings.ToLower(key)] {
			return false
		}
	}
	return true
}

// await receives from a channel result. Other values are returned as is.
func await(ctx context.Context, v reflect.Value) (any, error) {
	if v.Kind() != reflect.Chan || v.Type().ChanDir()&reflect.RecvDir == 0 {
		return valueOf(v), nil
	}
	if v.IsNil() {
		return nil, nil
	}

	chosen, recv, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: v},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
	})
	if chosen == 1 {
		return nil, oops.In("service").Wrap(ctx.Err())
	}
	if !ok {
		return nil, nil
	}
	if err, isErr := valueOf(recv).(error); isErr && err != nil {
		return nil, err
	}
	return valueOf(recv), nil
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import "github.com/oklog/ulid/v2"

// Request is the envelope an action receives.
type Request struct {
	ID        ulid.ULID
	Headers   map[string]string
	Arguments map[string]any
}

// NewRequest creates a request carrying args and a fresh id.
func NewRequest(args map[string]any) *Request {
	if args == nil {
		args = map[string]any{}
	}
	return &Request{
		ID:        NewRequestID(),
		Headers:   map[string]string{},
		Arguments: args,
	}
}

// Header returns the header value for key, or def when absent.
func (r *Request) Header(key, def string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	return def
}

// WithHeader sets a header and returns r.
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[key] = value
	return r
}

// Response wraps the value an endpoint returned.
type Response struct {
	RequestID ulid.ULID
	Value     any
}

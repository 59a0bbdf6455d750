// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewRequestID generates a monotonic request id.
func NewRequestID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseRequestID parses a request id string.
func ParseRequestID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.In("service").
			Code("ARGUMENT_INVALID").
			With("id", s).
			Wrapf(err, "invalid request id")
	}
	return id, nil
}

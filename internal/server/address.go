// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package server

import (
	"net"
	"strconv"

	"github.com/samber/oops"
)

// BindAddress is where a server listens. A zero Port means none.
type BindAddress struct {
	Host string
	Port int
}

// Description returns "host" or "host:port". It keys listening servers.
func (a BindAddress) Description() string {
	if a.Port == 0 {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a BindAddress) String() string { return a.Description() }

// ParseBindAddress parses "host" or "host:port".
func ParseBindAddress(s string) (BindAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port.
		if s == "" {
			return BindAddress{}, oops.In("server").
				Code("CONNECTOR_URL_INVALID").
				Errorf("bind address is empty")
		}
		return BindAddress{Host: s}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return BindAddress{}, oops.In("server").
			Code("CONNECTOR_URL_INVALID").
			With("address", s).
			Errorf("invalid port %q", portStr)
	}
	return BindAddress{Host: host, Port: port}, nil
}

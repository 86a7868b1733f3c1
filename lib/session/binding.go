// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"net"
	"net/netip"
)

// IsLocalBinding reports whether a listen address ("host:port")
// accepts loopback connections only. An empty or unspecified host
// binds every interface and is not local.
func IsLocalBinding(address string) bool {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if host == "localhost" {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

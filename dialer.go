// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package gocbcorex

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/zeebo/errs"
)

// Dialer opens the raw connection a KV client dispatcher runs on top of,
// plain TCP or TLS depending on configuration.
type Dialer struct {
	TLSConfig *tls.Config
	Timeout   net.Dialer
}

// DialNode opens a connection to addr ("host:port"). An empty addr is
// rejected immediately rather than left to the network stack to fail
// confusingly.
func (d Dialer) DialNode(ctx context.Context, addr string) (net.Conn, error) {
	if addr == "" {
		return nil, ErrorClass.Wrap(errs.New("empty node address"))
	}

	if d.TLSConfig != nil {
		tlsDialer := tls.Dialer{NetDialer: &d.Timeout, Config: d.TLSConfig}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}

	return d.Timeout.DialContext(ctx, "tcp", addr)
}

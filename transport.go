package statsd

/*

Copyright (c) 2017 Andrey Smirnov

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

*/

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const unixPrefix = "unix://"

// Transport delivers packets to statsd server
//
// Transport is only used from a single goroutine, so it doesn't need
// to be safe for concurrent use. Payload passed to Send is reused after
// Send returns.
type Transport interface {
	Send(payload []byte) error
	Close() error
}

// transportName is reported in telemetry tags
func transportName(opts *ClientOptions) string {
	switch opts.Transport.(type) {
	case *udpTransport:
		return "udp"
	case *unixTransport:
		return "uds"
	default:
		return "custom"
	}
}

// newTransport builds network transport based on address format
func newTransport(opts *ClientOptions) (Transport, error) {
	if strings.HasPrefix(opts.Addr, unixPrefix) {
		path := strings.TrimPrefix(opts.Addr, unixPrefix)
		if path == "" {
			return nil, fmt.Errorf("%w: empty socket path in %q", ErrInvalidConfig, opts.Addr)
		}

		return &unixTransport{
			path:         path,
			writeTimeout: opts.WriteTimeout,
			retryTimeout: opts.RetryTimeout,
		}, nil
	}

	if _, _, err := net.SplitHostPort(opts.Addr); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	return &udpTransport{
		addr:              opts.Addr,
		reconnectInterval: opts.ReconnectInterval,
		retryTimeout:      opts.RetryTimeout,
	}, nil
}

// udpTransport sends packets over UDP and periodically reconnects
// to follow DNS changes
type udpTransport struct {
	addr              string
	reconnectInterval time.Duration
	retryTimeout      time.Duration

	sock     net.Conn
	dialedAt time.Time
	failedAt time.Time
}

func (t *udpTransport) Send(payload []byte) error {
	if t.sock != nil && t.reconnectInterval > 0 && time.Since(t.dialedAt) >= t.reconnectInterval {
		_ = t.sock.Close()
		t.sock = nil
	}

	if t.sock == nil {
		if !t.failedAt.IsZero() && time.Since(t.failedAt) < t.retryTimeout {
			return ErrNotConnected
		}

		sock, err := net.Dial("udp", t.addr)
		if err != nil {
			t.failedAt = time.Now()
			return fmt.Errorf("error connecting to server: %w", err)
		}

		t.sock, t.dialedAt = sock, time.Now()
	}

	if _, err := t.sock.Write(payload); err != nil {
		_ = t.sock.Close()
		t.sock = nil
		t.failedAt = time.Now()

		return fmt.Errorf("error writing to socket: %w", err)
	}

	return nil
}

func (t *udpTransport) Close() error {
	if t.sock == nil {
		return nil
	}

	err := t.sock.Close()
	t.sock = nil

	return err
}

// unixTransport sends packets over Unix datagram socket
type unixTransport struct {
	path         string
	writeTimeout time.Duration
	retryTimeout time.Duration

	sock     net.Conn
	failedAt time.Time
}

func (t *unixTransport) Send(payload []byte) error {
	if t.sock == nil {
		if !t.failedAt.IsZero() && time.Since(t.failedAt) < t.retryTimeout {
			return ErrNotConnected
		}

		sock, err := net.Dial("unixgram", t.path)
		if err != nil {
			t.failedAt = time.Now()
			return fmt.Errorf("error connecting to socket %q: %w", t.path, err)
		}

		t.sock = sock
	}

	if t.writeTimeout > 0 {
		_ = t.sock.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}

	if _, err := t.sock.Write(payload); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// socket buffer is full, server is not keeping up
			return fmt.Errorf("timeout writing to socket: %w", err)
		}

		_ = t.sock.Close()
		t.sock = nil
		t.failedAt = time.Now()

		return fmt.Errorf("error writing to socket: %w", err)
	}

	return nil
}

func (t *unixTransport) Close() error {
	if t.sock == nil {
		return nil
	}

	err := t.sock.Close()
	t.sock = nil

	return err
}

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
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Default settings
const (
	DefaultMaxPacketSize     = 1432
	DefaultMaxPacketSizeUDS  = 8192
	DefaultFlushInterval     = 100 * time.Millisecond
	DefaultReconnectInterval = time.Duration(0)
	DefaultReportInterval    = time.Minute
	DefaultRetryTimeout      = 5 * time.Second
	DefaultWriteTimeout      = 100 * time.Millisecond
	DefaultLogPrefix         = "[STATSD] "
	DefaultBufPoolCapacity   = 20
	DefaultSendQueueCapacity = 10
	DefaultSampleRate        = 1.0
	DefaultTelemetryInterval = 10 * time.Second
)

// SomeLogger defines logging interface that allows using 3rd party loggers
// (e.g. github.com/sirupsen/logrus) with this Statsd client.
type SomeLogger interface {
	Printf(fmt string, args ...interface{})
}

// ClientOptions are statsd client settings
type ClientOptions struct {
	// Addr is statsd server address in "host:port" format for UDP
	// or "unix:///path/to/socket" for Unix datagram socket
	Addr string

	// Namespace is prepended to every metric name, separated with a dot
	Namespace string

	// DefaultTags is the list of tags attached to every metric,
	// event and service check
	DefaultTags []Tag

	// SampleRate is used for metrics submitted with rate 0
	SampleRate float64

	// MaxPacketSize is maximum UDP (or datagram) payload size
	//
	// Default value depends on transport: 1432 for UDP (typical MTU of 1500
	// minus IP and UDP headers), 8192 for Unix datagram sockets.
	MaxPacketSize int

	// FlushInterval controls flushing incomplete packets which might
	// not be sent for a long time if the metric rate is low
	//
	// Zero or negative value disables periodic flushing.
	FlushInterval time.Duration

	// ReconnectInterval controls UDP socket reconnects
	//
	// Reconnecting is important to follow DNS changes, e.g. in
	// dynamic container environments like K8s where statsd server
	// instance might be relocated leading to new IP address.
	//
	// By default reconnects are disabled
	ReconnectInterval time.Duration

	// RetryTimeout controls how often client should attempt
	// reconnecting to statsd server on failure
	RetryTimeout time.Duration

	// WriteTimeout is deadline for a single write to Unix datagram socket
	WriteTimeout time.Duration

	// ReportInterval instructs client to report number of packets lost
	// each interval via Logger
	//
	// By default lost packets are reported every minute, setting it
	// to zero disables reporting
	ReportInterval time.Duration

	// Logger is used by statsd client to report errors and lost packets
	//
	// If not set, default logger to stderr with prefix of
	// "[STATSD] " is being used
	Logger SomeLogger

	// BufPoolCapacity controls size of pre-allocated buffer cache
	//
	// Each buffer is MaxPacketSize. Cache allows to avoid allocating
	// new buffers during high load
	BufPoolCapacity int

	// SendQueueCapacity controls length of the queue of packet ready to be sent
	//
	// Packets might stay in the queue during short load bursts or while
	// client is reconnecting to statsd
	SendQueueCapacity int

	// TelemetryEnable turns on client self-metrics (packets and bytes
	// sent and dropped, number of metrics submitted)
	TelemetryEnable bool

	// TelemetryInterval controls how often self-metrics are submitted
	// to the server; zero or negative value disables submission, counters
	// are still available via Client.Telemetry()
	TelemetryInterval time.Duration

	// Transport overrides network delivery, Addr is ignored then
	Transport Transport

	random func() float64
}

// Option is type for option transport
type Option func(*ClientOptions)

// Namespace is prepended to every metric name
//
// Dot is appended to namespace if it doesn't end with one, characters
// reserved by the protocol are replaced with underscores.
func Namespace(namespace string) Option {
	return func(opts *ClientOptions) {
		opts.Namespace = normalizeNamespace(namespace)
	}
}

// DefaultTags defines tags attached to every metric, event and service check
func DefaultTags(tags ...Tag) Option {
	return func(opts *ClientOptions) {
		opts.DefaultTags = tags
	}
}

// SampleRate sets sample rate for metrics submitted with rate 0
func SampleRate(rate float64) Option {
	return func(opts *ClientOptions) {
		opts.SampleRate = rate
	}
}

// MaxPacketSize control maximum packet size
func MaxPacketSize(packetSize int) Option {
	return func(opts *ClientOptions) {
		opts.MaxPacketSize = packetSize
	}
}

// FlushInterval controls periodic flushing of incomplete packets
func FlushInterval(interval time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.FlushInterval = interval
	}
}

// ReconnectInterval controls UDP socket reconnects
func ReconnectInterval(interval time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.ReconnectInterval = interval
	}
}

// RetryTimeout controls delay between reconnect attempts
func RetryTimeout(timeout time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.RetryTimeout = timeout
	}
}

// WriteTimeout controls write deadline for Unix datagram sockets
func WriteTimeout(timeout time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.WriteTimeout = timeout
	}
}

// ReportInterval controls reporting of lost packets
func ReportInterval(interval time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.ReportInterval = interval
	}
}

// Logger is used to report errors and lost packets
func Logger(logger SomeLogger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// BufPoolCapacity controls size of pre-allocated buffer cache
func BufPoolCapacity(capacity int) Option {
	return func(opts *ClientOptions) {
		opts.BufPoolCapacity = capacity
	}
}

// SendQueueCapacity controls length of the queue of packet ready to be sent
func SendQueueCapacity(capacity int) Option {
	return func(opts *ClientOptions) {
		opts.SendQueueCapacity = capacity
	}
}

// TelemetryEnable turns client self-metrics on or off
func TelemetryEnable(enable bool) Option {
	return func(opts *ClientOptions) {
		opts.TelemetryEnable = enable
	}
}

// TelemetryInterval controls how often self-metrics are submitted
func TelemetryInterval(interval time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.TelemetryInterval = interval
	}
}

// WithTransport replaces network delivery with custom Transport
func WithTransport(transport Transport) Option {
	return func(opts *ClientOptions) {
		opts.Transport = transport
	}
}

func defaultOptions(addr string) ClientOptions {
	return ClientOptions{
		Addr:              addr,
		SampleRate:        DefaultSampleRate,
		FlushInterval:     DefaultFlushInterval,
		ReconnectInterval: DefaultReconnectInterval,
		ReportInterval:    DefaultReportInterval,
		RetryTimeout:      DefaultRetryTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		BufPoolCapacity:   DefaultBufPoolCapacity,
		SendQueueCapacity: DefaultSendQueueCapacity,
		TelemetryEnable:   true,
		TelemetryInterval: DefaultTelemetryInterval,
		random:            rand.Float64,
	}
}

func (opts *ClientOptions) validate() error {
	if opts.Transport == nil && opts.Addr == "" {
		return fmt.Errorf("%w: empty server address", ErrInvalidConfig)
	}

	if math.IsNaN(opts.SampleRate) || opts.SampleRate <= 0 || opts.SampleRate > 1 {
		return fmt.Errorf("%w: sample rate %v out of range (0, 1]", ErrInvalidConfig, opts.SampleRate)
	}

	if opts.MaxPacketSize <= 0 {
		return fmt.Errorf("%w: max packet size should be positive, got %d", ErrInvalidConfig, opts.MaxPacketSize)
	}

	if opts.BufPoolCapacity < 0 {
		return fmt.Errorf("%w: negative buffer pool capacity %d", ErrInvalidConfig, opts.BufPoolCapacity)
	}

	if opts.SendQueueCapacity <= 0 {
		return fmt.Errorf("%w: send queue capacity should be positive, got %d", ErrInvalidConfig, opts.SendQueueCapacity)
	}

	for _, tag := range opts.DefaultTags {
		if !tag.valid() {
			return fmt.Errorf("%w: invalid default tag %q", ErrInvalidConfig, string(tag.Append(nil)))
		}
	}

	return nil
}

// normalizeNamespace replaces characters reserved by the protocol
// with underscores and appends trailing dot
func normalizeNamespace(namespace string) string {
	namespace = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '|', ':', '@':
			return '_'
		}

		return r
	}, namespace)

	if namespace != "" && !strings.HasSuffix(namespace, ".") {
		namespace += "."
	}

	return namespace
}

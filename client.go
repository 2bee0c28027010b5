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
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// packet is a unit of work for the send loop
//
// done is set for synchronous flushes, send loop reports Transport
// result to it; packet with empty buf is a barrier.
type packet struct {
	buf  []byte
	done chan<- error
}

// engine is shared by the client and all its clones
type engine struct {
	// accessed atomically, kept first for 64-bit alignment
	lostPacketsPeriod, lostPacketsOverall int64

	options   ClientOptions
	transport Transport
	telemetry *telemetry

	bufPool chan []byte
	buf     []byte
	bufSize int
	bufLock sync.Mutex
	closed  bool

	sendQueue chan packet
	flushReq  chan chan<- error

	shutdown     chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// Client implements statsd client
type Client struct {
	namespace   string
	tags        []Tag
	renderedTag []byte

	e *engine
}

// NewClient creates new statsd client and starts background processing
//
// Client connects to statsd server at addr ("host:port" for UDP or
// "unix:///path/to/socket" for Unix datagram socket)
//
// Client settings could be controlled via functions of type Option.
// Invalid settings are reported as error wrapping ErrInvalidConfig.
func NewClient(addr string, options ...Option) (*Client, error) {
	opts := defaultOptions(addr)

	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, DefaultLogPrefix, log.LstdFlags)
	}

	if opts.Transport == nil && opts.Addr != "" {
		transport, err := newTransport(&opts)
		if err != nil {
			return nil, err
		}

		opts.Transport = transport
	}

	if opts.MaxPacketSize == 0 {
		opts.MaxPacketSize = DefaultMaxPacketSize
		if _, ok := opts.Transport.(*unixTransport); ok {
			opts.MaxPacketSize = DefaultMaxPacketSizeUDS
		}
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		namespace:   opts.Namespace,
		tags:        opts.DefaultTags,
		renderedTag: renderTags(opts.DefaultTags),
	}

	e := &engine{
		options:   opts,
		transport: opts.Transport,
		shutdown:  make(chan struct{}),
		flushReq:  make(chan chan<- error),
	}

	if opts.TelemetryEnable {
		e.telemetry = newTelemetry(transportName(&opts), c.renderedTag)
	}

	// 1024 is room for overflow metric
	e.bufSize = opts.MaxPacketSize + 1024
	e.buf = make([]byte, 0, e.bufSize)
	e.bufPool = make(chan []byte, opts.BufPoolCapacity)
	e.sendQueue = make(chan packet, opts.SendQueueCapacity)

	e.shutdownWg.Add(2)
	go e.flushLoop()
	go e.sendLoop()

	if opts.ReportInterval > 0 || (e.telemetry != nil && opts.TelemetryInterval > 0) {
		e.shutdownWg.Add(1)
		go e.reportLoop()
	}

	c.e = e

	return c, nil
}

// CloneWithNamespace returns a clone of the original client with different namespace
//
// Clones share buffers and network connection with the original client,
// closing any of them closes all of them.
func (c *Client) CloneWithNamespace(namespace string) *Client {
	clone := *c
	clone.namespace = normalizeNamespace(namespace)

	return &clone
}

// CloneWithNamespaceExtension returns a clone of the original client with
// namespace extended with the given suffix, e.g. "web." + "api" = "web.api."
func (c *Client) CloneWithNamespaceExtension(extension string) *Client {
	return c.CloneWithNamespace(c.namespace + extension)
}

// CloneWithTags returns a clone of the original client with extra default tags
func (c *Client) CloneWithTags(tags ...Tag) *Client {
	clone := *c
	clone.tags = append(append([]Tag(nil), c.tags...), tags...)
	clone.renderedTag = renderTags(clone.tags)

	return &clone
}

// Close flushes pending metrics and stops the client
//
// Close is safe to call several times and from the clones.
func (c *Client) Close() error {
	c.e.shutdownOnce.Do(func() {
		close(c.e.shutdown)
	})
	c.e.shutdownWg.Wait()

	return nil
}

// Flush hands over buffered metrics to the send loop without waiting
// for delivery
func (c *Client) Flush() {
	c.e.bufLock.Lock()
	if !c.e.closed && len(c.e.buf) > 0 {
		c.e.flushBuf(len(c.e.buf))
	}
	c.e.bufLock.Unlock()
}

// FlushSync flushes buffered metrics and waits for them to be sent
//
// Transport error for the flushed payload is returned. If nothing was
// buffered, Transport is not called.
func (c *Client) FlushSync() error {
	done := make(chan error, 1)

	select {
	case c.e.flushReq <- done:
	case <-c.e.shutdown:
		return ErrClientClosed
	}

	return <-done
}

// GetLostPackets returns number of packets lost during client lifecycle
// because of the send queue overflow
func (c *Client) GetLostPackets() int64 {
	return atomic.LoadInt64(&c.e.lostPacketsOverall)
}

// Telemetry returns client self-metrics, zero snapshot is returned
// if telemetry is disabled
func (c *Client) Telemetry() TelemetrySnapshot {
	return c.e.telemetry.snapshot()
}

// rate resolves sample rate for the call
func (c *Client) rate(name string, rate float64) (float64, error) {
	if rate == 0 {
		return c.e.options.SampleRate, nil
	}

	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return 0, invalidMetric(name, "sample rate out of range (0, 1]")
	}

	return rate, nil
}

func (c *Client) shouldSample(rate float64) bool {
	return rate >= 1 || c.e.options.random() < rate
}

func (c *Client) metric(name string, typ MetricType, value metricValue, rate float64, timestamp int64, tags []Tag) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := value.validate(name); err != nil {
		return err
	}

	if err := validateTags(name, tags); err != nil {
		return err
	}

	rate, err := c.rate(name, rate)
	if err != nil {
		return err
	}

	if !c.shouldSample(rate) {
		return nil
	}

	e := c.e
	e.bufLock.Lock()
	if e.closed {
		e.bufLock.Unlock()
		return nil
	}

	lastLen := len(e.buf)
	e.buf = appendMetric(e.buf, c.namespace, name, typ, value, rate, c.renderedTag, tags, timestamp)

	err = e.checkBuf(lastLen)
	e.bufLock.Unlock()

	if err == nil {
		e.telemetry.recordMetric()
	}

	return err
}

// Count tracks how many times something happened
//
// Rate 0 means client default sample rate.
func (c *Client) Count(name string, value int64, rate float64, tags ...Tag) error {
	return c.metric(name, CountType, metricValue{kind: intValue, i: value}, rate, 0, tags)
}

// CountWithTimestamp submits count with explicit unix timestamp, such
// metrics are never sampled
func (c *Client) CountWithTimestamp(name string, value int64, timestamp time.Time, tags ...Tag) error {
	return c.metric(name, CountType, metricValue{kind: intValue, i: value}, 1, timestamp.Unix(), tags)
}

// Incr increments a counter metric
//
// Often used to note a particular event
func (c *Client) Incr(name string, rate float64, tags ...Tag) error {
	return c.Count(name, 1, rate, tags...)
}

// Decr decrements a counter metric
func (c *Client) Decr(name string, rate float64, tags ...Tag) error {
	return c.Count(name, -1, rate, tags...)
}

// Gauge sets constant value for the interval
//
// Gauges are not subject to averaging, and they don’t change unless you change them.
func (c *Client) Gauge(name string, value float64, rate float64, tags ...Tag) error {
	return c.metric(name, GaugeType, metricValue{kind: floatValue, f: value}, rate, 0, tags)
}

// GaugeWithTimestamp submits gauge with explicit unix timestamp
func (c *Client) GaugeWithTimestamp(name string, value float64, timestamp time.Time, tags ...Tag) error {
	return c.metric(name, GaugeType, metricValue{kind: floatValue, f: value}, 1, timestamp.Unix(), tags)
}

// Histogram tracks statistical distribution of values on the agent side
func (c *Client) Histogram(name string, value float64, rate float64, tags ...Tag) error {
	return c.metric(name, HistogramType, metricValue{kind: floatValue, f: value}, rate, 0, tags)
}

// Distribution tracks statistical distribution of values on the server side
func (c *Client) Distribution(name string, value float64, rate float64, tags ...Tag) error {
	return c.metric(name, DistributionType, metricValue{kind: floatValue, f: value}, rate, 0, tags)
}

// Timing tracks a duration event, it is reported in milliseconds
func (c *Client) Timing(name string, delta time.Duration, rate float64, tags ...Tag) error {
	return c.TimeInMilliseconds(name, float64(delta)/float64(time.Millisecond), rate, tags...)
}

// TimeInMilliseconds tracks a duration event given in milliseconds
func (c *Client) TimeInMilliseconds(name string, value float64, rate float64, tags ...Tag) error {
	return c.metric(name, TimingType, metricValue{kind: floatValue, f: value}, rate, 0, tags)
}

// Set counts unique occurrences of value
func (c *Client) Set(name string, value string, rate float64, tags ...Tag) error {
	return c.metric(name, SetType, metricValue{kind: stringValue, s: value}, rate, 0, tags)
}

// Time measures execution of fn and submits it as timing metric
//
// Elapsed time is recorded even if fn fails or panics; error returned
// by fn is passed through unchanged. Metric submission errors are
// returned only if fn succeeded.
func (c *Client) Time(name string, rate float64, fn func() error, tags ...Tag) (err error) {
	start := time.Now()

	defer func() {
		timingErr := c.Timing(name, time.Since(start), rate, tags...)
		if err == nil {
			err = timingErr
		}
	}()

	return fn()
}

// Event submits an event to the event stream
func (c *Client) Event(event *Event) error {
	if err := event.validate(); err != nil {
		return err
	}

	e := c.e
	e.bufLock.Lock()
	if e.closed {
		e.bufLock.Unlock()
		return nil
	}

	lastLen := len(e.buf)
	e.buf = appendEvent(e.buf, event, c.renderedTag)

	err := e.checkBuf(lastLen)
	e.bufLock.Unlock()

	if err == nil {
		e.telemetry.recordEvent()
	}

	return err
}

// SimpleEvent submits an event with title and text only
func (c *Client) SimpleEvent(title, text string, tags ...Tag) error {
	return c.Event(&Event{Title: title, Text: text, Tags: tags})
}

// ServiceCheck submits service check result
func (c *Client) ServiceCheck(sc *ServiceCheck) error {
	if err := sc.validate(); err != nil {
		return err
	}

	e := c.e
	e.bufLock.Lock()
	if e.closed {
		e.bufLock.Unlock()
		return nil
	}

	lastLen := len(e.buf)
	e.buf = appendServiceCheck(e.buf, sc, c.renderedTag)

	err := e.checkBuf(lastLen)
	e.bufLock.Unlock()

	if err == nil {
		e.telemetry.recordServiceCheck()
	}

	return err
}

// SimpleServiceCheck submits service check with name and status only
func (c *Client) SimpleServiceCheck(name string, status ServiceCheckStatus, tags ...Tag) error {
	return c.ServiceCheck(&ServiceCheck{Name: name, Status: status, Tags: tags})
}

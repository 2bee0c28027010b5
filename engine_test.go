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
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// recordingTransport keeps every packet sent
type recordingTransport struct {
	mu      sync.Mutex
	packets []string
	err     error
	closed  bool
}

func (tr *recordingTransport) Send(payload []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.err != nil {
		return tr.err
	}

	tr.packets = append(tr.packets, string(payload))

	return nil
}

func (tr *recordingTransport) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.closed = true

	return nil
}

func (tr *recordingTransport) Packets() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	return append([]string(nil), tr.packets...)
}

func (tr *recordingTransport) setErr(err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.err = err
}

// discardTransport drops packets without allocating
type discardTransport struct{}

func (discardTransport) Send([]byte) error { return nil }
func (discardTransport) Close() error      { return nil }

func withRandom(random func() float64) Option {
	return func(opts *ClientOptions) {
		opts.random = random
	}
}

func newRecordingClient(t *testing.T, options ...Option) (*Client, *recordingTransport) {
	t.Helper()

	tr := &recordingTransport{}
	client := newTestClient(t, "", append([]Option{
		WithTransport(tr),
		Namespace("sample_ns"),
		DefaultTags(BareTag("abc"), BareTag("def")),
		FlushInterval(0),
		ReportInterval(0),
		TelemetryInterval(0),
	}, options...)...)

	t.Cleanup(func() { _ = client.Close() })

	return client, tr
}

func TestIncrementWithGlobalTags(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.Incr("foobar", 0))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.foobar:1|c|#abc,def"}, tr.Packets())
}

func TestIncrementWithCallTags(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.Incr("foobar", 0, StringTag("something", "a value")))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.foobar:1|c|#abc,def,something:a value"}, tr.Packets())
}

func TestRoundTrip(t *testing.T) {
	client, tr := newRecordingClient(t, Namespace(""), DefaultTags())

	require.NoError(t, client.Incr("foobar", 0))
	require.NoError(t, client.FlushSync())

	packets := tr.Packets()
	require.Len(t, packets, 1)

	name, rest, ok := strings.Cut(packets[0], ":")
	require.True(t, ok)
	value, typ, ok := strings.Cut(rest, "|")
	require.True(t, ok)

	assert.Equal(t, "foobar", name)
	assert.Equal(t, "1", value)
	assert.Equal(t, "c", typ)
}

func TestFlushSyncEmpty(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.FlushSync())
	require.NoError(t, client.FlushSync())

	assert.Empty(t, tr.Packets())
	assert.Zero(t, client.Telemetry().PacketsSent)
}

func TestFlushAsync(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.Gauge("queue", 3, 0))
	client.Flush()
	client.Flush()

	// barrier makes sure async packet was handed to the transport
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.queue:3|g|#abc,def"}, tr.Packets())
}

func TestBufferOverflow(t *testing.T) {
	client, tr := newRecordingClient(t, Namespace(""), DefaultTags(), MaxPacketSize(20))

	// each line is 8 bytes, two lines joined take 17 bytes
	for i := 0; i < 5; i++ {
		require.NoError(t, client.Incr("aaaa", 1))
	}

	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"aaaa:1|c\naaaa:1|c", "aaaa:1|c\naaaa:1|c", "aaaa:1|c"}, tr.Packets())

	for _, p := range tr.Packets() {
		assert.LessOrEqual(t, len(p), 20)
	}
}

func TestOversizedMetric(t *testing.T) {
	client, tr := newRecordingClient(t, Namespace(""), DefaultTags(), MaxPacketSize(20))

	require.NoError(t, client.Incr("small", 1))

	err := client.Incr(strings.Repeat("x", 30), 1)
	require.ErrorIs(t, err, ErrMetricTooLarge)

	require.NoError(t, client.Incr("small", 1))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"small:1|c\nsmall:1|c"}, tr.Packets())

	telemetry := client.Telemetry()
	assert.EqualValues(t, 1, telemetry.PacketsDropped)
	assert.EqualValues(t, 34, telemetry.BytesDropped)
	assert.EqualValues(t, 2, telemetry.Metrics)
}

func TestTransportError(t *testing.T) {
	client, tr := newRecordingClient(t)

	boom := errors.New("boom")
	tr.setErr(boom)

	require.NoError(t, client.Incr("foobar", 0))
	require.ErrorIs(t, client.FlushSync(), boom)

	// asynchronous path never reports transport errors
	require.NoError(t, client.Incr("foobar", 0))
	client.Flush()
	require.NoError(t, client.FlushSync())

	tr.setErr(nil)
	require.NoError(t, client.Incr("foobar", 0))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.foobar:1|c|#abc,def"}, tr.Packets())

	telemetry := client.Telemetry()
	assert.EqualValues(t, 2, telemetry.PacketsDroppedWriter)
	assert.EqualValues(t, 2, telemetry.PacketsDropped)
	assert.EqualValues(t, 2, telemetry.Errors)
	assert.EqualValues(t, 1, telemetry.PacketsSent)
	assert.EqualValues(t, len("sample_ns.foobar:1|c|#abc,def"), telemetry.BytesSent)
}

func TestSampling(t *testing.T) {
	var draw float64

	client, tr := newRecordingClient(t, withRandom(func() float64 { return draw }))

	draw = 0.7
	require.NoError(t, client.Incr("foobar", 0.5))
	draw = 0.3
	require.NoError(t, client.Incr("foobar", 0.5))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.foobar:1|c|@0.5|#abc,def"}, tr.Packets())
}

func TestSamplingDefaultRate(t *testing.T) {
	client, tr := newRecordingClient(t, SampleRate(0.25), withRandom(func() float64 { return 0.1 }))

	require.NoError(t, client.Incr("foobar", 0))
	require.NoError(t, client.Incr("foobar", 1))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.foobar:1|c|@0.25|#abc,def\nsample_ns.foobar:1|c|#abc,def"}, tr.Packets())
}

func TestSamplingDistribution(t *testing.T) {
	client, tr := newRecordingClient(t, Namespace(""), DefaultTags(), SendQueueCapacity(1000))

	const (
		n    = 20000
		rate = 0.25
	)

	for i := 0; i < n; i++ {
		require.NoError(t, client.Incr("hit", rate))
	}

	require.NoError(t, client.FlushSync())

	sent := 0

	for _, p := range tr.Packets() {
		for _, line := range strings.Split(p, "\n") {
			require.Equal(t, "hit:1|c|@0.25", line)
			sent++
		}
	}

	assert.InDelta(t, rate, float64(sent)/n, 0.02)
}

func TestInvalidMetrics(t *testing.T) {
	client, tr := newRecordingClient(t)

	for name, err := range map[string]error{
		"EmptyName":        client.Incr("", 0),
		"NewlineName":      client.Incr("foo\nbar", 0),
		"NaN":              client.Gauge("foo", math.NaN(), 0),
		"Inf":              client.Histogram("foo", math.Inf(1), 0),
		"NewlineTag":       client.Incr("foo", 0, StringTag("a", "b\nc")),
		"EmptySet":         client.Set("foo", "", 0),
		"RateTooBig":       client.Incr("foo", 1.5),
		"RateNegative":     client.Incr("foo", -0.1),
		"EventNoTitle":     client.SimpleEvent("", "text"),
		"ServiceCheckName": client.SimpleServiceCheck("", Ok),
		"ServiceCheckCode": client.SimpleServiceCheck("db", ServiceCheckStatus(7)),
	} {
		var invalid *InvalidMetricError
		assert.True(t, errors.As(err, &invalid), "%s: expected InvalidMetricError, got %v", name, err)
	}

	require.NoError(t, client.FlushSync())
	assert.Empty(t, tr.Packets())
	assert.Zero(t, client.Telemetry().Metrics)
}

func TestNameSanitizing(t *testing.T) {
	client, tr := newRecordingClient(t, DefaultTags())

	require.NoError(t, client.Incr("a:b|c@d", 1, StringTag("x|y", "1,2")))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"sample_ns.a_b_c_d:1|c|#xy:12"}, tr.Packets())
}

func TestNamespaceSanitizing(t *testing.T) {
	client, tr := newRecordingClient(t, DefaultTags(), Namespace("a\nb|c"))

	require.NoError(t, client.Incr("foo", 1))
	require.NoError(t, client.CloneWithNamespace("evil\nx:1|c").Incr("foo", 1))
	require.NoError(t, client.CloneWithNamespaceExtension("\nx@1").Incr("foo", 1))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{
		"a_b_c.foo:1|c\n" +
			"evil_x_1_c.foo:1|c\n" +
			"a_b_c._x_1.foo:1|c",
	}, tr.Packets())
}

func TestServiceCheckIgnoresNamespace(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.SimpleServiceCheck("db", Ok))
	require.NoError(t, client.CloneWithNamespace("other").SimpleServiceCheck("db", Critical))
	require.NoError(t, client.FlushSync())

	assert.Equal(t, []string{"_sc|db|0|#abc,def\n_sc|db|2|#abc,def"}, tr.Packets())
}

func TestTime(t *testing.T) {
	client, tr := newRecordingClient(t)

	failure := errors.New("failure")

	require.NoError(t, client.Time("op", 0, func() error { return nil }))
	require.ErrorIs(t, client.Time("op", 0, func() error { return failure }), failure)
	require.Panics(t, func() {
		_ = client.Time("op", 0, func() error { panic("oops") })
	})

	require.NoError(t, client.FlushSync())

	packets := tr.Packets()
	require.Len(t, packets, 1)

	lines := strings.Split(packets[0], "\n")
	require.Len(t, lines, 3)

	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "sample_ns.op:"), line)
		assert.True(t, strings.HasSuffix(line, "|ms|#abc,def"), line)
	}
}

func TestClose(t *testing.T) {
	client, tr := newRecordingClient(t)

	require.NoError(t, client.Incr("foobar", 0))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	// drained on close
	assert.Equal(t, []string{"sample_ns.foobar:1|c|#abc,def"}, tr.Packets())
	assert.True(t, tr.closed)

	// emits after close are discarded
	require.NoError(t, client.Incr("foobar", 0))
	require.ErrorIs(t, client.FlushSync(), ErrClientClosed)
	assert.Len(t, tr.Packets(), 1)
}

func TestCloseLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tr := &recordingTransport{}
	client := newTestClient(t, "", WithTransport(tr), FlushInterval(time.Millisecond),
		TelemetryInterval(time.Millisecond), ReportInterval(time.Millisecond))

	for i := 0; i < 100; i++ {
		_ = client.Incr("foobar", 0)
	}

	clone := client.CloneWithNamespace("other")

	require.NoError(t, clone.Close())
	require.NoError(t, client.Close())
}

func TestQueueOverflow(t *testing.T) {
	block := make(chan struct{})
	tr := &blockingTransport{block: block}

	client := newTestClient(t, "", WithTransport(tr), Namespace(""), FlushInterval(0), ReportInterval(0),
		TelemetryInterval(0), SendQueueCapacity(1), MaxPacketSize(20))

	// first packet blocks in the transport, second one stays in the queue,
	// the rest are lost
	for i := 0; i < 20; i++ {
		require.NoError(t, client.Incr("aaaa", 1))
	}

	assert.Positive(t, client.GetLostPackets())
	assert.Equal(t, client.GetLostPackets(), client.Telemetry().PacketsDroppedQueue)

	close(block)
	require.NoError(t, client.Close())
}

// blockingTransport blocks every Send until block is closed
type blockingTransport struct {
	block chan struct{}
}

func (tr *blockingTransport) Send([]byte) error {
	<-tr.block

	return nil
}

func (tr *blockingTransport) Close() error { return nil }

func TestConfigErrors(t *testing.T) {
	for name, options := range map[string][]Option{
		"SampleRateZero":   {SampleRate(0)},
		"SampleRateBig":    {SampleRate(2)},
		"PacketSize":       {MaxPacketSize(-1)},
		"SendQueue":        {SendQueueCapacity(0)},
		"BufPool":          {BufPoolCapacity(-1)},
		"DefaultTag":       {DefaultTags(StringTag("a", "\n"))},
	} {
		_, err := NewClient("127.0.0.1:8125", options...)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}

	for _, addr := range []string{"", "no-port", "unix://"} {
		_, err := NewClient(addr)
		assert.ErrorIs(t, err, ErrInvalidConfig, addr)
	}
}

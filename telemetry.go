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
	"strconv"
	"sync/atomic"
)

// Version of the client reported in telemetry tags
const Version = "1.0.0"

const telemetryPrefix = "datadog.dogstatsd.client."

// TelemetrySnapshot is a copy of client self-metrics
//
// All the counters are monotonic since the client was created.
type TelemetrySnapshot struct {
	Metrics              int64
	Events               int64
	ServiceChecks        int64
	BytesSent            int64
	BytesDropped         int64
	BytesDroppedQueue    int64
	BytesDroppedWriter   int64
	PacketsSent          int64
	PacketsDropped       int64
	PacketsDroppedQueue  int64
	PacketsDroppedWriter int64
	Errors               int64
}

func (s TelemetrySnapshot) sub(prev TelemetrySnapshot) TelemetrySnapshot {
	return TelemetrySnapshot{
		Metrics:              s.Metrics - prev.Metrics,
		Events:               s.Events - prev.Events,
		ServiceChecks:        s.ServiceChecks - prev.ServiceChecks,
		BytesSent:            s.BytesSent - prev.BytesSent,
		BytesDropped:         s.BytesDropped - prev.BytesDropped,
		BytesDroppedQueue:    s.BytesDroppedQueue - prev.BytesDroppedQueue,
		BytesDroppedWriter:   s.BytesDroppedWriter - prev.BytesDroppedWriter,
		PacketsSent:          s.PacketsSent - prev.PacketsSent,
		PacketsDropped:       s.PacketsDropped - prev.PacketsDropped,
		PacketsDroppedQueue:  s.PacketsDroppedQueue - prev.PacketsDroppedQueue,
		PacketsDroppedWriter: s.PacketsDroppedWriter - prev.PacketsDroppedWriter,
		Errors:               s.Errors - prev.Errors,
	}
}

// telemetry counters are updated with atomics from emitting goroutines
// and the send loop
//
// All the methods are safe to call on nil *telemetry, which is the case
// when telemetry is disabled.
type telemetry struct {
	metrics       int64
	events        int64
	serviceChecks int64

	bytesSent            int64
	bytesDroppedQueue    int64
	bytesDroppedWriter   int64
	bytesDroppedOversize int64

	packetsSent            int64
	packetsDroppedQueue    int64
	packetsDroppedWriter   int64
	packetsDroppedOversize int64

	errors int64

	// last is only touched by the report loop
	last TelemetrySnapshot

	// tags are rendered once: client metadata followed by default tags
	tags []byte
}

func newTelemetry(transport string, defaultTags []byte) *telemetry {
	tags := []byte("client:go,client_version:" + Version + ",client_transport:" + transport)
	if len(defaultTags) > 0 {
		tags = append(tags, ',')
		tags = append(tags, defaultTags...)
	}

	return &telemetry{tags: tags}
}

func (t *telemetry) recordMetric() {
	if t != nil {
		atomic.AddInt64(&t.metrics, 1)
	}
}

func (t *telemetry) recordEvent() {
	if t != nil {
		atomic.AddInt64(&t.events, 1)
	}
}

func (t *telemetry) recordServiceCheck() {
	if t != nil {
		atomic.AddInt64(&t.serviceChecks, 1)
	}
}

func (t *telemetry) recordSent(bytes int) {
	if t != nil {
		atomic.AddInt64(&t.packetsSent, 1)
		atomic.AddInt64(&t.bytesSent, int64(bytes))
	}
}

func (t *telemetry) recordQueueDrop(bytes int) {
	if t != nil {
		atomic.AddInt64(&t.packetsDroppedQueue, 1)
		atomic.AddInt64(&t.bytesDroppedQueue, int64(bytes))
	}
}

func (t *telemetry) recordWriterDrop(bytes int) {
	if t != nil {
		atomic.AddInt64(&t.packetsDroppedWriter, 1)
		atomic.AddInt64(&t.bytesDroppedWriter, int64(bytes))
		atomic.AddInt64(&t.errors, 1)
	}
}

func (t *telemetry) recordOversize(bytes int) {
	if t != nil {
		atomic.AddInt64(&t.packetsDroppedOversize, 1)
		atomic.AddInt64(&t.bytesDroppedOversize, int64(bytes))
	}
}

func (t *telemetry) snapshot() TelemetrySnapshot {
	if t == nil {
		return TelemetrySnapshot{}
	}

	s := TelemetrySnapshot{
		Metrics:              atomic.LoadInt64(&t.metrics),
		Events:               atomic.LoadInt64(&t.events),
		ServiceChecks:        atomic.LoadInt64(&t.serviceChecks),
		BytesSent:            atomic.LoadInt64(&t.bytesSent),
		BytesDroppedQueue:    atomic.LoadInt64(&t.bytesDroppedQueue),
		BytesDroppedWriter:   atomic.LoadInt64(&t.bytesDroppedWriter),
		PacketsSent:          atomic.LoadInt64(&t.packetsSent),
		PacketsDroppedQueue:  atomic.LoadInt64(&t.packetsDroppedQueue),
		PacketsDroppedWriter: atomic.LoadInt64(&t.packetsDroppedWriter),
		Errors:               atomic.LoadInt64(&t.errors),
	}

	s.BytesDropped = s.BytesDroppedQueue + s.BytesDroppedWriter + atomic.LoadInt64(&t.bytesDroppedOversize)
	s.PacketsDropped = s.PacketsDroppedQueue + s.PacketsDroppedWriter + atomic.LoadInt64(&t.packetsDroppedOversize)

	return s
}

type telemetryLine struct {
	name  string
	value int64
}

// telemetryLines lists counter deltas since the previous report
func telemetryLines(delta TelemetrySnapshot) []telemetryLine {
	return []telemetryLine{
		{"metrics", delta.Metrics},
		{"events", delta.Events},
		{"service_checks", delta.ServiceChecks},
		{"bytes_sent", delta.BytesSent},
		{"bytes_dropped", delta.BytesDropped},
		{"bytes_dropped_queue", delta.BytesDroppedQueue},
		{"bytes_dropped_writer", delta.BytesDroppedWriter},
		{"packets_sent", delta.PacketsSent},
		{"packets_dropped", delta.PacketsDropped},
		{"packets_dropped_queue", delta.PacketsDroppedQueue},
		{"packets_dropped_writer", delta.PacketsDroppedWriter},
	}
}

// appendCount serializes single telemetry counter as count metric
func (t *telemetry) appendCount(buf []byte, name string, value int64) []byte {
	buf = append(buf, telemetryPrefix...)
	buf = append(buf, name...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, value, 10)
	buf = append(buf, "|c|#"...)
	buf = append(buf, t.tags...)

	return append(buf, '\n')
}

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

import "github.com/prometheus/client_golang/prometheus"

// telemetryCollector exposes client telemetry counters to Prometheus
type telemetryCollector struct {
	client    *Client
	transport string
	descs     map[string]*prometheus.Desc
}

var collectorCounters = []struct {
	name, help string
	value      func(TelemetrySnapshot) int64
}{
	{"metrics_total", "Number of metrics submitted", func(s TelemetrySnapshot) int64 { return s.Metrics }},
	{"events_total", "Number of events submitted", func(s TelemetrySnapshot) int64 { return s.Events }},
	{"service_checks_total", "Number of service checks submitted", func(s TelemetrySnapshot) int64 { return s.ServiceChecks }},
	{"bytes_sent_total", "Number of bytes sent to the server", func(s TelemetrySnapshot) int64 { return s.BytesSent }},
	{"bytes_dropped_total", "Number of bytes dropped", func(s TelemetrySnapshot) int64 { return s.BytesDropped }},
	{"packets_sent_total", "Number of packets sent to the server", func(s TelemetrySnapshot) int64 { return s.PacketsSent }},
	{"packets_dropped_total", "Number of packets dropped", func(s TelemetrySnapshot) int64 { return s.PacketsDropped }},
	{"packets_dropped_queue_total", "Number of packets dropped because send queue was full", func(s TelemetrySnapshot) int64 { return s.PacketsDroppedQueue }},
	{"packets_dropped_writer_total", "Number of packets dropped because of transport errors", func(s TelemetrySnapshot) int64 { return s.PacketsDroppedWriter }},
	{"errors_total", "Number of transport errors", func(s TelemetrySnapshot) int64 { return s.Errors }},
}

// TelemetryCollector returns prometheus.Collector reporting client
// telemetry counters, e.g. to expose them on /metrics along with the
// application metrics
//
// Collector reports zeroes if telemetry is disabled.
func (c *Client) TelemetryCollector() prometheus.Collector {
	collector := &telemetryCollector{
		client:    c,
		transport: transportName(&c.e.options),
		descs:     make(map[string]*prometheus.Desc, len(collectorCounters)),
	}

	for _, counter := range collectorCounters {
		collector.descs[counter.name] = prometheus.NewDesc(
			prometheus.BuildFQName("dogstatsd", "client", counter.name),
			counter.help,
			nil,
			prometheus.Labels{"transport": collector.transport},
		)
	}

	return collector
}

func (tc *telemetryCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, counter := range collectorCounters {
		ch <- tc.descs[counter.name]
	}
}

func (tc *telemetryCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := tc.client.Telemetry()

	for _, counter := range collectorCounters {
		ch <- prometheus.MustNewConstMetric(tc.descs[counter.name], prometheus.CounterValue, float64(counter.value(snapshot)))
	}
}

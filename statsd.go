/*
Package statsd implements high-performance, zero-allocation DogStatsD client.

Go DogStatsD client library with zero allocation overhead, packet batching,
sampling and client self-telemetry. Metrics, events and service checks are
delivered over UDP or Unix datagram socket.

With statsd architecture aggregation is performed on the server side (Datadog agent),
so application emits many metrics per user action. Performance of statsd client
library is critical to introduce as little overhead as possible.

Client has zero memory allocation per metric being sent, architecture is the following:

  - there's ring of buffers, each buffer is one packet
  - metric is serialized directly into current buffer under a single lock,
    zero allocation methods are used to avoid `reflect` and memory allocation
  - buffer is flushed either when it is full, when flush period comes (e.g. every 100ms)
    or when application requests flush
  - separate goroutine is handling network operations: sending packets and reconnecting
    UDP socket (to handle statsd DNS address change); delivery is best effort, packets
    which can't be sent are dropped and accounted in telemetry
  - buffer is passed back to the pool once the packet is sent

Usage

Initialize client instance with options, one client per application is usually enough:

	client, err := statsd.NewClient("localhost:8125",
	    statsd.Namespace("web"),
	    statsd.DefaultTags(statsd.StringTag("env", "prod")))

Send metrics as events happen in the application, metrics will be packed together and
delivered to the server:

	start := time.Now()
	client.Incr("requests.http", 1)
	...
	client.Timing("requests.route.api.latency", time.Since(start), 1)

Sample rate of 0 picks default client sample rate (see SampleRate option):

	client.Histogram("response.size", 1024, 0.1, statsd.StringTag("route", "api"))

Shutdown client during application shutdown to flush all the pending metrics:

	client.Close()

Tagging

Metrics could be tagged to support aggregation on the server side. Default tags
(applied to every metric) are passed as options to the client initialization,
tags for every metric could be added as the last argument(s) to the function call:

	client.Incr("request", 1,
	    statsd.StringTag("protocol", "http"), statsd.IntTag("port", 80))

Telemetry

Client reports its own metrics (number of metrics submitted, packets and bytes sent
and dropped) as datadog.dogstatsd.client.* counters every TelemetryInterval. Telemetry
could be disabled with TelemetryEnable(false); counters are also available via
Client.Telemetry and Client.TelemetryCollector.
*/
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

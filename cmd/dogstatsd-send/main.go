// Command dogstatsd-send submits a single metric, event or service check
// to DogStatsD server and waits for it to be sent.
//
//	dogstatsd-send --addr localhost:8125 --type gauge --name queue.depth --value 42 --tag env:prod
package main

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
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	statsd "github.com/smira/go-dogstatsd"
)

type options struct {
	addr       string
	configPath string
	namespace  string
	tags       []string
	kind       string
	name       string
	value      string
	rate       float64
	text       string
	status     string
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "dogstatsd-send: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("dogstatsd-send", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.addr, "addr", "localhost:8125", "server address, host:port or unix:///path/to/socket")
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML client config, --addr is ignored if set")
	flagSet.StringVar(&opts.namespace, "namespace", "", "metric namespace")
	flagSet.StringArrayVar(&opts.tags, "tag", nil, "tag in name:value format, repeatable")
	flagSet.StringVar(&opts.kind, "type", "count", "count, gauge, histogram, distribution, timing, set, event or service_check")
	flagSet.StringVar(&opts.name, "name", "", "metric or service check name, event title")
	flagSet.StringVar(&opts.value, "value", "1", "metric value (milliseconds for timing)")
	flagSet.Float64Var(&opts.rate, "rate", 1, "sample rate")
	flagSet.StringVar(&opts.text, "text", "", "event text or service check message")
	flagSet.StringVar(&opts.status, "status", "ok", "service check status: ok, warning, critical or unknown")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	client, err := newClient(&opts, stderr)
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	tags := make([]statsd.Tag, 0, len(opts.tags))
	for _, tag := range opts.tags {
		tags = append(tags, statsd.ParseTag(tag))
	}

	if err = submit(client, &opts, tags); err != nil {
		return err
	}

	return client.FlushSync()
}

func newClient(opts *options, stderr io.Writer) (*statsd.Client, error) {
	extra := []statsd.Option{
		statsd.Logger(log.New(stderr, statsd.DefaultLogPrefix, log.LstdFlags)),
		statsd.TelemetryEnable(false),
		statsd.ReportInterval(0),
		statsd.FlushInterval(0),
	}

	if opts.namespace != "" {
		extra = append(extra, statsd.Namespace(opts.namespace))
	}

	if opts.configPath == "" {
		return statsd.NewClient(opts.addr, extra...)
	}

	cfg, err := statsd.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	return statsd.NewClientFromConfig(cfg, extra...)
}

func submit(client *statsd.Client, opts *options, tags []statsd.Tag) error {
	switch opts.kind {
	case "event":
		return client.Event(&statsd.Event{Title: opts.name, Text: opts.text, Tags: tags})
	case "service_check":
		status, err := parseStatus(opts.status)
		if err != nil {
			return err
		}

		return client.ServiceCheck(&statsd.ServiceCheck{Name: opts.name, Status: status, Message: opts.text, Tags: tags})
	case "set":
		return client.Set(opts.name, opts.value, opts.rate, tags...)
	case "count":
		value, err := strconv.ParseInt(opts.value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid count value %q: %w", opts.value, err)
		}

		return client.Count(opts.name, value, opts.rate, tags...)
	}

	value, err := strconv.ParseFloat(opts.value, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", opts.value, err)
	}

	switch opts.kind {
	case "gauge":
		return client.Gauge(opts.name, value, opts.rate, tags...)
	case "histogram":
		return client.Histogram(opts.name, value, opts.rate, tags...)
	case "distribution":
		return client.Distribution(opts.name, value, opts.rate, tags...)
	case "timing":
		return client.Timing(opts.name, time.Duration(value*float64(time.Millisecond)), opts.rate, tags...)
	default:
		return fmt.Errorf("unknown metric type %q", opts.kind)
	}
}

func parseStatus(status string) (statsd.ServiceCheckStatus, error) {
	switch status {
	case "ok":
		return statsd.Ok, nil
	case "warning":
		return statsd.Warn, nil
	case "critical":
		return statsd.Critical, nil
	case "unknown":
		return statsd.Unknown, nil
	default:
		return 0, fmt.Errorf("unknown service check status %q", status)
	}
}

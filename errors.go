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
)

// Errors returned by the client
var (
	ErrClientClosed   = errors.New("statsd: client is closed")
	ErrMetricTooLarge = errors.New("statsd: metric exceeds max packet size")
	ErrInvalidConfig  = errors.New("statsd: invalid configuration")

	// ErrNotConnected is returned by FlushSync while transport waits
	// for RetryTimeout before reconnecting
	ErrNotConnected = errors.New("statsd: not connected, waiting for retry timeout")
)

// InvalidMetricError is returned synchronously when metric, event or
// service check can't be serialized
//
// Invalid metrics are never buffered or sent.
type InvalidMetricError struct {
	Name   string
	Reason string
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("statsd: invalid metric %q: %s", e.Name, e.Reason)
}

func invalidMetric(name, reason string) error {
	return &InvalidMetricError{Name: name, Reason: reason}
}

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
	"sync/atomic"
	"time"
)

// flushLoop makes sure metrics are flushed every flushInterval, serves
// synchronous flush requests and drains the buffer on shutdown
func (e *engine) flushLoop() {
	defer e.shutdownWg.Done()

	var flushC <-chan time.Time

	if e.options.FlushInterval > 0 {
		flushTicker := time.NewTicker(e.options.FlushInterval)
		defer flushTicker.Stop()
		flushC = flushTicker.C
	}

	for {
		select {
		case <-e.shutdown:
			e.bufLock.Lock()
			e.closed = true
			p := e.pending(nil)
			e.bufLock.Unlock()

			if p.buf != nil {
				e.sendQueue <- p
			}

			close(e.sendQueue)
			return
		case done := <-e.flushReq:
			e.bufLock.Lock()
			p := e.pending(done)
			e.bufLock.Unlock()

			// blocks until there's room in the queue, packets queued
			// earlier are sent first
			e.sendQueue <- p
		case <-flushC:
			e.bufLock.Lock()
			if len(e.buf) > 0 {
				e.flushBuf(len(e.buf))
			}
			e.bufLock.Unlock()
		}
	}
}

// pending takes whole buffer as a packet, empty buffer results
// in a barrier packet
func (e *engine) pending(done chan<- error) packet {
	p := packet{done: done}

	if len(e.buf) > 0 {
		p.buf = e.takeBuf(len(e.buf))
	}

	return p
}

// sendLoop handles packet delivery, it is the only user of the Transport
func (e *engine) sendLoop() {
	defer e.shutdownWg.Done()

	for p := range e.sendQueue {
		var err error

		if len(p.buf) > 0 {
			// cut off \n in the end
			payload := p.buf[0 : len(p.buf)-1]

			err = e.transport.Send(payload)
			if err != nil {
				if !errors.Is(err, ErrNotConnected) {
					e.options.Logger.Printf("[STATSD] Error sending packet: %s", err)
				}
				e.telemetry.recordWriterDrop(len(payload))
			} else {
				e.telemetry.recordSent(len(payload))
			}

			e.releaseBuf(p.buf)
		}

		if p.done != nil {
			p.done <- err
		}
	}

	if err := e.transport.Close(); err != nil {
		e.options.Logger.Printf("[STATSD] Error closing transport: %s", err)
	}
}

// reportLoop reports periodically number of packets lost and submits telemetry
func (e *engine) reportLoop() {
	defer e.shutdownWg.Done()

	var reportC, telemetryC <-chan time.Time

	if e.options.ReportInterval > 0 {
		reportTicker := time.NewTicker(e.options.ReportInterval)
		defer reportTicker.Stop()
		reportC = reportTicker.C
	}

	if e.telemetry != nil && e.options.TelemetryInterval > 0 {
		telemetryTicker := time.NewTicker(e.options.TelemetryInterval)
		defer telemetryTicker.Stop()
		telemetryC = telemetryTicker.C
	}

	for {
		select {
		case <-e.shutdown:
			return
		case <-reportC:
			lostPeriod := atomic.SwapInt64(&e.lostPacketsPeriod, 0)
			if lostPeriod > 0 {
				e.options.Logger.Printf("[STATSD] %d packets lost (overflow)", lostPeriod)
			}
		case <-telemetryC:
			e.reportTelemetry()
		}
	}
}

// reportTelemetry appends telemetry counters to the buffer the same
// way metrics are appended, but telemetry metrics are not counted
func (e *engine) reportTelemetry() {
	snapshot := e.telemetry.snapshot()
	delta := snapshot.sub(e.telemetry.last)
	e.telemetry.last = snapshot

	e.bufLock.Lock()
	defer e.bufLock.Unlock()

	if e.closed {
		return
	}

	// one line at a time, so that report could be split across packets
	for _, line := range telemetryLines(delta) {
		lastLen := len(e.buf)
		e.buf = e.telemetry.appendCount(e.buf, line.name, line.value)

		// line doesn't fit into a packet at all, it is not a client drop
		if len(e.buf)-lastLen-1 > e.options.MaxPacketSize {
			e.buf = e.buf[:lastLen]
			continue
		}

		_ = e.checkBuf(lastLen)
	}
}

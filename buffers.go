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
	"sync/atomic"
)

// checkBuf checks the line appended after lastLen for overflow
//
// Line which doesn't fit into a packet on its own is discarded. If the
// line overflows current packet, buffer is flushed up to lastLen bytes
// and the line is preserved in flushBuf as a start of the new packet.
func (e *engine) checkBuf(lastLen int) error {
	// trailing '\n' is cut off before sending
	lineLen := len(e.buf) - lastLen - 1

	if lineLen > e.options.MaxPacketSize {
		e.buf = e.buf[:lastLen]
		e.telemetry.recordOversize(lineLen)

		return fmt.Errorf("%w: %d > %d bytes", ErrMetricTooLarge, lineLen, e.options.MaxPacketSize)
	}

	if len(e.buf)-1 > e.options.MaxPacketSize {
		e.flushBuf(lastLen)
	}

	return nil
}

// takeBuf cuts first length bytes of the buffer off and initializes new buffer
//
// Tail beyond length is copied to the new buffer.
func (e *engine) takeBuf(length int) []byte {
	sendBuf := e.buf[0:length]
	tail := e.buf[length:len(e.buf)]

	// get new buffer
	select {
	case e.buf = <-e.bufPool:
		e.buf = e.buf[0:0]
	default:
		e.buf = make([]byte, 0, e.bufSize)
	}

	// copy tail to the new buffer
	e.buf = append(e.buf, tail...)

	return sendBuf
}

// flushBuf sends buffer to the queue and initializes new buffer
func (e *engine) flushBuf(length int) {
	sendBuf := e.takeBuf(length)

	// flush current buffer
	select {
	case e.sendQueue <- packet{buf: sendBuf}:
	default:
		// flush failed, we lost some data
		atomic.AddInt64(&e.lostPacketsPeriod, 1)
		atomic.AddInt64(&e.lostPacketsOverall, 1)
		e.telemetry.recordQueueDrop(len(sendBuf) - 1)

		e.releaseBuf(sendBuf)
	}
}

// releaseBuf returns buffer to the pool
func (e *engine) releaseBuf(buf []byte) {
	select {
	case e.bufPool <- buf:
	default:
		// pool is full, let GC handle the buf
	}
}

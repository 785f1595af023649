/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package reassembly implements the TCP payload reassembler (C3): a
// per-lane state machine that turns a segment stream into a sequence of
// complete length-prefixed payloads. See §3 and §4.3.
//
// Each lane is an independent, single-threaded state machine owned
// exclusively by the pipeline goroutine. The wire framing is a 2-byte
// length prefix, so the state machine is simple: Fresh or Partial, no
// out-of-order reassembly.
package reassembly

import (
	"time"

	"jinr.ru/greenlab/zwiftwatch/pkg/log"
)

// DefaultMaxWant is the largest length prefix accepted before a lane is
// treated as corrupted and reset (§4.3 "safety rail"). The wire length
// prefix is a 16-bit unsigned integer (at most 65535), so with this
// default ceiling the check never fires, not even on a corrupted
// stream; it only fires on a lane whose maxWant has been set lower.
const DefaultMaxWant = 1 << 16

// Payload is one complete, length-stripped framed message produced by a
// lane (§3 LanePayload).
type Payload struct {
	Lane     int
	Sequence uint32 // capture-time offset in ms from the lane's first segment
	Bytes    []byte
}

// Lane is one directional reassembly context (§3 ReassemblerState).
// Not safe for concurrent use: the pipeline owns each lane exclusively
// (§5).
type Lane struct {
	id      int
	name    string
	maxWant int

	buf  []byte
	want int // -1 means "not yet known" (Fresh state)

	haveEpoch bool
	epoch     time.Time
}

// NewLane constructs a lane in Fresh state. id is an opaque correlation
// id echoed back on every Payload (e.g. the demux.Lane it serves).
func NewLane(id int, name string) *Lane {
	l := &Lane{id: id, name: name, maxWant: DefaultMaxWant}
	l.Reset()
	return l
}

// Reset forces the lane back to Fresh state, discarding any partial
// buffer. Idempotent: calling it repeatedly, or on a lane that was just
// constructed, leaves it behaviourally indistinguishable from new.
func (l *Lane) Reset() {
	l.buf = nil
	l.want = -1
	l.haveEpoch = false
	l.epoch = time.Time{}
}

// Feed processes one segment's payload bytes, observed at captureTime,
// and returns zero or more completed Payloads in capture order.
//
// Overflow is handled iteratively: a single segment that completes one
// frame and still has bytes left over is re-run through Fresh state
// immediately, so three coalesced frames in one segment yield three
// Payloads from a single Feed call (§4.3).
func (l *Lane) Feed(captureTime time.Time, segment []byte) []Payload {
	if !l.haveEpoch {
		l.epoch = captureTime
		l.haveEpoch = true
	}

	l.buf = append(l.buf, segment...)

	var out []Payload
	for {
		if l.want < 0 {
			// Fresh state: need at least the 2-byte length header.
			if len(l.buf) < 2 {
				// Length not yet known; buffer the bytes and wait (§4.3
				// edge case).
				return out
			}
			want := int(l.buf[0])<<8 | int(l.buf[1])
			l.buf = l.buf[2:]
			if want > l.maxWant {
				log.Error("reassembly: lane %s claims frame length %d exceeding max %d, resetting", l.name, want, l.maxWant)
				l.Reset()
				return out
			}
			l.want = want
		}

		if len(l.buf) < l.want {
			// Partial state: keep accumulating.
			return out
		}

		body := l.buf[:l.want]
		overflow := l.buf[l.want:]

		seq := uint32(captureTime.Sub(l.epoch) / time.Millisecond)
		out = append(out, Payload{Lane: l.id, Sequence: seq, Bytes: body})

		l.buf = overflow
		l.want = -1
		// loop: re-enter Fresh state on the overflow, iterating until
		// no bytes remain (§4.3 "Overflow handling must be iterative").
		if len(l.buf) == 0 {
			return out
		}
	}
}

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

// Package udpenvelope implements the UDP envelope stripper (C4): it
// converts a UDP datagram into a bare protobuf byte slice, stripping
// leading metadata and a 4-byte trailer (§4.4).
//
// The outbound heuristic is an empirically derived compatibility
// contract; it must be reproduced bit-for-bit, not "simplified" (§9).
package udpenvelope

import "errors"

// ErrMalformed signals a datagram too short to contain the trailer and
// minimum protobuf tag, or one whose header-length byte is nonsensical.
var ErrMalformed = errors.New("udpenvelope: malformed outbound frame")

const trailerLen = 4

// StripInbound passes an inbound (src_port == P_UDP) datagram through
// unchanged: it is already a bare protobuf message.
func StripInbound(p []byte) []byte {
	return p
}

// StripOutbound strips an outbound (dst_port == P_UDP) datagram's
// variable-length header and 4-byte trailer, per the skip heuristic of
// §4.4:
//
//   - default skip = 5
//   - if p[5] == 0x08, keep skip = 5 (typical case: protobuf tag at offset 5)
//   - else if p[0] == 0x08, skip = 0 (no header)
//   - else skip = p[0] - 1 (first byte encodes header length)
func StripOutbound(p []byte) ([]byte, error) {
	if len(p) < 9 {
		// Below the default 5-byte header plus the 4-byte trailer; this
		// also guarantees p[5] can be evaluated.
		return nil, ErrMalformed
	}

	skip := 5
	switch {
	case p[5] == 0x08:
		skip = 5
	case p[0] == 0x08:
		skip = 0
	default:
		skip = int(p[0]) - 1
	}

	if skip < 0 || len(p) < skip+trailerLen {
		return nil, ErrMalformed
	}

	return p[skip : len(p)-trailerLen], nil
}

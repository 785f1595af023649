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

// Package demux implements the L3/L4 demultiplexer (C2): it classifies
// one captured frame into exactly one of five lanes, or drops it.
package demux

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/zwiftwatch/pkg/ports"
)

// Lane identifies one of the three TCP reassembly lanes.
type Lane int

const (
	LaneGameInbound Lane = iota
	LaneCompanionInbound
	LaneCompanionOutbound
)

func (l Lane) String() string {
	switch l {
	case LaneGameInbound:
		return "game-inbound"
	case LaneCompanionInbound:
		return "companion-inbound"
	case LaneCompanionOutbound:
		return "companion-outbound"
	default:
		return "unknown-lane"
	}
}

// Direction of a frame. On the game lanes it is relative to the desktop
// simulator: Inbound means the desktop is receiving, Outbound means the
// desktop is sending. On the companion lanes Outbound is companion app
// -> desktop and Inbound is desktop -> companion app.
type Direction int

const (
	DirUnknown Direction = iota
	Inbound
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Kind distinguishes the two onward paths: the TCP reassembler (C3) or
// the UDP envelope stripper (C4).
type Kind int

const (
	KindTCP Kind = iota
	KindUDP
)

// Decision is the classification of one frame, ready for dispatch to the
// next pipeline stage.
type Decision struct {
	Kind        Kind
	Lane        Lane // only meaningful when Kind == KindTCP
	Direction   Direction
	Payload     []byte
	Push        bool
	Ack         bool
	CaptureTime time.Time
}

// Classify parses the IP and TCP/UDP layers of packet and routes it per
// the rules of §4.2. The second return value is false when the frame
// carries no payload for this pipeline (dropped).
func Classify(packet gopacket.Packet) (Decision, bool) {
	captureTime := packet.Metadata().CaptureInfo.Timestamp

	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok {
			return Decision{}, false
		}
		src, dst := uint16(tcp.SrcPort), uint16(tcp.DstPort)

		switch {
		case src == ports.TCP:
			return Decision{
				Kind: KindTCP, Lane: LaneGameInbound, Direction: Inbound,
				Payload: tcp.Payload, Push: tcp.PSH, Ack: tcp.ACK, CaptureTime: captureTime,
			}, true
		case dst == ports.TCP:
			// handshake/ACK-only traffic toward the game server, never
			// carries a payload worth reassembling.
			return Decision{}, false
		case src == ports.Companion:
			return Decision{
				Kind: KindTCP, Lane: LaneCompanionOutbound, Direction: Outbound,
				Payload: tcp.Payload, Push: tcp.PSH, Ack: tcp.ACK, CaptureTime: captureTime,
			}, true
		case dst == ports.Companion:
			return Decision{
				Kind: KindTCP, Lane: LaneCompanionInbound, Direction: Inbound,
				Payload: tcp.Payload, Push: tcp.PSH, Ack: tcp.ACK, CaptureTime: captureTime,
			}, true
		default:
			return Decision{}, false
		}
	}

	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			return Decision{}, false
		}
		src, dst := uint16(udp.SrcPort), uint16(udp.DstPort)

		switch {
		case src == ports.UDP:
			return Decision{Kind: KindUDP, Direction: Inbound, Payload: udp.Payload, CaptureTime: captureTime}, true
		case dst == ports.UDP:
			return Decision{Kind: KindUDP, Direction: Outbound, Payload: udp.Payload, CaptureTime: captureTime}, true
		default:
			return Decision{}, false
		}
	}

	return Decision{}, false
}

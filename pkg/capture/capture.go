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

// Package capture implements the frame source (C1): it opens either a
// live network interface or a pcap file and hands back raw frames one
// at a time, BPF-filtered to the ports this module cares about.
package capture

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/ports"
)

// DefaultReadTimeout bounds how long a single ReadPacketData call may
// block, so the session loop (C8) gets a chance to notice
// cancellation even on an idle interface.
const DefaultReadTimeout = time.Second

// Options configures a capture session.
type Options struct {
	// Interface selects a live device (see ResolveInterface). Ignored
	// when ReplayFile is set.
	Interface string
	// ReplayFile, when non-empty, replays a previously captured pcap
	// file instead of opening a live interface.
	ReplayFile string
	// Companion widens the BPF filter to also capture the
	// companion-app TCP lane.
	Companion bool
	SnapLen   int
}

// Source yields raw frames from either a live interface or a pcap file.
type Source struct {
	handle   *pcap.Handle
	linkType gopacket.Decoder
}

// Open resolves opts.Interface (or opts.ReplayFile) and starts a
// capture, installing the BPF filter computed from opts.Companion.
func Open(opts Options) (*Source, error) {
	var handle *pcap.Handle
	var err error

	if opts.ReplayFile != "" {
		handle, err = pcap.OpenOffline(opts.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("capture: failed to open replay file %s: %w", opts.ReplayFile, err)
		}
	} else {
		device, err2 := ResolveInterface(opts.Interface)
		if err2 != nil {
			return nil, err2
		}
		snapLen := opts.SnapLen
		if snapLen <= 0 {
			snapLen = 65536
		}
		handle, err = pcap.OpenLive(device, int32(snapLen), true, DefaultReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("capture: failed to open interface %s: %w", device, err)
		}
	}

	filter := ports.Filter(opts.Companion)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("capture: failed to apply filter %q: %w", filter, err)
	}

	return &Source{handle: handle, linkType: handle.LinkType()}, nil
}

// ReadPacketData blocks until one frame is available or the source's
// per-call timeout elapses, in which case it returns pcap.NextErrorTimeoutExpired.
func (s *Source) ReadPacketData() (gopacket.Packet, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		return nil, err
	}
	packet := gopacket.NewPacket(data, s.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	packet.Metadata().CaptureInfo = ci
	return packet, nil
}

// Close releases the underlying pcap handle.
func (s *Source) Close() {
	s.handle.Close()
}

// ResolveInterface maps the Interface config field onto a device name
// pcap.OpenLive can use. An empty string means "the first interface
// carrying at least one address". A value may also be an IPv4
// dotted-quad matching one of the interface's addresses, or the
// interface's friendly display name matched case-insensitively.
func ResolveInterface(interfaceName string) (string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("capture: failed to enumerate interfaces: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("capture: no network interfaces found")
	}

	if interfaceName == "" {
		for _, d := range devices {
			if len(d.Addresses) > 0 {
				return d.Name, nil
			}
		}
		return "", fmt.Errorf("capture: no interface with an address found")
	}

	if ip := net.ParseIP(interfaceName); ip != nil {
		for _, d := range devices {
			for _, a := range d.Addresses {
				if a.IP.Equal(ip) {
					return d.Name, nil
				}
			}
		}
		return "", fmt.Errorf("capture: no interface has address %s", interfaceName)
	}

	lower := strings.ToLower(interfaceName)
	for _, d := range devices {
		if d.Name == interfaceName {
			return d.Name, nil
		}
		if strings.ToLower(d.Description) == lower {
			return d.Name, nil
		}
	}

	log.Warning("capture: interface %q not found by name, description or address", interfaceName)
	return "", fmt.Errorf("capture: interface not found: %s", interfaceName)
}

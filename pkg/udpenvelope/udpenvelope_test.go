package udpenvelope

import (
	"bytes"
	"testing"
)

func TestStripOutboundDefaultHeader(t *testing.T) {
	// p[5] == 0x08: 5-byte header, body 08 01 02 03, 4-byte trailer.
	p := []byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x08, 0x01, 0x02, 0x03, 0xFA, 0xFA, 0xFA, 0xFA}
	got, err := StripOutbound(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x08, 0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestStripOutboundHeaderless(t *testing.T) {
	p := []byte{0x08, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	got, err := StripOutbound(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := p[:len(p)-4]
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestStripOutboundEncodedHeaderLength(t *testing.T) {
	// p[0] encodes header length directly: header of 3 bytes (p[0]=4 => skip=3).
	p := []byte{0x04, 0xAA, 0xBB, 0xCC, 0x08, 0x2A, 0x01, 0x02, 0x03, 0x04}
	got, err := StripOutbound(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := p[3 : len(p)-4]
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestStripOutboundTooShort(t *testing.T) {
	p := []byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x08, 0x01, 0x02}
	if _, err := StripOutbound(p); err == nil {
		t.Fatalf("expected malformed-frame error for short datagram")
	}
}

func TestStripInboundPassthrough(t *testing.T) {
	p := []byte{0x08, 0x01, 0x02, 0x03}
	got := StripInbound(p)
	if !bytes.Equal(got, p) {
		t.Fatalf("inbound strip must be a passthrough")
	}
}

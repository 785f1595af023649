package companionproto

import (
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFixed64Field(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

// TestDecodeOutboundCommandSent reproduces the concrete scenario: an
// outbound rider message with detail.type = 22 and detail.command_type
// = 1011 must emit exactly one CommandSent event with code GoStraight.
func TestDecodeOutboundCommandSent(t *testing.T) {
	var detail []byte
	detail = appendVarintField(detail, detailFieldType, detailTypeCommandSent)
	detail = appendVarintField(detail, detailFieldCommand, 1011)

	var body []byte
	body = appendBytesField(body, outFieldDetail, detail)
	// pad past the heartbeat threshold
	body = appendBytesField(body, 99, []byte("padding-to-exceed-heartbeat-length"))

	out, err := DecodeOutbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(out))
	}
	cmd, ok := out[0].(events.CommandSent)
	if !ok {
		t.Fatalf("expected CommandSent, got %T", out[0])
	}
	if cmd.Code != events.GoStraight || cmd.RawCode != 1011 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestDecodeOutboundHeartbeat(t *testing.T) {
	out, err := DecodeOutbound([]byte{0x01, 0x02, 0x03}, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	if _, ok := out[0].(events.HeartBeat); !ok {
		t.Fatalf("expected HeartBeat, got %T", out[0])
	}
}

func TestDecodeOutboundClockSync(t *testing.T) {
	var body []byte
	body = appendVarintField(body, outFieldClock, 123456)
	body = appendVarintField(body, outFieldTag10, 0)
	// push past the heartbeat threshold without adding a detail field
	body = appendBytesField(body, 50, []byte("extra-bytes-to-exceed-threshold"))

	out, err := DecodeOutbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	sync, ok := out[0].(events.PlayerTimeSync)
	if !ok || sync.Time != 123456 {
		t.Fatalf("unexpected clock sync event: %+v", out[0])
	}
}

func TestDecodeInboundPowerUpGranted(t *testing.T) {
	var item []byte
	item = appendVarintField(item, itemFieldType, itemTypePowerUp)
	item = appendVarintField(item, itemFieldKind, 7)

	var body []byte
	body = appendBytesField(body, inFieldItem, item)

	out, err := DecodeInbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	pu, ok := out[0].(events.PowerUpGranted)
	if !ok || pu.Kind != 7 {
		t.Fatalf("unexpected power-up event: %+v", out[0])
	}
}

func TestDecodeInboundCommandAvailable(t *testing.T) {
	var item []byte
	item = appendVarintField(item, itemFieldType, itemTypeCommandAvail)
	item = appendVarintField(item, itemFieldCode, 1011)
	item = appendBytesField(item, itemFieldTitle, []byte("Go Straight"))

	var body []byte
	body = appendBytesField(body, inFieldItem, item)

	out, err := DecodeInbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	av, ok := out[0].(events.CommandAvailable)
	if !ok || av.Code != events.GoStraight || av.Title != "Go Straight" {
		t.Fatalf("unexpected command-available event: %+v", out[0])
	}
}

func TestDecodeInboundRiderPosition(t *testing.T) {
	var rider []byte
	rider = appendFixed64Field(rider, riderFieldLat, math.Float64bits(51.5))
	rider = appendFixed64Field(rider, riderFieldLon, math.Float64bits(-0.1))
	rider = appendFixed64Field(rider, riderFieldAlt, math.Float64bits(42.0))

	var group []byte
	group = appendVarintField(group, groupFieldIndex, ridersGroupIndex)
	group = appendBytesField(group, groupFieldRider, rider)

	var details []byte
	details = appendVarintField(details, detailsFieldType, detailsTypeRiderPositions)
	details = appendBytesField(details, detailsFieldGroups, group)

	var item []byte
	item = appendVarintField(item, itemFieldType, itemTypeActivityDetails)
	item = appendBytesField(item, itemFieldDetails, details)

	var body []byte
	body = appendBytesField(body, inFieldItem, item)

	out, err := DecodeInbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	pos, ok := out[0].(events.RiderPosition)
	if !ok {
		t.Fatalf("expected RiderPosition, got %T", out[0])
	}
	if pos.Lat != 51.5 || pos.Lon != -0.1 || pos.Alt != 42.0 {
		t.Fatalf("unexpected rider position: %+v", pos)
	}
}

func TestDecodeInboundActivityStarted(t *testing.T) {
	var details []byte
	details = appendVarintField(details, detailsFieldType, detailsTypeActivityStarted)
	details = appendVarintField(details, detailsFieldActivityID, 999)

	var item []byte
	item = appendVarintField(item, itemFieldType, itemTypeActivityDetails)
	item = appendBytesField(item, itemFieldDetails, details)

	var body []byte
	body = appendBytesField(body, inFieldItem, item)

	out, err := DecodeInbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	started, ok := out[0].(events.ActivityStarted)
	if !ok || started.ActivityID != 999 {
		t.Fatalf("unexpected activity-started event: %+v", out[0])
	}
}

func TestDecodeInboundIgnoredItemType(t *testing.T) {
	var item []byte
	item = appendVarintField(item, itemFieldType, 1)

	var body []byte
	body = appendBytesField(body, inFieldItem, item)

	out, err := DecodeInbound(body, events.Envelope{}, diag.Noop{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("ignored item type must yield no events, got %d", len(out))
	}
}

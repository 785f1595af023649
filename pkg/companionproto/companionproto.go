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

// Package companionproto is the companion-protocol decoder (C6). It
// parses outbound (companion-app -> desktop) and inbound (desktop ->
// companion-app) messages through two separate entry points, following
// §4.6.
//
// As with gameproto, the field numbers named here are this decoder's
// working assumption about the generated schema's layout: no .proto
// source for the companion protocol survived the reverse-engineering
// effort, so the layout is recovered from the wire, not read from a
// schema file.
package companionproto

import (
	"encoding/hex"
	"math"

	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/wire"
)

// HeartbeatMaxLen is the size threshold at or below which an outbound
// payload is treated as a bare heartbeat rather than a rider-message
// envelope.
const HeartbeatMaxLen = 10

// Outbound rider-message envelope field numbers.
const (
	outFieldDetail = 1 // embedded RiderDetail message, optional
	outFieldTag10  = 10
	outFieldClock  = 2 // clock time, only meaningful for the ClockSync branch
)

// RiderDetail field numbers.
const (
	detailFieldType    = 1
	detailFieldCommand = 2 // present when detail.type == 22
	detailFieldData    = 3 // embedded, present when detail.type == 29
)

// Detail-data field numbers (detail.type == 29).
const (
	dataFieldTag1 = 1
	dataFieldName = 2
)

const (
	detailTypeRideOnCandidate = 16
	detailTypeCommandSent     = 22
	detailTypeDeviceOrEnd     = 29
	detailTypeDiag14          = 14
	detailTypeDiag20          = 20
	detailTypeDiag28          = 28
)

const (
	dataTag1DeviceInfo   = 4
	dataTag1ActivityEnd  = 15
)

// DecodeOutbound parses one outbound companion payload.
func DecodeOutbound(body []byte, env events.Envelope, sink diag.Sink) ([]interface{}, error) {
	if len(body) <= HeartbeatMaxLen {
		return []interface{}{events.HeartBeat{Envelope: env}}, nil
	}

	detail, hasDetail := wire.Bytes(body, outFieldDetail)
	tag10, hasTag10 := wire.Varint(body, outFieldTag10)

	if !hasDetail && hasTag10 && tag10 == 0 {
		clock, ok := wire.Varint(body, outFieldClock)
		if !ok {
			log.Warning("companionproto: failed to parse clock sync payload: %s", hex.EncodeToString(body))
			return nil, nil
		}
		return []interface{}{events.PlayerTimeSync{Envelope: env, Time: clock}}, nil
	}

	if !hasDetail {
		log.Warning("companionproto: outbound payload has no detail and is not a clock sync: %s", hex.EncodeToString(body))
		sink.Store("outbound-unknown", body, env.Direction.String(), env.Sequence)
		return nil, nil
	}

	detailType, ok := wire.Varint(detail, detailFieldType)
	if !ok {
		log.Warning("companionproto: detail sub-message missing type: %s", hex.EncodeToString(detail))
		return nil, nil
	}

	switch detailType {
	case detailTypeRideOnCandidate:
		// Too frequent to emit as a user-visible ride-on; record only.
		sink.Store("ride-on-candidate", detail, env.Direction.String(), env.Sequence)
		return nil, nil

	case detailTypeCommandSent:
		code, ok := wire.Varint(detail, detailFieldCommand)
		if !ok {
			return nil, nil
		}
		named, _ := events.CommandFromCode(code)
		return []interface{}{events.CommandSent{Envelope: env, Code: named, RawCode: code}}, nil

	case detailTypeDeviceOrEnd:
		data, ok := wire.Bytes(detail, detailFieldData)
		if !ok {
			log.Warning("companionproto: type 29 detail missing data: %s", hex.EncodeToString(detail))
			return nil, nil
		}
		tag1, ok := wire.Varint(data, dataFieldTag1)
		if !ok {
			return nil, nil
		}
		switch tag1 {
		case dataTag1DeviceInfo:
			return []interface{}{events.DeviceInfo{Envelope: env, Raw: data}}, nil
		case dataTag1ActivityEnd:
			name, _ := wire.String(data, dataFieldName)
			return []interface{}{events.ActivityEnded{Envelope: env, Name: name}}, nil
		default:
			sink.Store("type29-unknown", data, env.Direction.String(), env.Sequence)
			return nil, nil
		}

	case detailTypeDiag14, detailTypeDiag20, detailTypeDiag28:
		sink.Store("diagnostic", detail, env.Direction.String(), env.Sequence)
		return nil, nil

	default:
		log.Warning("companionproto: unknown outbound detail type %d: %s", detailType, hex.EncodeToString(detail))
		sink.Store("outbound-unknown-detail", detail, env.Direction.String(), env.Sequence)
		return nil, nil
	}
}

// Inbound item container field number: repeated Item.
const inFieldItem = 1

// Item field numbers.
const (
	itemFieldType    = 1
	itemFieldKind    = 2 // PowerUpGranted.kind
	itemFieldCode    = 2 // CommandAvailable.code (shares the slot with Kind; different item types)
	itemFieldTitle   = 3 // CommandAvailable.title
	itemFieldDetails = 4 // ActivityDetails, present when item.type == 13
)

// ActivityDetails field numbers.
const (
	detailsFieldType       = 1
	detailsFieldActivityID = 2 // present when details.type == 3
	detailsFieldGroups     = 3 // repeated RiderGroup, present when details.type == 5
)

// RiderGroup field numbers.
const (
	groupFieldIndex = 1
	groupFieldRider = 2 // repeated Rider
)

// Rider field numbers.
const (
	riderFieldLat = 1
	riderFieldLon = 2
	riderFieldAlt = 3
)

const (
	itemTypePowerUp         = 2
	itemTypeCommandAvail    = 4
	itemTypeActivityDetails = 13
)

var itemTypesIgnored = map[uint64]bool{1: true, 3: true, 6: true, 9: true}

const (
	detailsTypeActivityStarted = 3
	detailsTypeRiderPositions  = 5
	detailsTypeNearbyRiderA    = 17
	detailsTypeNearbyRiderB    = 19
)

var detailsTypesOpaque = map[uint64]bool{6: true, 7: true, 10: true, 18: true, 20: true, 21: true, 23: true}

const ridersGroupIndex = 10

// DecodeInbound parses one inbound companion payload: a sequence of
// items, each dispatched by item.type.
func DecodeInbound(body []byte, env events.Envelope, sink diag.Sink) ([]interface{}, error) {
	var out []interface{}
	err := wire.Each(body, func(f wire.Field) error {
		if f.Number != inFieldItem || f.Type != wire.BytesType {
			return nil
		}
		if ev, ok := decodeItem(f.Raw, env, sink); ok {
			out = append(out, ev...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeItem(item []byte, env events.Envelope, sink diag.Sink) ([]interface{}, bool) {
	itemType, ok := wire.Varint(item, itemFieldType)
	if !ok {
		log.Warning("companionproto: item missing type: %s", hex.EncodeToString(item))
		return nil, false
	}

	switch itemType {
	case itemTypePowerUp:
		kind, ok := wire.Varint(item, itemFieldKind)
		if !ok {
			return nil, false
		}
		return []interface{}{events.PowerUpGranted{Envelope: env, Kind: kind}}, true

	case itemTypeCommandAvail:
		code, okCode := wire.Varint(item, itemFieldCode)
		title, _ := wire.String(item, itemFieldTitle)
		if !okCode {
			return nil, false
		}
		named, _ := events.CommandFromCode(code)
		return []interface{}{events.CommandAvailable{Envelope: env, Code: named, RawCode: code, Title: title}}, true

	case itemTypeActivityDetails:
		details, ok := wire.Bytes(item, itemFieldDetails)
		if !ok {
			log.Warning("companionproto: activity-details item missing details: %s", hex.EncodeToString(item))
			return nil, false
		}
		return decodeActivityDetails(details, env, sink)

	default:
		if itemTypesIgnored[itemType] {
			return nil, false
		}
		log.Warning("companionproto: unknown inbound item type %d: %s", itemType, hex.EncodeToString(item))
		sink.Store("inbound-unknown-item", item, env.Direction.String(), env.Sequence)
		return nil, false
	}
}

func decodeActivityDetails(details []byte, env events.Envelope, sink diag.Sink) ([]interface{}, bool) {
	detailsType, ok := wire.Varint(details, detailsFieldType)
	if !ok {
		log.Warning("companionproto: activity details missing type: %s", hex.EncodeToString(details))
		return nil, false
	}

	switch detailsType {
	case detailsTypeActivityStarted:
		id, ok := wire.Varint(details, detailsFieldActivityID)
		if !ok {
			return nil, false
		}
		return []interface{}{events.ActivityStarted{Envelope: env, ActivityID: id}}, true

	case detailsTypeRiderPositions:
		var out []interface{}
		for _, group := range wire.Messages(details, detailsFieldGroups) {
			index, _ := wire.Varint(group, groupFieldIndex)
			riders := wire.Messages(group, groupFieldRider)
			if index == ridersGroupIndex && len(riders) == 1 {
				lat, lon, alt, ok := decodeRider(riders[0])
				if ok {
					out = append(out, events.RiderPosition{Envelope: env, Lat: lat, Lon: lon, Alt: alt})
				}
				continue
			}
			// Nearby riders outside the group we care about: logged,
			// not surfaced as an event.
			log.Debug("companionproto: nearby rider group index=%d riders=%d", index, len(riders))
		}
		return out, len(out) > 0

	case detailsTypeNearbyRiderA, detailsTypeNearbyRiderB:
		log.Debug("companionproto: nearby-rider details type=%d", detailsType)
		return nil, false

	default:
		if detailsTypesOpaque[detailsType] {
			sink.Store("activity-details", details, env.Direction.String(), env.Sequence)
			return nil, false
		}
		log.Warning("companionproto: unknown activity-details type %d: %s", detailsType, hex.EncodeToString(details))
		sink.Store("activity-details-unknown", details, env.Direction.String(), env.Sequence)
		return nil, false
	}
}

func decodeRider(rider []byte) (lat, lon, alt float64, ok bool) {
	latBits, okLat := wire.Fixed64(rider, riderFieldLat)
	lonBits, okLon := wire.Fixed64(rider, riderFieldLon)
	altBits, okAlt := wire.Fixed64(rider, riderFieldAlt)
	if !okLat || !okLon || !okAlt {
		log.Warning("companionproto: failed to parse rider position: %s", hex.EncodeToString(rider))
		return 0, 0, 0, false
	}
	return math.Float64frombits(latBits), math.Float64frombits(lonBits), math.Float64frombits(altBits), true
}

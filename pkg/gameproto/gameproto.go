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

// Package gameproto is the game-protocol decoder (C5). It parses
// inbound/outbound game messages, walks player-update subrecords, and
// classifies each by its update-type tag (§4.5).
package gameproto

import (
	"encoding/hex"

	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/wire"
)

// Envelope field numbers. No .proto source for this message survived
// the reverse-engineering effort this decoder is built from; these are
// this decoder's working assumption about the generated schema's
// layout, recovered from the wire the same way the rest of the
// protocol was.
const (
	fieldPlayerState    = 1 // outbound: optional, at most one. inbound: repeated.
	fieldEventPositions = 2 // inbound only, optional.
	fieldPlayerUpdate   = 3 // inbound only, repeated.
)

// Player-update record layout: {update_type_tag, payload_bytes}.
const (
	updateFieldType    = 1
	updateFieldPayload = 2
)

// Update-type tags (§4.5 table).
const (
	UpdateTimeSync           = 3
	UpdateRideOnGiven        = 4
	UpdateChatMessage        = 5
	UpdateMeetupCreate       = 6
	UpdateMeetupJoin         = 10
	UpdatePlayerEnteredWorld = 105
)

var opaqueUpdateTags = map[uint64]bool{102: true, 106: true, 109: true, 110: true, 116: true}

// DecodeOutbound parses an outbound envelope, emitting at most one
// OutgoingPlayerState event.
func DecodeOutbound(body []byte, env events.Envelope) ([]interface{}, error) {
	var out []interface{}
	if raw, ok := wire.Bytes(body, fieldPlayerState); ok {
		id, _ := wire.Varint(raw, 1)
		out = append(out, events.OutgoingPlayerState{Envelope: env, PlayerID: id, Raw: raw})
	}
	return out, nil
}

// DecodeInbound parses an inbound envelope: zero or more PlayerState
// sub-messages, an optional EventPositions block, and a sequence of
// player-update records re-parsed by tag.
//
// A failure to parse the outer envelope discards the whole payload
// (returns an error); a failure to parse a single sub-record is
// isolated and never aborts the walk (§4.5).
func DecodeInbound(body []byte, env events.Envelope, sink diag.Sink) ([]interface{}, error) {
	var out []interface{}
	err := wire.Each(body, func(f wire.Field) error {
		switch f.Number {
		case fieldPlayerState:
			if f.Type != wire.BytesType {
				return nil
			}
			id, _ := wire.Varint(f.Raw, 1)
			out = append(out, events.IncomingPlayerState{Envelope: env, PlayerID: id, Raw: f.Raw})
		case fieldEventPositions:
			if f.Type != wire.BytesType {
				return nil
			}
			out = append(out, events.EventPositions{Envelope: env, Raw: f.Raw})
		case fieldPlayerUpdate:
			if f.Type != wire.BytesType {
				return nil
			}
			if ev, ok := decodeUpdate(f.Raw, env, sink); ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeUpdate(raw []byte, env events.Envelope, sink diag.Sink) (interface{}, bool) {
	tag, ok := wire.Varint(raw, updateFieldType)
	if !ok {
		log.Warning("gameproto: update record missing type tag: %s", hex.EncodeToString(raw))
		return nil, false
	}
	payload, _ := wire.Bytes(raw, updateFieldPayload)

	switch tag {
	case UpdateTimeSync:
		t, ok := wire.Varint(payload, 1)
		if !ok {
			log.Warning("gameproto: failed to parse time sync payload: %s", hex.EncodeToString(payload))
			return nil, false
		}
		return events.PlayerTimeSync{Envelope: env, Time: t}, true

	case UpdateRideOnGiven:
		from, fromOK := wire.Varint(payload, 1)
		to, toOK := wire.Varint(payload, 2)
		if !fromOK || !toOK {
			log.Warning("gameproto: failed to parse ride-on payload: %s", hex.EncodeToString(payload))
			return nil, false
		}
		return events.RideOnGiven{Envelope: env, FromPlayerID: from, ToPlayerID: to}, true

	case UpdateChatMessage:
		pid, _ := wire.Varint(payload, 1)
		msg, ok := wire.String(payload, 2)
		if !ok {
			log.Warning("gameproto: failed to parse chat payload: %s", hex.EncodeToString(payload))
			return nil, false
		}
		return events.ChatMessage{Envelope: env, PlayerID: pid, Message: msg}, true

	case UpdateMeetupCreate, UpdateMeetupJoin:
		id, ok := wire.Varint(payload, 1)
		if !ok {
			log.Warning("gameproto: failed to parse meetup payload: %s", hex.EncodeToString(payload))
			return nil, false
		}
		return events.MeetupUpdate{Envelope: env, MeetupID: id, Action: tag}, true

	case UpdatePlayerEnteredWorld:
		pid, _ := wire.Varint(payload, 1)
		first, _ := wire.String(payload, 2)
		last, _ := wire.String(payload, 3)
		return events.PlayerEnteredWorld{Envelope: env, PlayerID: pid, FirstName: first, LastName: last}, true

	default:
		if opaqueUpdateTags[tag] {
			sink.Store("update", raw, env.Direction.String(), env.Sequence)
			return nil, false
		}
		log.Warning("gameproto: unknown update_type tag %d: %s", tag, hex.EncodeToString(raw))
		sink.Store("unknown-update", raw, env.Direction.String(), env.Sequence)
		return nil, false
	}
}

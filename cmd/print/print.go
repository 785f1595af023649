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

// Package print is a reference consumer of the event router: it
// subscribes to the event kinds a human running the CLI actually wants
// to see scroll by (some logged at info level, some only at debug
// level). Other event kinds are not subscribed and are not logged.
package print

import (
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
)

// Subscribe registers the CLI's default set of event subscribers on
// router.
func Subscribe(router *events.Router) {
	events.Subscribe(router, func(e events.ChatMessage) {
		log.Info("chat: player=%d %q", e.PlayerID, e.Message)
	})
	events.Subscribe(router, func(e events.RideOnGiven) {
		log.Info("ride-on: %d -> %d", e.FromPlayerID, e.ToPlayerID)
	})
	events.Subscribe(router, func(e events.PlayerEnteredWorld) {
		log.Info("player entered world: %d %s %s", e.PlayerID, e.FirstName, e.LastName)
	})
	events.Subscribe(router, func(e events.CommandSent) {
		log.Info("command sent: %s (raw=%d)", commandName(e.Code), e.RawCode)
	})
	events.Subscribe(router, func(e events.CommandAvailable) {
		log.Debug("command available: %s %q (raw=%d)", commandName(e.Code), e.Title, e.RawCode)
	})
	events.Subscribe(router, func(e events.RiderPosition) {
		log.Debug("rider position: lat=%f lon=%f alt=%f", e.Lat, e.Lon, e.Alt)
	})
	events.Subscribe(router, func(e events.ActivityStarted) {
		log.Info("activity started: %d", e.ActivityID)
	})
	events.Subscribe(router, func(e events.ActivityEnded) {
		log.Info("activity ended: %s", e.Name)
	})
	events.Subscribe(router, func(e events.PowerUpGranted) {
		log.Debug("power-up granted: kind=%d", e.Kind)
	})
	events.Subscribe(router, func(e events.HeartBeat) {
		log.Debug("companion heartbeat")
	})
}

func commandName(c events.CommandCode) string {
	switch c {
	case events.ElbowFlick:
		return "elbow-flick"
	case events.Wave:
		return "wave"
	case events.RideOn:
		return "ride-on"
	case events.Empty:
		return "empty"
	case events.TurnLeft:
		return "turn-left"
	case events.GoStraight:
		return "go-straight"
	case events.TurnRight:
		return "turn-right"
	case events.DiscardAero:
		return "discard-aero"
	case events.DiscardLightweight:
		return "discard-lightweight"
	case events.PowerGraph:
		return "power-graph"
	case events.HeadsUpDisplay:
		return "heads-up-display"
	default:
		return "unknown"
	}
}

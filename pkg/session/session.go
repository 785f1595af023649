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

// Package session orchestrates the whole pipeline (C8): it owns the
// frame source, the demultiplexer, the three reassembly lanes, the
// envelope stripper and the protocol decoders, and publishes every
// decoded event onto the router. One Session runs one capture at a
// time: Idle -> Running -> Stopping -> Idle.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/gopacket/pcap"

	"jinr.ru/greenlab/zwiftwatch/pkg/capture"
	"jinr.ru/greenlab/zwiftwatch/pkg/companionproto"
	"jinr.ru/greenlab/zwiftwatch/pkg/demux"
	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/gameproto"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/reassembly"
	"jinr.ru/greenlab/zwiftwatch/pkg/udpenvelope"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// ErrAlreadyRunning is returned by Start when the session is not Idle.
var ErrAlreadyRunning = errors.New("session: already running")

// Session runs one capture/replay pipeline end to end.
type Session struct {
	Router *events.Router
	Diag   diag.Sink

	mu    sync.Mutex
	state State
	stop  context.CancelFunc
	done  chan struct{}
}

// New constructs an idle session publishing decoded events onto
// router. diagSink may be diag.Noop{} to disable sample capture.
func New(router *events.Router, diagSink diag.Sink) *Session {
	if diagSink == nil {
		diagSink = diag.Noop{}
	}
	return &Session{Router: router, Diag: diagSink, state: Idle}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens opts and runs the pipeline until the context is
// cancelled, Stop is called, or the source is exhausted (end of a
// replay file). It blocks until the pipeline has fully stopped.
func (s *Session) Start(ctx context.Context, opts capture.Options) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = Running
	s.stop = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = Idle
		s.stop = nil
		close(s.done)
		s.mu.Unlock()
	}()

	src, err := capture.Open(opts)
	if err != nil {
		return err
	}
	defer src.Close()

	lanes := newLaneSet()

	for {
		select {
		case <-runCtx.Done():
			return nil
		default:
		}

		packet, err := src.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			if err == io.EOF || errors.Is(err, pcap.NextErrorNoMorePackets) {
				return nil
			}
			log.Warning("session: failed to read packet: %s", err)
			continue
		}

		decision, ok := demux.Classify(packet)
		if !ok {
			continue
		}

		s.handle(decision, lanes)
	}
}

// Stop requests a running session to wind down and waits for it to
// reach Idle. It is a no-op if the session is not running.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	cancel := s.stop
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

type laneSet struct {
	gameInbound       *reassembly.Lane
	companionInbound  *reassembly.Lane
	companionOutbound *reassembly.Lane
}

func newLaneSet() *laneSet {
	return &laneSet{
		gameInbound:       reassembly.NewLane(int(demux.LaneGameInbound), demux.LaneGameInbound.String()),
		companionInbound:  reassembly.NewLane(int(demux.LaneCompanionInbound), demux.LaneCompanionInbound.String()),
		companionOutbound: reassembly.NewLane(int(demux.LaneCompanionOutbound), demux.LaneCompanionOutbound.String()),
	}
}

func (s *Session) handle(decision demux.Decision, lanes *laneSet) {
	switch decision.Kind {
	case demux.KindTCP:
		lane := lanes.forTCP(decision.Lane)
		if lane == nil {
			return
		}
		for _, payload := range lane.Feed(decision.CaptureTime, decision.Payload) {
			env := events.Envelope{
				Direction:   eventDirection(decision.Direction),
				Sequence:    payload.Sequence,
				HasSequence: true,
			}
			s.dispatchTCP(decision.Lane, env, payload.Bytes)
		}

	case demux.KindUDP:
		env := events.Envelope{Direction: eventDirection(decision.Direction), HasSequence: false}
		s.dispatchUDP(decision.Direction, env, decision.Payload)
	}
}

func (l *laneSet) forTCP(lane demux.Lane) *reassembly.Lane {
	switch lane {
	case demux.LaneGameInbound:
		return l.gameInbound
	case demux.LaneCompanionInbound:
		return l.companionInbound
	case demux.LaneCompanionOutbound:
		return l.companionOutbound
	default:
		return nil
	}
}

func eventDirection(d demux.Direction) events.Direction {
	switch d {
	case demux.Inbound:
		return events.Inbound
	case demux.Outbound:
		return events.Outbound
	default:
		return events.DirUnknown
	}
}

func (s *Session) dispatchTCP(lane demux.Lane, env events.Envelope, body []byte) {
	switch lane {
	case demux.LaneGameInbound:
		evs, err := gameproto.DecodeInbound(body, env, s.Diag)
		if err != nil {
			log.Warning("session: failed to decode inbound game envelope: %s", err)
			return
		}
		for _, ev := range evs {
			s.Router.Publish(ev)
		}

	case demux.LaneCompanionInbound:
		evs, err := companionproto.DecodeInbound(body, env, s.Diag)
		if err != nil {
			log.Warning("session: failed to decode inbound companion envelope: %s", err)
			return
		}
		for _, ev := range evs {
			s.Router.Publish(ev)
		}

	case demux.LaneCompanionOutbound:
		evs, err := companionproto.DecodeOutbound(body, env, s.Diag)
		if err != nil {
			log.Warning("session: failed to decode outbound companion envelope: %s", err)
			return
		}
		for _, ev := range evs {
			s.Router.Publish(ev)
		}
	}
}

func (s *Session) dispatchUDP(direction demux.Direction, env events.Envelope, raw []byte) {
	switch direction {
	case demux.Inbound:
		body := udpenvelope.StripInbound(raw)
		evs, err := gameproto.DecodeInbound(body, env, s.Diag)
		if err != nil {
			log.Warning("session: failed to decode inbound UDP snapshot: %s", err)
			return
		}
		for _, ev := range evs {
			s.Router.Publish(ev)
		}

	case demux.Outbound:
		body, err := udpenvelope.StripOutbound(raw)
		if err != nil {
			log.Debug("session: dropping malformed outbound UDP frame: %s", err)
			return
		}
		evs, derr := gameproto.DecodeOutbound(body, env)
		if derr != nil {
			log.Warning("session: failed to decode outbound UDP command: %s", derr)
			return
		}
		for _, ev := range evs {
			s.Router.Publish(ev)
		}
	}
}

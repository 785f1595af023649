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

// Package diag implements the optional diagnostic sink of §6: a
// write-only collaborator the decoders call on unrecognised messages.
// The default is a no-op; FileSink writes bounded samples to disk, one
// file per sample.
package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"jinr.ru/greenlab/zwiftwatch/pkg/log"
)

// Sink is called by the decoders (C5, C6) to record an unrecognised
// message body for later inspection.
type Sink interface {
	Store(kind string, raw []byte, direction string, sequenceNr uint32)
}

// Noop is the default sink: it discards everything.
type Noop struct{}

func (Noop) Store(string, []byte, string, uint32) {}

// FileSink writes at most maxPerKey samples per (direction, kind) pair
// into dir, one file per sample.
type FileSink struct {
	mu        sync.Mutex
	dir       string
	maxPerKey int
	counts    map[string]int
}

// NewFileSink constructs a FileSink. maxPerKey <= 0 disables all
// writes (equivalent to Noop); nothing is counted either, so Counts
// stays empty.
func NewFileSink(dir string, maxPerKey int) *FileSink {
	return &FileSink{dir: dir, maxPerKey: maxPerKey, counts: make(map[string]int)}
}

func (s *FileSink) Store(kind string, raw []byte, direction string, sequenceNr uint32) {
	key := direction + "/" + kind

	s.mu.Lock()
	if s.counts[key] >= s.maxPerKey {
		s.mu.Unlock()
		return
	}
	s.counts[key]++
	n := s.counts[key]
	s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		log.Error("diag: failed to create sample dir %s: %s", s.dir, err)
		return
	}

	name := fmt.Sprintf("%s_%s_%04d_seq%d_%s.bin", direction, kind, n, sequenceNr, uuid.NewString())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		log.Error("diag: failed to write sample %s: %s", path, err)
	}
}

// Counts returns a snapshot of the per-(direction,kind) sample counts
// recorded so far.
func (s *FileSink) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

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

package events

import (
	"reflect"
	"sync"

	"jinr.ru/greenlab/zwiftwatch/pkg/log"
)

// Router is the publish-subscribe surface of §4.7: each event kind has
// its own implicit subscription list (keyed by the event's concrete
// type), delivery is synchronous on the decoder's goroutine, in capture
// order, and a panicking subscriber is isolated so it cannot affect the
// delivery of subsequent subscribers or stall the pipeline.
//
// The subscriber registry is read-mostly; mutation is protected by a
// brief critical section around the registry only, never around
// delivery (§5).
type Router struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]func(interface{})
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{subs: make(map[reflect.Type][]func(interface{}))}
}

// Subscribe registers fn to be called for every event of type T.
func Subscribe[T any](r *Router, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	wrapped := func(v interface{}) { fn(v.(T)) }

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[t] = append(r.subs[t], wrapped)
}

// Publish delivers event to every subscriber registered for its
// concrete type, synchronously, in registration order. A panicking
// subscriber is recovered and logged; it does not affect delivery to
// the remaining subscribers.
func (r *Router) Publish(event interface{}) {
	t := reflect.TypeOf(event)

	r.mu.RLock()
	handlers := r.subs[t]
	r.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, event)
	}
}

func deliver(h func(interface{}), event interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("events: subscriber panicked: %v", rec)
		}
	}()
	h(event)
}

// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nodecache

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/metrics"
)

// Observer is called after the cached snapshot actually changed. It receives
// no arguments; call GetCurrentData to read the new value. A returned error
// is logged and does not affect other observers.
type Observer func() error

type registration struct {
	id uuid.UUID
	fn Observer
}

// observerSet is an insertion-ordered observer collection. Registration and
// removal are safe concurrently with dispatch: dispatch iterates a copy taken
// under the read lock and never holds the lock across an observer call.
type observerSet struct {
	mu   sync.RWMutex
	list []registration
}

func (o *observerSet) add(fn Observer) uuid.UUID {
	id := uuid.New()

	o.mu.Lock()
	o.list = append(o.list, registration{id: id, fn: fn})
	o.mu.Unlock()

	return id
}

func (o *observerSet) remove(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, reg := range o.list {
		if reg.id == id {
			o.list = append(o.list[:i], o.list[i+1:]...)

			return
		}
	}
}

func (o *observerSet) clear() {
	o.mu.Lock()
	o.list = nil
	o.mu.Unlock()
}

func (o *observerSet) snapshot() []registration {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]registration, len(o.list))
	copy(out, o.list)

	return out
}

// notifyAll invokes every registered observer once, in registration order.
// Errors and panics are caught per observer so one failing observer never
// aborts the round.
func (o *observerSet) notifyAll(path string, log *zap.SugaredLogger) {
	for _, reg := range o.snapshot() {
		invokeObserver(reg, path, log)
	}
}

func invokeObserver(reg registration, path string, log *zap.SugaredLogger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncObserverFailure(path)
			log.Errorf("Observer %s for %s panicked: %v", reg.id, path, r)
		}
	}()

	if err := reg.fn(); err != nil {
		metrics.IncObserverFailure(path)
		log.Errorf("Observer %s for %s failed: %v", reg.id, path, err)
	}
}

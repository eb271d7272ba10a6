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
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Cache lifecycle states. The machine is monotonic: latent -> started ->
// closed, each transition at most once.
const (
	StateLatent  = "latent"
	StateStarted = "started"
	StateClosed  = "closed"

	eventStart = "start"
	eventClose = "close"
)

// newLifecycle builds the lifecycle state machine. All state reads and
// transitions go through the fsm so invalid transitions fail atomically.
func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		StateLatent,
		fsm.Events{
			{Name: eventStart, Src: []string{StateLatent}, Dst: StateStarted},
			{Name: eventClose, Src: []string{StateStarted}, Dst: StateClosed},
		},
		fsm.Callbacks{},
	)
}

// transition fires a lifecycle event, mapping looplab's transition errors to
// ErrIllegalLifecycle.
func transition(ctx context.Context, machine *fsm.FSM, event string) error {
	if err := machine.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s from %s", ErrIllegalLifecycle, event, machine.Current())
	}

	return nil
}

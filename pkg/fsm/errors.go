// SPDX-License-Identifier: BSD-3-Clause

package fsm

import "errors"

var (
	// ErrIllegalTransition indicates the requested trigger is not permitted
	// from the machine's current state.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrTransitionFailed indicates the underlying state machine rejected
	// the transition for a reason other than illegality (e.g. a guard
	// failure surfaced by stateless itself).
	ErrTransitionFailed = errors.New("state transition failed")
	// ErrFireTimeout indicates a Fire call did not settle within
	// FireTimeout. This should never happen in practice since no state in
	// this machine has entry/exit callbacks that block; it exists as a
	// defensive bound mirroring the teacher's pkg/state.FSM.Fire.
	ErrFireTimeout = errors.New("state transition timed out")
)

// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import "errors"

var (
	// ErrNameEmpty indicates the orchestrator name cannot be empty.
	ErrNameEmpty = errors.New("orchestrator name cannot be empty")
	// ErrMissingConfiguration indicates a required collaborator
	// (ProcessManager, ConfigSource, or HciReset) was not supplied.
	ErrMissingConfiguration = errors.New("missing orchestrator configuration")
	// ErrAddProcess indicates adding a component service to the
	// supervision tree failed.
	ErrAddProcess = errors.New("failed to add process to supervision tree")
	// ErrConfigSeed indicates StateCore could not be seeded from
	// ConfigSource at startup (spec §1's startup config responsibilities).
	ErrConfigSeed = errors.New("failed to seed state core from configuration")
	// ErrPanicked indicates the orchestrator panicked during execution.
	ErrPanicked = errors.New("orchestrator panicked")
)

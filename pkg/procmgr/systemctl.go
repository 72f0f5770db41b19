// SPDX-License-Identifier: BSD-3-Clause

package procmgr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Systemctl drives systemd for systems that manage the per-adapter daemon
// as a templated unit (btadapterd@N.service).
type Systemctl struct {
	unit string
	path string
}

// NewSystemctl returns a Systemctl manager for the given unit template
// name (defaulting to "btadapterd").
func NewSystemctl(unit string) *Systemctl {
	if unit == "" {
		unit = "btadapterd"
	}
	return &Systemctl{unit: unit, path: "systemctl"}
}

// Start runs `systemctl restart btadapterd@N.service`, per spec: the
// unit-manager client restarts rather than starts, since a templated unit
// instance may already be in a failed state from a prior crash.
func (s *Systemctl) Start(ctx context.Context, hci int) error {
	return s.run(ctx, "restart", hci)
}

// Stop runs `systemctl stop btadapterd@N.service`.
func (s *Systemctl) Stop(ctx context.Context, hci int) error {
	return s.run(ctx, "stop", hci)
}

func (s *Systemctl) run(ctx context.Context, verb string, hci int) error {
	unit := s.unit + "@" + strconv.Itoa(hci) + ".service"
	cmd := exec.CommandContext(ctx, s.path, verb, unit)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("procmgr: systemctl %s %s: %w: %s", verb, unit, err, out)
	}
	return nil
}

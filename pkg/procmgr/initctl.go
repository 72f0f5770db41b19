// SPDX-License-Identifier: BSD-3-Clause

package procmgr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Initctl drives Upstart's initctl for systems that manage the per-adapter
// daemon as a job template.
type Initctl struct {
	job  string
	path string
}

// NewInitctl returns an Initctl manager for the given job name (defaulting
// to "btadapterd").
func NewInitctl(job string) *Initctl {
	if job == "" {
		job = "btadapterd"
	}
	return &Initctl{job: job, path: "initctl"}
}

// Start runs `initctl start <job> HCI=<n>`.
func (i *Initctl) Start(ctx context.Context, hci int) error {
	return i.run(ctx, "start", hci)
}

// Stop runs `initctl stop <job> HCI=<n>`.
func (i *Initctl) Stop(ctx context.Context, hci int) error {
	return i.run(ctx, "stop", hci)
}

func (i *Initctl) run(ctx context.Context, verb string, hci int) error {
	cmd := exec.CommandContext(ctx, i.path, verb, i.job, "HCI="+strconv.Itoa(hci))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("procmgr: initctl %s hci%d: %w: %s", verb, hci, err, out)
	}
	return nil
}

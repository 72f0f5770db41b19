// SPDX-License-Identifier: BSD-3-Clause

// Command btadapterd-mgr is the Bluetooth adapter lifecycle manager's
// process entrypoint: it parses flags, loads the YAML configuration, and
// runs the orchestrator until it receives a termination signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/btmgrd/btadapterd/pkg/config"
	"github.com/btmgrd/btadapterd/pkg/core"
	"github.com/btmgrd/btadapterd/pkg/hcireset"
	"github.com/btmgrd/btadapterd/pkg/log"
	"github.com/btmgrd/btadapterd/pkg/procmgr"
	"github.com/btmgrd/btadapterd/service/orchestrator"
)

func main() {
	// Most hosts running this manager are resource-constrained embedded
	// Linux systems; cap memory use accordingly.
	debug.SetMemoryLimit(128 * 1024 * 1024)

	configPath := flag.String("config", "/etc/btadapterd.yaml", "path to the YAML configuration file")
	pidDir := flag.String("pid-dir", orchestrator.DefaultPidDir, "directory watched for bluetoothN.pid files")
	backend := flag.String("process-backend", "systemctl", "per-adapter daemon process backend: native, initctl, or systemctl")
	timeout := flag.Duration("timeout", orchestrator.DefaultTimeout, "supervision timeout per component service")
	flag.Parse()

	l := log.NewDefaultLogger()

	pm, err := processManagerFor(*backend)
	if err != nil {
		l.Error("invalid process backend", "backend", *backend, "error", err)
		os.Exit(1)
	}

	orc := orchestrator.New(
		orchestrator.WithLogger(l),
		orchestrator.WithPidDir(*pidDir),
		orchestrator.WithTimeout(*timeout),
		orchestrator.WithProcessManager(pm),
		orchestrator.WithConfigSource(config.New(*configPath)),
		orchestrator.WithHciReset(hcireset.New()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := orc.Run(ctx, nil); err != nil && ctx.Err() == nil {
		l.Error("orchestrator exited", "error", err)
		os.Exit(1)
	}
}

func processManagerFor(backend string) (core.ProcessManager, error) {
	switch backend {
	case "native":
		return procmgr.NewNative(""), nil
	case "initctl":
		return procmgr.NewInitctl(""), nil
	case "systemctl":
		return procmgr.NewSystemctl(""), nil
	default:
		return nil, fmt.Errorf("unknown process backend %q", backend)
	}
}

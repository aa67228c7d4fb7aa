//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detachProcess puts the spawned server in its own process group so it
// survives the CLI exiting.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create new process group
		Pgid:    0,    // Use the new process's PID as PGID
	}
}

//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detachProcess creates the spawned server in its own process group so it
// survives the CLI exiting.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

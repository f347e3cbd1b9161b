// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package downloadpool

import "golang.org/x/sys/unix"

// processAlive sends the null signal to pid, which the kernel delivers
// without side effects purely to report whether the process still exists.
func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// killStray sends SIGKILL to pid, used during the startup stray-process
// sweep for a PID returned by listProcessesByName.
func killStray(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package downloadpool

import "os"

// processAlive reports whether pid can still be opened; Windows has no
// null-signal equivalent, so FindProcess plus a Signal(os.Kill) dry run via
// Process.Signal(syscall.Signal(0)) isn't available — opening the handle is
// the closest portable proxy.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func killStray(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

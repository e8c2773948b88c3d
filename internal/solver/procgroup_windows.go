//go:build windows

package solver

import "os/exec"

// killTree leaves the default behavior of killing only the direct child.
func killTree(*exec.Cmd) {}

//go:build !unix

package workspace

import "os/exec"

// setProcessGroup is a no-op where process groups are unavailable; the
// default Cancel kills the shell only.
func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(*exec.Cmd) error { return nil }

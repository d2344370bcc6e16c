//go:build windows

package recognizer

import "os/exec"

func setEngineProcAttrs(cmd *exec.Cmd) {}

func killEngine(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

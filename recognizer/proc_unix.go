//go:build !windows

package recognizer

import (
	"os/exec"
	"syscall"
)

// The engine gets its own process group so killEngine can take down any
// helpers it forks along with it.
func setEngineProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killEngine(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

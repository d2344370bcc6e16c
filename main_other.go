//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The hotkey backend off linux registers through the window system and
// needs the process main thread.
func main() {
	mainthread.Init(realMain)
}

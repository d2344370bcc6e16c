//go:build linux

package doctor

import (
	"fmt"

	"voxkey/typist"
)

func checkInjection() bool {
	fmt.Println()
	fmt.Printf("[5/%d] Keystroke injection (uinput)\n", checkCount)

	msg, err := typist.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		fmt.Println("  (typing falls back to the clipboard strategy without it)")
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

//go:build !linux

package doctor

import "fmt"

// Keystroke injection goes through the clipboard paste chord off linux;
// the clipboard roundtrip check covers the half we can verify headless.
func checkInjection() bool {
	fmt.Println()
	fmt.Printf("[5/%d] Keystroke injection\n", checkCount)
	fmt.Println("  SKIP: verified via the clipboard check on this platform")
	return true
}

// Package doctor runs interactive environment checks: configuration,
// engine command, model path, audio capture, keystroke injection, and
// clipboard access.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"voxkey/audio"
	"voxkey/config"
)

const checkCount = 6

// Run executes the checks in dependency order and returns an exit code
// (0 when everything passed).
func Run(cfgPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voxkey doctor - environment diagnostics")
	fmt.Println("=======================================")

	cfg, ok := checkConfig(cfgPath)
	allPass := ok

	if !checkEngineCommand(cfg) {
		allPass = false
	}
	if !checkModelPath(cfg) {
		allPass = false
	}
	if !checkCapture(cfg) {
		allPass = false
	}
	if !checkInjection() {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) (config.Config, bool) {
	fmt.Println()
	fmt.Printf("[1/%d] Configuration\n", checkCount)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return cfg, false
	}
	if path == "" {
		fmt.Println("  PASS: defaults valid (no config file given)")
	} else {
		fmt.Printf("  PASS: %s valid\n", path)
	}
	return cfg, true
}

func checkEngineCommand(cfg config.Config) bool {
	fmt.Println()
	fmt.Printf("[2/%d] Engine command\n", checkCount)

	expanded := strings.NewReplacer(
		"{model}", cfg.Engine.ModelPath,
		"{rate}", strconv.Itoa(audio.TargetRate),
	).Replace(cfg.Engine.Command)
	argv, err := shellwords.NewParser().Parse(expanded)
	if err != nil || len(argv) == 0 {
		fmt.Printf("  FAIL: cannot parse engine command %q: %v\n", cfg.Engine.Command, err)
		return false
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		fmt.Printf("  FAIL: engine binary %q not found in PATH\n", argv[0])
		return false
	}
	fmt.Printf("  PASS: %s\n", path)
	return true
}

func checkModelPath(cfg config.Config) bool {
	fmt.Println()
	fmt.Printf("[3/%d] Model path\n", checkCount)

	entries, err := os.ReadDir(cfg.Engine.ModelPath)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Fix with: voxkey -fetch-model vosk-small-en")
		return false
	}
	if len(entries) == 0 {
		fmt.Printf("  FAIL: model directory %s is empty\n", cfg.Engine.ModelPath)
		return false
	}
	fmt.Printf("  PASS: %s (%d entries)\n", cfg.Engine.ModelPath, len(entries))
	return true
}

func checkCapture(cfg config.Config) bool {
	fmt.Println()
	fmt.Printf("[4/%d] Audio capture\n", checkCount)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	for i := range devices {
		if cfg.Audio.Device != "" && devices[i].Name == cfg.Audio.Device {
			device = &devices[i]
		}
	}
	name := "system default"
	if device != nil {
		name = device.Name
	} else if cfg.Audio.Device != "" {
		fmt.Printf("  configured device %q not found, using default\n", cfg.Audio.Device)
	}
	fmt.Printf("  Using device: %s\n", name)
	if device != nil && audio.IsBluetooth(device.Name) {
		fmt.Println("  Note: bluetooth input, expect lower audio quality")
	}

	src, err := audio.Open(ctx, device, cfg.Audio.SampleRate, cfg.Audio.FrameSize, zerolog.Nop())
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture: %v\n", err)
		return false
	}
	defer src.Close()

	fmt.Print("  Recording 2 seconds, say something")

	var mu sync.Mutex
	var peak float64
	var frames int
	err = src.Start(func(f audio.Frame) {
		mu.Lock()
		frames++
		if rms := audio.RMS(f.Samples); rms > peak {
			peak = rms
		}
		mu.Unlock()
	}, nil)
	if err != nil {
		fmt.Println()
		fmt.Printf("  FAIL: capture start: %v\n", err)
		return false
	}

	for i := 0; i < 4; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println()
	src.Stop()

	mu.Lock()
	defer mu.Unlock()
	if frames == 0 {
		fmt.Println("  FAIL: no audio frames delivered")
		return false
	}
	if peak < 100 {
		fmt.Printf("  FAIL: only silence captured (peak rms %.0f); is the mic muted?\n", peak)
		return false
	}
	fmt.Printf("  PASS: %d frames, peak rms %.0f\n", frames, peak)
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Printf("[6/%d] Clipboard roundtrip\n", checkCount)

	testStr := fmt.Sprintf("voxkey-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		prev, _ := clipboard.ReadAll()
		if err := clipboard.WriteAll(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.ReadAll()
		_ = clipboard.WriteAll(prev)
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung, compositor not accessible?)")
		return false
	}
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voxkey/audio"
	"voxkey/beep"
	"voxkey/config"
	"voxkey/control"
	"voxkey/hotkey"
	"voxkey/pipeline"
	"voxkey/recognizer"
)

// runTestMode drives the full session machine headless: the capture
// context replays a WAV file, the recognizer replays a script, typed
// output and state transitions go to stdout, and stdin carries the
// commands KEYDOWN, KEYUP, CANCEL, ACK, WAIT, WAIT_AUDIO_DONE,
// SLEEP <ms>, QUIT.
func runTestMode(cfg config.Config, wavPath, scriptPath string, logger zerolog.Logger) int {
	beep.Disable()

	fctx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "test audio:", err)
		return 1
	}
	src, err := audio.Open(fctx, nil, audio.TargetRate, cfg.Audio.FrameSize, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "test audio:", err)
		return 1
	}
	defer src.Close()

	rec := recognizer.NewFake()
	if scriptPath != "" {
		if err := loadScript(rec, scriptPath); err != nil {
			fmt.Fprintln(os.Stderr, "script:", err)
			return 1
		}
	}
	sink := &printSink{}

	var ctl *control.Controller
	pipe := pipeline.New(logger, func(stage string, err error) {
		ctl.Hub().Publish(control.Note{
			Kind:    control.NotePipelineStageFault,
			Message: fmt.Sprintf("%s: %v", stage, err),
		})
	})
	ctl = control.New(src, rec, pipe, sink, control.Config{
		FrameQueueBound:   cfg.Queues.Frames,
		ObserverBuffer:    cfg.Queues.Observer,
		ProcessingTimeout: time.Duration(cfg.Engine.TimeoutMS) * time.Millisecond,
		AppHint:           cfg.Pipeline.AppHint,
	}, logger)
	defer ctl.Close()

	if err := registerStages(pipe, cfg, ctl.Controls(), logger); err != nil {
		fmt.Fprintln(os.Stderr, "pipeline:", err)
		return 1
	}

	mainHk := hotkey.NewFake()
	cancelHk := hotkey.NewFake()
	mode, err := hotkey.ParseMode(cfg.Hotkey.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hotkey:", err)
		return 1
	}
	interp := hotkey.NewInterpreter(mainHk, cancelHk, mode, time.Duration(cfg.Hotkey.HoldMS)*time.Millisecond, logger)
	defer interp.Close()
	go func() {
		for sig := range interp.Signals() {
			ctl.Signal(sig)
		}
	}()

	if cfg.Silence.Enabled {
		ws := &surfaces{cfg: cfg, log: logger, mode: func() hotkey.Mode { return mode }}
		go runWatchdog(ctl, ctl.Hub().Subscribe("watchdog", 64), ws)
	}

	// settled gets a token whenever a session finishes, successfully or
	// not; WAIT blocks on it.
	settled := make(chan struct{}, 1)
	events := ctl.Hub().Subscribe("testenv", 64)
	go func() {
		for ev := range events {
			switch ev := ev.(type) {
			case control.Transition:
				fmt.Printf("STATE %s -> %s\n", ev.From, ev.To)
				if ev.To == control.StateIdle || ev.To == control.StateError {
					select {
					case settled <- struct{}{}:
					default:
					}
				}
			case control.Note:
				fmt.Printf("NOTE %s %s\n", ev.Kind, ev.Message)
			case control.Utterance:
				fmt.Printf("UTTERANCE %q handled=%v\n", ev.Output, ev.Handled)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "KEYDOWN":
			drain(settled)
			mainHk.SimKeydown()
		case "KEYUP":
			mainHk.SimKeyup()
		case "CANCEL":
			cancelHk.SimKeydown()
		case "ACK":
			ctl.Acknowledge()
		case "WAIT":
			<-settled
		case "WAIT_AUDIO_DONE":
			if fc := fctx.LastCapture(); fc != nil {
				<-fc.AudioDone()
			}
		case "SLEEP":
			if len(fields) > 1 {
				if ms, err := strconv.Atoi(fields[1]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		case "QUIT":
			return 0
		default:
			fmt.Printf("UNKNOWN %s\n", fields[0])
		}
	}
	return 0
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// loadScript queues one utterance per line: the final transcript,
// optionally followed by |-separated partials. Blank lines and #
// comments are skipped.
func loadScript(rec *recognizer.Fake, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		final := strings.TrimSpace(parts[0])
		var partials []string
		for _, p := range parts[1:] {
			if p = strings.TrimSpace(p); p != "" {
				partials = append(partials, p)
			}
		}
		rec.QueueUtterance(final, 1.0, partials...)
	}
	return nil
}

// printSink writes keystrokes to stdout so a test harness can assert
// on what would have been typed.
type printSink struct{}

func (printSink) Type(text string) error {
	fmt.Printf("TYPED %s\n", text)
	return nil
}

func (printSink) Cancel() {}

func (printSink) PressEnter() error {
	fmt.Println("ENTER")
	return nil
}

func (printSink) Backspace(n int) error {
	fmt.Printf("BACKSPACE %d\n", n)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voxkey/archive"
	"voxkey/audio"
	"voxkey/beep"
	"voxkey/config"
	"voxkey/control"
	"voxkey/doctor"
	"voxkey/history"
	"voxkey/hotkey"
	"voxkey/log"
	"voxkey/model"
	"voxkey/notify"
	"voxkey/pipeline"
	"voxkey/recognizer"
	"voxkey/tray"
	"voxkey/typist"
)

var version = "dev"

func realMain() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath    = flag.String("config", "", "path to YAML config file")
		showVer    = flag.Bool("version", false, "print version and exit")
		listDevs   = flag.Bool("devices", false, "list capture devices and exit")
		setupFlag  = flag.Bool("setup", false, "pick the capture device interactively")
		doctorFlag = flag.Bool("doctor", false, "run environment checks and exit")
		fetchName  = flag.String("fetch-model", "", "download and unpack the named model, then exit")
		historyN   = flag.Int("history", 0, "print the n most recent transcripts and exit")
		testWav    = flag.String("test", "", "headless test mode: replay the given WAV file")
		scriptPath = flag.String("script", "", "recognizer script file for -test mode")
		tuiOn      = flag.Bool("tui", false, "force the terminal UI on")
		tuiOff     = flag.Bool("no-tui", false, "force the terminal UI off")
	)
	flag.Parse()

	if *showVer {
		fmt.Println("voxkey", version)
		return 0
	}
	if *doctorFlag {
		return doctor.Run(*cfgPath)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	if *listDevs {
		return listDevices()
	}

	logPath, err := log.Resolve(cfg.Log.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log path:", err)
		return 1
	}
	logger, logCloser, err := log.Open(logPath, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening log:", err)
		return 1
	}
	defer logCloser.Close()
	logger.Info().Str("version", version).Msg("voxkey starting")

	if *fetchName != "" {
		dest, err := model.Fetch(filepath.Dir(cfg.Engine.ModelPath), *fetchName, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fetch-model:", err)
			return 1
		}
		fmt.Println("Model installed at", dest)
		fmt.Println("Set engine.model_path to use it.")
		return 0
	}
	if *historyN > 0 {
		return printHistory(cfg, *historyN, logger)
	}
	if *testWav != "" {
		return runTestMode(cfg, *testWav, *scriptPath, logger)
	}

	useTUI := cfg.TUI
	if *tuiOn {
		useTUI = true
	}
	if *tuiOff {
		useTUI = false
	}
	return runApp(cfg, logger, useTUI, *setupFlag)
}

func runApp(cfg config.Config, logger zerolog.Logger, useTUI, setup bool) int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio:", err)
		logger.Error().Err(err).Msg("audio context init failed")
		return 1
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	if setup {
		device, err = audio.SelectDevice(actx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "device selection:", err)
			return 1
		}
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		device = matchDevice(actx, cfg.Audio.Device, logger)
	}

	capture := newCaptureSupervisor(actx, device, cfg.Audio, logger)
	defer capture.Close()

	rec, err := recognizer.NewExec(cfg.Engine.Command, cfg.Engine.ModelPath, audio.TargetRate, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		return 1
	}
	defer rec.Close()

	sink, err := typist.New(cfg.Typing.Backend, time.Duration(cfg.Typing.DelayMS)*time.Millisecond, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "typing:", err)
		return 1
	}

	var arch *archive.Archiver
	var tap func(audio.Frame)
	if cfg.Archive.Enabled {
		arch, err = archive.New(cfg.Archive.Dir, cfg.Archive.Format, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			return 1
		}
		tap = arch.Tap
	}

	// The fault hook closes over ctl; stages only run once a session is
	// live, well after the assignment below.
	var ctl *control.Controller
	pipe := pipeline.New(logger, func(stage string, err error) {
		ctl.Hub().Publish(control.Note{
			Kind:    control.NotePipelineStageFault,
			Message: fmt.Sprintf("%s: %v", stage, err),
		})
	})
	ctl = control.New(capture, rec, pipe, sink, control.Config{
		FrameQueueBound:   cfg.Queues.Frames,
		ObserverBuffer:    cfg.Queues.Observer,
		ProcessingTimeout: time.Duration(cfg.Engine.TimeoutMS) * time.Millisecond,
		AppHint:           cfg.Pipeline.AppHint,
		FrameTap:          tap,
	}, logger)
	defer ctl.Close()

	if err := registerStages(pipe, cfg, ctl.Controls(), logger); err != nil {
		fmt.Fprintln(os.Stderr, "pipeline:", err)
		return 1
	}

	mainChord, err := hotkey.ParseChord(cfg.Hotkey.Binding)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hotkey:", err)
		return 1
	}
	hk, err := hotkey.New(mainChord)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hotkey:", err)
		return 1
	}
	if err := hk.Register(); err != nil {
		fmt.Fprintln(os.Stderr, "hotkey:", err)
		if hint, derr := hotkey.Diagnose(); derr == nil {
			fmt.Fprintln(os.Stderr, hint)
		}
		return 1
	}
	defer hk.Unregister()

	var cancelHk hotkey.Hotkey
	if cfg.Hotkey.Cancel != "" {
		cancelHk = registerCancelChord(cfg.Hotkey.Cancel, logger)
		if cancelHk != nil {
			defer cancelHk.Unregister()
		}
	}

	mode, err := hotkey.ParseMode(cfg.Hotkey.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hotkey:", err)
		return 1
	}
	interp := hotkey.NewInterpreter(hk, cancelHk, mode, time.Duration(cfg.Hotkey.HoldMS)*time.Millisecond, logger)
	defer interp.Close()

	var curMode atomic.Value
	curMode.Store(mode)
	var paused atomic.Bool
	go func() {
		for sig := range interp.Signals() {
			if paused.Load() && sig.Kind == hotkey.StartOrToggle {
				logger.Debug().Msg("dictation paused, ignoring start")
				continue
			}
			curMode.Store(sig.Mode)
			ctl.Signal(sig)
		}
	}()

	s := &surfaces{
		cfg:      cfg,
		log:      logger,
		notifier: notify.New(cfg.Notifications, logger),
		arch:     arch,
		capture:  capture,
		last:     &lastTranscript{},
		paused:   &paused,
		mode:     func() hotkey.Mode { return curMode.Load().(hotkey.Mode) },
	}

	if cfg.History.Enabled {
		store, err := history.Open(context.Background(), cfg.History.Path, cfg.History.Keep, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("history disabled, store open failed")
		} else {
			s.store = store
			defer store.Close()
		}
	}

	var trayQuit <-chan struct{}
	if cfg.Tray {
		trayQuit = tray.Init()
		s.trayOn = true
		wireTrayActions(ctl, s)
		defer tray.Quit()
	}

	var tuiDone chan struct{}
	if useTUI {
		p := newTUIProgram()
		s.tui = p
		tuiDone = make(chan struct{})
		go func() {
			if _, err := p.Run(); err != nil {
				logger.Error().Err(err).Msg("terminal UI failed")
			}
			close(tuiDone)
		}()
	}

	if cfg.Sounds {
		beep.Init()
	} else {
		beep.Disable()
	}

	wireObservers(ctl, s)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("signal received, shutting down")
	case <-trayQuit:
		logger.Info().Msg("tray quit, shutting down")
	case <-tuiDone:
		logger.Info().Msg("terminal UI closed, shutting down")
	}
	if s.tui != nil {
		s.tui.Quit()
	}
	return 0
}

// registerCancelChord sets up the optional cancel hotkey. Losing it is
// not fatal: sessions still stop through the main binding.
func registerCancelChord(binding string, logger zerolog.Logger) hotkey.Hotkey {
	chord, err := hotkey.ParseChord(binding)
	if err != nil {
		logger.Warn().Err(err).Str("binding", binding).Msg("cancel hotkey unusable")
		return nil
	}
	hk, err := hotkey.New(chord)
	if err != nil {
		logger.Warn().Err(err).Str("binding", binding).Msg("cancel hotkey unusable")
		return nil
	}
	if err := hk.Register(); err != nil {
		logger.Warn().Err(err).Str("binding", binding).Msg("cancel hotkey registration failed")
		return nil
	}
	return hk
}

func registerStages(pipe *pipeline.Pipeline, cfg config.Config, controls pipeline.Controls, logger zerolog.Logger) error {
	if cfg.Pipeline.Commands.Enabled {
		if err := pipe.Register("commands", 10, pipeline.NewCommands(controls)); err != nil {
			return err
		}
	}
	if cfg.Pipeline.Punctuation.Enabled {
		if err := pipe.Register("punctuation", 20, pipeline.NewPunctuation()); err != nil {
			return err
		}
	}
	if cfg.Pipeline.Emoji.Enabled {
		if err := pipe.Register("emoji", 30, pipeline.NewEmoji()); err != nil {
			return err
		}
	}
	if cfg.Pipeline.Rules.Enabled {
		rules, err := pipeline.NewRules(cfg.Pipeline.Rules.Path, 0)
		if err != nil {
			return err
		}
		if err := pipe.Register("rules", 40, rules); err != nil {
			return err
		}
	}
	logger.Info().Strs("stages", pipe.StageNames()).Msg("pipeline ready")
	return nil
}

// matchDevice resolves the configured device name by case-insensitive
// substring. No match falls back to the system default.
func matchDevice(ctx audio.Context, want string, logger zerolog.Logger) *audio.DeviceInfo {
	if want == "" {
		return nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		logger.Warn().Err(err).Msg("device enumeration failed, using default")
		return nil
	}
	needle := strings.ToLower(want)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), needle) {
			if audio.IsBluetooth(devices[i].Name) {
				logger.Warn().Str("device", devices[i].Name).Msg("bluetooth input, expect lower audio quality")
			}
			return &devices[i]
		}
	}
	logger.Warn().Str("device", want).Msg("configured device not found, using default")
	return nil
}

func listDevices() int {
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio:", err)
		return 1
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio:", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return 1
	}
	fmt.Println("Capture devices:")
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = "  (bluetooth)"
		}
		fmt.Printf("  %s%s\n", d.Name, tag)
	}
	return 0
}

func printHistory(cfg config.Config, n int, logger zerolog.Logger) int {
	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "history is disabled in the configuration")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := history.Open(ctx, cfg.History.Path, cfg.History.Keep, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		return 1
	}
	defer store.Close()

	records, err := store.Recent(ctx, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No transcripts recorded yet.")
		return 0
	}
	for _, r := range records {
		text := r.Output
		if r.Handled {
			text = fmt.Sprintf("[command] %s", r.Raw)
		}
		fmt.Printf("%s  %-12s  %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Mode, text)
	}
	return 0
}

const (
	captureBackoff  = 500 * time.Millisecond
	captureMaxOpens = 3
	captureCooldown = 30 * time.Second
)

// captureSupervisor hands the controller a stable AudioSource while
// letting the underlying device handle be dropped after a fault and
// reopened before the next session. Consecutive reopen failures are
// capped; a successful start or a long quiet stretch resets the count.
type captureSupervisor struct {
	ctx       audio.Context
	device    *audio.DeviceInfo
	devRate   int
	frameSize int
	log       zerolog.Logger

	mu       sync.Mutex
	cur      *audio.Source
	fails    int
	lastFail time.Time
}

func newCaptureSupervisor(ctx audio.Context, device *audio.DeviceInfo, cfg config.AudioConfig, logger zerolog.Logger) *captureSupervisor {
	return &captureSupervisor{
		ctx:       ctx,
		device:    device,
		devRate:   cfg.SampleRate,
		frameSize: cfg.FrameSize,
		log:       logger,
	}
}

func (cs *captureSupervisor) Start(onFrame func(audio.Frame), onFault func(error)) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.cur == nil {
		if err := cs.reopenLocked(); err != nil {
			return err
		}
	}
	if err := cs.cur.Start(onFrame, onFault); err != nil {
		// Stale handle, one immediate reopen attempt.
		cs.dropLocked()
		if rerr := cs.reopenLocked(); rerr != nil {
			return err
		}
		if rerr := cs.cur.Start(onFrame, onFault); rerr != nil {
			cs.dropLocked()
			return rerr
		}
	}
	cs.fails = 0
	return nil
}

func (cs *captureSupervisor) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.cur != nil {
		cs.cur.Stop()
	}
}

// Invalidate drops the open device handle so the next session reopens
// it. Called after mid-capture stream faults.
func (cs *captureSupervisor) Invalidate() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.dropLocked()
}

func (cs *captureSupervisor) Close() {
	cs.Invalidate()
}

func (cs *captureSupervisor) reopenLocked() error {
	if cs.fails > 0 && time.Since(cs.lastFail) > captureCooldown {
		cs.fails = 0
	}
	if cs.fails >= captureMaxOpens {
		return fmt.Errorf("audio capture unavailable after %d attempts", cs.fails)
	}
	if wait := captureBackoff - time.Since(cs.lastFail); cs.fails > 0 && wait > 0 {
		time.Sleep(wait)
	}
	src, err := audio.Open(cs.ctx, cs.device, cs.devRate, cs.frameSize, cs.log)
	if err != nil {
		cs.fails++
		cs.lastFail = time.Now()
		return fmt.Errorf("reopening capture: %w", err)
	}
	cs.log.Debug().Str("device", src.DeviceName()).Msg("capture opened")
	cs.cur = src
	return nil
}

func (cs *captureSupervisor) dropLocked() {
	if cs.cur != nil {
		cs.cur.Close()
		cs.cur = nil
	}
}

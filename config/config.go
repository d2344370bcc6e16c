package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type AudioConfig struct {
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
}

type EngineConfig struct {
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TypingConfig struct {
	Backend string `yaml:"backend"`
	DelayMS int    `yaml:"delay_ms"`
}

type HotkeyConfig struct {
	Binding string `yaml:"binding"`
	Cancel  string `yaml:"cancel"`
	Mode    string `yaml:"mode"`
	HoldMS  int    `yaml:"hold_ms"`
}

type StageConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RulesStageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PipelineConfig struct {
	Commands    StageConfig      `yaml:"commands"`
	Punctuation StageConfig      `yaml:"punctuation"`
	Emoji       StageConfig      `yaml:"emoji"`
	Rules       RulesStageConfig `yaml:"rules"`
	AppHint     string           `yaml:"app_hint"`
}

type QueueConfig struct {
	Frames   int `yaml:"frames"`
	Observer int `yaml:"observer"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
}

type SilenceConfig struct {
	Enabled   bool `yaml:"enabled"`
	WarnMS    int  `yaml:"warn_ms"`
	StopMS    int  `yaml:"stop_ms"`
	Threshold int  `yaml:"threshold"`
	WindowMS  int  `yaml:"window_ms"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type Config struct {
	Audio         AudioConfig    `yaml:"audio"`
	Engine        EngineConfig   `yaml:"engine"`
	Typing        TypingConfig   `yaml:"typing"`
	Hotkey        HotkeyConfig   `yaml:"hotkey"`
	Pipeline      PipelineConfig `yaml:"pipeline"`
	Queues        QueueConfig    `yaml:"queues"`
	Archive       ArchiveConfig  `yaml:"archive"`
	History       HistoryConfig  `yaml:"history"`
	Silence       SilenceConfig  `yaml:"silence"`
	Sounds        bool           `yaml:"sounds"`
	Notifications bool           `yaml:"notifications"`
	Tray          bool           `yaml:"tray"`
	TUI           bool           `yaml:"tui"`
	Log           LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		Audio: AudioConfig{
			Device:     "",
			SampleRate: 16000,
			FrameSize:  8000,
		},
		Engine: EngineConfig{
			Command:   "voxkey-engine -m {model} -r {rate}",
			ModelPath: "models/vosk-model-small-en-us-0.15",
			TimeoutMS: 3000,
		},
		Typing: TypingConfig{
			Backend: "auto",
			DelayMS: 50,
		},
		Hotkey: HotkeyConfig{
			Binding: "ctrl+shift+space",
			Cancel:  "esc",
			Mode:    "push_to_talk",
			HoldMS:  300,
		},
		Pipeline: PipelineConfig{
			Commands:    StageConfig{Enabled: true},
			Punctuation: StageConfig{Enabled: true},
			Emoji:       StageConfig{Enabled: false},
			Rules:       RulesStageConfig{Enabled: false, Path: "rules.txt"},
		},
		Queues: QueueConfig{
			Frames:   32,
			Observer: 16,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Dir:     "recordings",
			Format:  "flac",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "history.db",
			Keep:    1000,
		},
		Silence: SilenceConfig{
			Enabled:   true,
			WarnMS:    5000,
			StopMS:    15000,
			Threshold: 500,
			WindowMS:  1000,
		},
		Sounds:        true,
		Notifications: true,
		Tray:          true,
		TUI:           true,
		Log: LogConfig{
			Path:  "",
			Level: "info",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Audio.Device, "VOXKEY_AUDIO_DEVICE")
	overrideInt(&cfg.Audio.SampleRate, "VOXKEY_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.FrameSize, "VOXKEY_AUDIO_FRAME_SIZE")
	overrideString(&cfg.Engine.Command, "VOXKEY_ENGINE_COMMAND")
	overrideString(&cfg.Engine.ModelPath, "VOXKEY_ENGINE_MODEL_PATH")
	overrideInt(&cfg.Engine.TimeoutMS, "VOXKEY_ENGINE_TIMEOUT_MS")
	overrideString(&cfg.Typing.Backend, "VOXKEY_TYPING_BACKEND")
	overrideInt(&cfg.Typing.DelayMS, "VOXKEY_TYPING_DELAY_MS")
	overrideString(&cfg.Hotkey.Binding, "VOXKEY_HOTKEY_BINDING")
	overrideString(&cfg.Hotkey.Cancel, "VOXKEY_HOTKEY_CANCEL")
	overrideString(&cfg.Hotkey.Mode, "VOXKEY_HOTKEY_MODE")
	overrideInt(&cfg.Hotkey.HoldMS, "VOXKEY_HOTKEY_HOLD_MS")
	overrideBool(&cfg.Pipeline.Commands.Enabled, "VOXKEY_PIPELINE_COMMANDS")
	overrideBool(&cfg.Pipeline.Punctuation.Enabled, "VOXKEY_PIPELINE_PUNCTUATION")
	overrideBool(&cfg.Pipeline.Emoji.Enabled, "VOXKEY_PIPELINE_EMOJI")
	overrideBool(&cfg.Pipeline.Rules.Enabled, "VOXKEY_PIPELINE_RULES")
	overrideString(&cfg.Pipeline.Rules.Path, "VOXKEY_PIPELINE_RULES_PATH")
	overrideString(&cfg.Pipeline.AppHint, "VOXKEY_PIPELINE_APP_HINT")
	overrideInt(&cfg.Queues.Frames, "VOXKEY_QUEUE_FRAMES")
	overrideInt(&cfg.Queues.Observer, "VOXKEY_QUEUE_OBSERVER")
	overrideBool(&cfg.Archive.Enabled, "VOXKEY_ARCHIVE_ENABLED")
	overrideString(&cfg.Archive.Dir, "VOXKEY_ARCHIVE_DIR")
	overrideString(&cfg.Archive.Format, "VOXKEY_ARCHIVE_FORMAT")
	overrideBool(&cfg.History.Enabled, "VOXKEY_HISTORY_ENABLED")
	overrideString(&cfg.History.Path, "VOXKEY_HISTORY_PATH")
	overrideInt(&cfg.History.Keep, "VOXKEY_HISTORY_KEEP")
	overrideBool(&cfg.Silence.Enabled, "VOXKEY_SILENCE_ENABLED")
	overrideInt(&cfg.Silence.WarnMS, "VOXKEY_SILENCE_WARN_MS")
	overrideInt(&cfg.Silence.StopMS, "VOXKEY_SILENCE_STOP_MS")
	overrideInt(&cfg.Silence.Threshold, "VOXKEY_SILENCE_THRESHOLD")
	overrideBool(&cfg.Sounds, "VOXKEY_SOUNDS")
	overrideBool(&cfg.Notifications, "VOXKEY_NOTIFICATIONS")
	overrideBool(&cfg.Tray, "VOXKEY_TRAY")
	overrideBool(&cfg.TUI, "VOXKEY_TUI")
	overrideString(&cfg.Log.Path, "VOXKEY_LOG_PATH")
	overrideString(&cfg.Log.Level, "VOXKEY_LOG_LEVEL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.FrameSize <= 0 {
		return errors.New("audio.frame_size must be positive")
	}
	if cfg.Engine.Command == "" {
		return errors.New("engine.command must not be empty")
	}
	if cfg.Engine.ModelPath == "" {
		return errors.New("engine.model_path must not be empty")
	}
	if cfg.Engine.TimeoutMS < 2000 || cfg.Engine.TimeoutMS > 5000 {
		return errors.New("engine.timeout_ms must be between 2000 and 5000")
	}
	switch cfg.Typing.Backend {
	case "auto", "keystroke", "clipboard":
	default:
		return errors.New("typing.backend must be one of auto|keystroke|clipboard")
	}
	if cfg.Typing.DelayMS < 0 {
		return errors.New("typing.delay_ms must be >= 0")
	}
	if cfg.Hotkey.Binding == "" {
		return errors.New("hotkey.binding must not be empty")
	}
	switch cfg.Hotkey.Mode {
	case "push_to_talk", "toggle", "continuous", "auto":
	default:
		return errors.New("hotkey.mode must be one of push_to_talk|toggle|continuous|auto")
	}
	if cfg.Hotkey.Mode == "auto" && cfg.Hotkey.HoldMS <= 0 {
		return errors.New("hotkey.hold_ms must be positive when mode is auto")
	}
	if cfg.Queues.Frames < 1 {
		return errors.New("queues.frames must be >= 1")
	}
	if cfg.Queues.Observer < 1 {
		return errors.New("queues.observer must be >= 1")
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Dir == "" {
			return errors.New("archive.dir must not be empty when archiving is enabled")
		}
		switch cfg.Archive.Format {
		case "flac", "wav":
		default:
			return errors.New("archive.format must be one of flac|wav")
		}
	}
	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			return errors.New("history.path must not be empty when history is enabled")
		}
		if cfg.History.Keep < 0 {
			return errors.New("history.keep must be >= 0")
		}
	}
	if cfg.Silence.Enabled {
		if cfg.Silence.WarnMS <= 0 {
			return errors.New("silence.warn_ms must be positive")
		}
		if cfg.Silence.StopMS <= cfg.Silence.WarnMS {
			return errors.New("silence.stop_ms must be greater than silence.warn_ms")
		}
		if cfg.Silence.Threshold < 0 {
			return errors.New("silence.threshold must be >= 0")
		}
	}
	if cfg.Pipeline.Rules.Enabled && cfg.Pipeline.Rules.Path == "" {
		return errors.New("pipeline.rules.path must not be empty when rules are enabled")
	}
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of trace|debug|info|warn|error")
	}
	return nil
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains workspace and state directories.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
}

// Download controls source resolution and video download.
type Download struct {
	Resolution string `toml:"resolution"`
	Count      int    `toml:"count"`
}

// Separation configures vocal/background separation.
type Separation struct {
	Model  string `toml:"model"`
	Device string `toml:"device"`
	Shifts int    `toml:"shifts"`
}

// Transcription configures speech recognition. Zero speaker bounds leave the
// speaker count to the engine.
type Transcription struct {
	Method      string `toml:"method"`
	ModelSize   string `toml:"model_size"`
	Device      string `toml:"device"`
	BatchSize   int    `toml:"batch_size"`
	Diarization bool   `toml:"diarization"`
	MinSpeakers int    `toml:"min_speakers"`
	MaxSpeakers int    `toml:"max_speakers"`
}

// Translation configures transcript translation.
type Translation struct {
	Method         string `toml:"method"`
	TargetLanguage string `toml:"target_language"`
}

// Synthesis configures speech synthesis.
type Synthesis struct {
	Method         string `toml:"method"`
	TargetLanguage string `toml:"target_language"`
	Voice          string `toml:"voice"`
}

// Composition configures the final video render.
type Composition struct {
	Subtitles       bool    `toml:"subtitles"`
	SpeedUp         float64 `toml:"speed_up"`
	FPS             int     `toml:"fps"`
	Resolution      string  `toml:"resolution"`
	BackgroundMusic string  `toml:"background_music"`
	BGMVolume       float64 `toml:"bgm_volume"`
	VideoVolume     float64 `toml:"video_volume"`
}

// Execution controls retries and parallelism.
type Execution struct {
	MaxRetries            int            `toml:"max_retries"`
	MaxWorkers            int            `toml:"max_workers"`
	RetryDelaySeconds     int            `toml:"retry_delay_seconds"`
	RetryMaxDelaySeconds  int            `toml:"retry_max_delay_seconds"`
	ResumeFromFailedStage bool           `toml:"resume_from_failed_stage"`
	StageConcurrency      map[string]int `toml:"stage_concurrency"`
}

// Tools locates the external programs that implement each stage.
type Tools struct {
	Python              string `toml:"python"`
	Package             string `toml:"package"`
	WorkDir             string `toml:"work_dir"`
	YtDlp               string `toml:"yt_dlp"`
	FFmpeg              string `toml:"ffmpeg"`
	StageTimeoutMinutes int    `toml:"stage_timeout_minutes"`
}

// LLM contains OpenAI-compatible connection settings for the LLM translator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchStart     bool   `toml:"batch_start"`
	BatchComplete  bool   `toml:"batch_complete"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubflow.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, logs, and run history
//   - Download through Composition: per-stage parameters
//   - Execution: retry budget, worker pool, stage limits
//   - Tools: external stage programs
//   - LLM: OpenAI-compatible translator endpoint
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Separation    Separation    `toml:"separation"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Composition   Composition   `toml:"composition"`
	Execution     Execution     `toml:"execution"`
	Tools         Tools         `toml:"tools"`
	LLM           LLM           `toml:"llm"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a batch run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceRoot, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// PythonBinary returns the interpreter used for tool-backed stages.
func (c *Config) PythonBinary() string {
	return c.Tools.Python
}

// YtDlpBinary returns the yt-dlp executable name.
func (c *Config) YtDlpBinary() string {
	return c.Tools.YtDlp
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return c.Tools.FFmpeg
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ErrConfigExists is returned by CreateSample when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// CreateSample writes the embedded sample configuration to path, creating
// parent directories. An existing file is only replaced when overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w at %s", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}

// LLMConfig contains the LLM translator connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

package config

const (
	defaultConfigPath           = "~/.config/dubflow/config.toml"
	defaultWorkspaceRoot        = "videos"
	defaultLogDir               = "~/.local/share/dubflow/logs"
	defaultStateDir             = "~/.local/share/dubflow"
	defaultResolution           = "1080p"
	defaultCount                = 5
	defaultSeparationModel      = "htdemucs_ft"
	defaultDevice               = "auto"
	defaultShifts               = 5
	defaultASRMethod            = "WhisperX"
	defaultWhisperModel         = "large"
	defaultBatchSize            = 32
	defaultTranslationMethod    = "LLM"
	defaultTranslationLanguage  = "简体中文"
	defaultTTSMethod            = "xtts"
	defaultTTSLanguage          = "中文"
	defaultVoice                = "zh-CN-XiaoxiaoNeural"
	defaultSpeedUp              = 1.0
	defaultFPS                  = 30
	defaultBGMVolume            = 0.5
	defaultVideoVolume          = 1.0
	defaultMaxRetries           = 5
	defaultMaxWorkers           = 1
	defaultRetryDelaySeconds    = 2
	defaultRetryMaxDelaySeconds = 30
	defaultPython               = "python"
	defaultToolsPackage         = "tools"
	defaultYtDlp                = "yt-dlp"
	defaultFFmpeg               = "ffmpeg"
	defaultLLMBaseURL           = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultLLMModel             = "qwen-max-2025-01-25"
	defaultLLMTimeoutSeconds    = 240
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			LogDir:        defaultLogDir,
			StateDir:      defaultStateDir,
		},
		Download: Download{
			Resolution: defaultResolution,
			Count:      defaultCount,
		},
		Separation: Separation{
			Model:  defaultSeparationModel,
			Device: defaultDevice,
			Shifts: defaultShifts,
		},
		Transcription: Transcription{
			Method:    defaultASRMethod,
			ModelSize: defaultWhisperModel,
			Device:    defaultDevice,
			BatchSize: defaultBatchSize,
		},
		Translation: Translation{
			Method:         defaultTranslationMethod,
			TargetLanguage: defaultTranslationLanguage,
		},
		Synthesis: Synthesis{
			Method:         defaultTTSMethod,
			TargetLanguage: defaultTTSLanguage,
			Voice:          defaultVoice,
		},
		Composition: Composition{
			Subtitles:   true,
			SpeedUp:     defaultSpeedUp,
			FPS:         defaultFPS,
			Resolution:  defaultResolution,
			BGMVolume:   defaultBGMVolume,
			VideoVolume: defaultVideoVolume,
		},
		Execution: Execution{
			MaxRetries:           defaultMaxRetries,
			MaxWorkers:           defaultMaxWorkers,
			RetryDelaySeconds:    defaultRetryDelaySeconds,
			RetryMaxDelaySeconds: defaultRetryMaxDelaySeconds,
			StageConcurrency: map[string]int{
				"separate":   1,
				"transcribe": 1,
				"synthesize": 1,
			},
		},
		Tools: Tools{
			Python:  defaultPython,
			Package: defaultToolsPackage,
			YtDlp:   defaultYtDlp,
			FFmpeg:  defaultFFmpeg,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			BatchStart:     true,
			BatchComplete:  true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

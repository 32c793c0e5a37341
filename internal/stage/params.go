package stage

import "time"

// Params is the immutable per-batch parameter snapshot passed by value to
// every item run.
type Params struct {
	Download      DownloadParams
	Separation    SeparationParams
	Transcription TranscriptionParams
	Translation   TranslationParams
	Synthesis     SynthesisParams
	Composition   CompositionParams
	Execution     ExecutionParams
}

type DownloadParams struct {
	Resolution string
	Count      int
}

type SeparationParams struct {
	Model  string
	Device string
	Shifts int
}

// TranscriptionParams configures ASR. Zero speaker bounds mean unspecified.
type TranscriptionParams struct {
	Method      ASRMethod
	ModelSize   string
	Device      string
	BatchSize   int
	Diarization bool
	MinSpeakers int
	MaxSpeakers int
}

type TranslationParams struct {
	Method         TranslationMethod
	TargetLanguage string
}

type SynthesisParams struct {
	Method         TTSMethod
	TargetLanguage string
	Voice          string
}

type CompositionParams struct {
	Subtitles       bool
	SpeedUp         float64
	FPS             int
	Resolution      string
	BackgroundMusic string
	BGMVolume       float64
	VideoVolume     float64
}

// ExecutionParams controls retries and parallelism.
type ExecutionParams struct {
	MaxRetries    int
	MaxWorkers    int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
	// ResumeFromFailedStage restarts a retry at the stage that failed instead
	// of at download.
	ResumeFromFailedStage bool
	// StageConcurrency caps how many items may be inside a stage at once.
	// Missing or non-positive entries leave the stage unbounded.
	StageConcurrency map[Name]int
}

// Attempts returns the effective attempt budget, never less than one.
func (e ExecutionParams) Attempts() int {
	if e.MaxRetries < 1 {
		return 1
	}
	return e.MaxRetries
}

// Workers returns the effective worker count, never less than one.
func (e ExecutionParams) Workers() int {
	if e.MaxWorkers < 1 {
		return 1
	}
	return e.MaxWorkers
}

// Resolutions lists the supported download and output heights.
var Resolutions = []string{"4320p", "2160p", "1440p", "1080p", "720p", "480p", "360p", "240p", "144p"}

// SeparationModels lists the supported Demucs models.
var SeparationModels = []string{
	"htdemucs", "htdemucs_ft", "htdemucs_6s", "hdemucs_mmi",
	"mdx", "mdx_extra", "mdx_q", "mdx_extra_q", "SIG",
}

// Devices lists compute device selectors.
var Devices = []string{"auto", "cuda", "cpu"}

// WhisperModelSizes lists the supported WhisperX model sizes.
var WhisperModelSizes = []string{"large", "medium", "small", "base", "tiny"}

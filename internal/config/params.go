package config

import (
	"time"

	"dubflow/internal/stage"
)

// Params builds the immutable per-batch parameter snapshot. Callers apply CLI
// overrides to a copy of the config before calling it.
func (c *Config) Params() stage.Params {
	limits := make(map[stage.Name]int, len(c.Execution.StageConcurrency))
	for name, limit := range c.Execution.StageConcurrency {
		limits[stage.Name(name)] = limit
	}
	asr, _ := stage.ParseASRMethod(c.Transcription.Method)
	translation, _ := stage.ParseTranslationMethod(c.Translation.Method)
	tts, _ := stage.ParseTTSMethod(c.Synthesis.Method)

	return stage.Params{
		Download: stage.DownloadParams{
			Resolution: c.Download.Resolution,
			Count:      c.Download.Count,
		},
		Separation: stage.SeparationParams{
			Model:  c.Separation.Model,
			Device: c.Separation.Device,
			Shifts: c.Separation.Shifts,
		},
		Transcription: stage.TranscriptionParams{
			Method:      asr,
			ModelSize:   c.Transcription.ModelSize,
			Device:      c.Transcription.Device,
			BatchSize:   c.Transcription.BatchSize,
			Diarization: c.Transcription.Diarization,
			MinSpeakers: c.Transcription.MinSpeakers,
			MaxSpeakers: c.Transcription.MaxSpeakers,
		},
		Translation: stage.TranslationParams{
			Method:         translation,
			TargetLanguage: c.Translation.TargetLanguage,
		},
		Synthesis: stage.SynthesisParams{
			Method:         tts,
			TargetLanguage: c.Synthesis.TargetLanguage,
			Voice:          c.Synthesis.Voice,
		},
		Composition: stage.CompositionParams{
			Subtitles:       c.Composition.Subtitles,
			SpeedUp:         c.Composition.SpeedUp,
			FPS:             c.Composition.FPS,
			Resolution:      c.Composition.Resolution,
			BackgroundMusic: c.Composition.BackgroundMusic,
			BGMVolume:       c.Composition.BGMVolume,
			VideoVolume:     c.Composition.VideoVolume,
		},
		Execution: stage.ExecutionParams{
			MaxRetries:            c.Execution.MaxRetries,
			MaxWorkers:            c.Execution.MaxWorkers,
			RetryDelay:            time.Duration(c.Execution.RetryDelaySeconds) * time.Second,
			RetryMaxDelay:         time.Duration(c.Execution.RetryMaxDelaySeconds) * time.Second,
			ResumeFromFailedStage: c.Execution.ResumeFromFailedStage,
			StageConcurrency:      limits,
		},
	}
}

package config

import (
	"errors"
	"fmt"
	"slices"

	"dubflow/internal/language"
	"dubflow/internal/stage"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateComposition(); err != nil {
		return err
	}
	if err := c.validateExecution(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if !slices.Contains(stage.Resolutions, c.Download.Resolution) {
		return fmt.Errorf("download.resolution %q must be one of %v", c.Download.Resolution, stage.Resolutions)
	}
	if c.Download.Count < 1 || c.Download.Count > 100 {
		return errors.New("download.count must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	if !slices.Contains(stage.SeparationModels, c.Separation.Model) {
		return fmt.Errorf("separation.model %q must be one of %v", c.Separation.Model, stage.SeparationModels)
	}
	if !slices.Contains(stage.Devices, c.Separation.Device) {
		return fmt.Errorf("separation.device %q must be one of %v", c.Separation.Device, stage.Devices)
	}
	if c.Separation.Shifts < 0 || c.Separation.Shifts > 10 {
		return errors.New("separation.shifts must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if _, err := stage.ParseASRMethod(c.Transcription.Method); err != nil {
		return fmt.Errorf("transcription.method: %w", err)
	}
	if !slices.Contains(stage.WhisperModelSizes, c.Transcription.ModelSize) {
		return fmt.Errorf("transcription.model_size %q must be one of %v", c.Transcription.ModelSize, stage.WhisperModelSizes)
	}
	if !slices.Contains(stage.Devices, c.Transcription.Device) {
		return fmt.Errorf("transcription.device %q must be one of %v", c.Transcription.Device, stage.Devices)
	}
	if c.Transcription.BatchSize < 1 || c.Transcription.BatchSize > 128 {
		return errors.New("transcription.batch_size must be between 1 and 128")
	}
	minS, maxS := c.Transcription.MinSpeakers, c.Transcription.MaxSpeakers
	if minS < 0 || minS > 9 || maxS < 0 || maxS > 9 {
		return errors.New("transcription speaker bounds must be between 1 and 9 (0 for unspecified)")
	}
	if minS > 0 && maxS > 0 && minS > maxS {
		return errors.New("transcription.min_speakers must not exceed transcription.max_speakers")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if _, err := stage.ParseTranslationMethod(c.Translation.Method); err != nil {
		return fmt.Errorf("translation.method: %w", err)
	}
	if c.Translation.TargetLanguage == "" {
		return errors.New("translation.target_language must be set")
	}
	if _, err := language.Resolve(c.Translation.TargetLanguage); err != nil {
		return fmt.Errorf("translation.target_language: %w", err)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	if _, err := stage.ParseTTSMethod(c.Synthesis.Method); err != nil {
		return fmt.Errorf("synthesis.method: %w", err)
	}
	if c.Synthesis.TargetLanguage == "" {
		return errors.New("synthesis.target_language must be set")
	}
	if _, err := language.Resolve(c.Synthesis.TargetLanguage); err != nil {
		return fmt.Errorf("synthesis.target_language: %w", err)
	}
	return nil
}

func (c *Config) validateComposition() error {
	if c.Composition.SpeedUp < 0.5 || c.Composition.SpeedUp > 2 {
		return errors.New("composition.speed_up must be between 0.5 and 2")
	}
	if c.Composition.FPS < 1 || c.Composition.FPS > 60 {
		return errors.New("composition.fps must be between 1 and 60")
	}
	if !slices.Contains(stage.Resolutions, c.Composition.Resolution) {
		return fmt.Errorf("composition.resolution %q must be one of %v", c.Composition.Resolution, stage.Resolutions)
	}
	if c.Composition.BGMVolume < 0 || c.Composition.BGMVolume > 1 {
		return errors.New("composition.bgm_volume must be between 0 and 1")
	}
	if c.Composition.VideoVolume < 0 || c.Composition.VideoVolume > 1 {
		return errors.New("composition.video_volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateExecution() error {
	if c.Execution.MaxRetries < 1 || c.Execution.MaxRetries > 10 {
		return errors.New("execution.max_retries must be between 1 and 10")
	}
	if c.Execution.MaxWorkers < 1 || c.Execution.MaxWorkers > 100 {
		return errors.New("execution.max_workers must be between 1 and 100")
	}
	if c.Execution.RetryDelaySeconds < 0 || c.Execution.RetryMaxDelaySeconds < 0 {
		return errors.New("execution retry delays must be non-negative")
	}
	for name, limit := range c.Execution.StageConcurrency {
		if stage.Name(name).Index() < 0 {
			return fmt.Errorf("execution.stage_concurrency: unknown stage %q", name)
		}
		if limit < 0 {
			return fmt.Errorf("execution.stage_concurrency.%s must be non-negative", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"dubflow/internal/stage"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMethods()
	c.normalizeExecution()
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Composition.BackgroundMusic = strings.TrimSpace(c.Composition.BackgroundMusic); c.Composition.BackgroundMusic != "" {
		if c.Composition.BackgroundMusic, err = expandPath(c.Composition.BackgroundMusic); err != nil {
			return fmt.Errorf("composition.background_music: %w", err)
		}
	}
	return nil
}

// Canonicalize re-applies name normalization after programmatic edits such
// as command-line overrides.
func (c *Config) Canonicalize() {
	c.normalizeMethods()
	c.normalizeExecution()
}

// normalizeMethods canonicalizes engine names so lookups match the stage
// enumerations regardless of case. Unknown values are left for Validate.
func (c *Config) normalizeMethods() {
	if m, err := stage.ParseASRMethod(c.Transcription.Method); err == nil {
		c.Transcription.Method = string(m)
	}
	if m, err := stage.ParseTranslationMethod(c.Translation.Method); err == nil {
		c.Translation.Method = string(m)
	}
	if m, err := stage.ParseTTSMethod(c.Synthesis.Method); err == nil {
		c.Synthesis.Method = string(m)
	}
	c.Separation.Device = strings.ToLower(strings.TrimSpace(c.Separation.Device))
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	c.Transcription.ModelSize = strings.ToLower(strings.TrimSpace(c.Transcription.ModelSize))
	c.Download.Resolution = strings.ToLower(strings.TrimSpace(c.Download.Resolution))
	c.Composition.Resolution = strings.ToLower(strings.TrimSpace(c.Composition.Resolution))
	if c.Composition.Resolution == "" {
		c.Composition.Resolution = c.Download.Resolution
	}
	c.Translation.TargetLanguage = strings.TrimSpace(c.Translation.TargetLanguage)
	c.Synthesis.TargetLanguage = strings.TrimSpace(c.Synthesis.TargetLanguage)
	c.Synthesis.Voice = strings.TrimSpace(c.Synthesis.Voice)
}

func (c *Config) normalizeExecution() {
	if len(c.Execution.StageConcurrency) == 0 {
		return
	}
	limits := make(map[string]int, len(c.Execution.StageConcurrency))
	for name, limit := range c.Execution.StageConcurrency {
		limits[strings.ToLower(strings.TrimSpace(name))] = limit
	}
	c.Execution.StageConcurrency = limits
}

func (c *Config) normalizeTools() error {
	if c.Tools.Python = strings.TrimSpace(c.Tools.Python); c.Tools.Python == "" {
		c.Tools.Python = defaultPython
	}
	if c.Tools.Package = strings.TrimSpace(c.Tools.Package); c.Tools.Package == "" {
		c.Tools.Package = defaultToolsPackage
	}
	if c.Tools.YtDlp = strings.TrimSpace(c.Tools.YtDlp); c.Tools.YtDlp == "" {
		c.Tools.YtDlp = defaultYtDlp
	}
	if c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg); c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	var err error
	if c.Tools.WorkDir, err = expandPath(strings.TrimSpace(c.Tools.WorkDir)); err != nil {
		return fmt.Errorf("tools.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("OPENAI_API_BASE"); ok && strings.TrimSpace(value) != "" && strings.TrimSpace(c.LLM.BaseURL) == defaultLLMBaseURL {
		c.LLM.BaseURL = value
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if value, ok := os.LookupEnv("MODEL_NAME"); ok && strings.TrimSpace(value) != "" && strings.TrimSpace(c.LLM.Model) == defaultLLMModel {
		c.LLM.Model = value
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
